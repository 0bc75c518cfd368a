// Package config turns env values and the compression profile file into typed settings
package config

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Source - откуда читаем значения; *config.Config из wbf подходит как есть
type Source interface {
	GetString(key string) string
}

type App struct {
	Port     string
	GinMode  string
	LogLevel string

	UpstreamURL     string
	UpstreamTimeout time.Duration
	UpstreamRetries int

	CameraURL     string
	CameraWidth   int
	CameraHeight  int
	CanvasWidth   int
	CanvasHeight  int
	DecodeTimeout time.Duration
	ProfilesFile  string
	TextFieldCap  int
	FormTTL       time.Duration

	CORSOrigins []string

	PostgresDSN string
	Kafka       Kafka
	Minio       Minio
}

type Kafka struct {
	Broker  string
	Topic   string
	GroupID string
}

type Minio struct {
	Bucket string
	User   string
	Pass   string
	Addr   string
}

// Load reads every key once. Missing or malformed numbers fall back to defaults.
func Load(src Source) App {
	return App{
		Port:     str(src, "APP_PORT", "8080"),
		GinMode:  str(src, "GIN_MODE", "release"),
		LogLevel: str(src, "LOG_LEVEL", "info"),

		UpstreamURL:     src.GetString("UPSTREAM_URL"),
		UpstreamTimeout: duration(src, "UPSTREAM_TIMEOUT", 30*time.Second),
		UpstreamRetries: integer(src, "UPSTREAM_RETRIES", 2),

		CameraURL:     src.GetString("CAMERA_SNAPSHOT_URL"),
		CameraWidth:   integer(src, "CAMERA_WIDTH", 640),
		CameraHeight:  integer(src, "CAMERA_HEIGHT", 480),
		CanvasWidth:   integer(src, "CANVAS_WIDTH", 600),
		CanvasHeight:  integer(src, "CANVAS_HEIGHT", 250),
		DecodeTimeout: duration(src, "DECODE_TIMEOUT", 5*time.Second),
		ProfilesFile:  src.GetString("PROFILES_FILE"),
		TextFieldCap:  integer(src, "TEXT_FIELD_CAP", 100),
		FormTTL:       duration(src, "FORM_TTL", 30*time.Minute),

		CORSOrigins: list(src, "CORS_ORIGINS"),

		PostgresDSN: src.GetString("POSTGRES_DSN"),
		Kafka: Kafka{
			Broker:  src.GetString("KAFKA_BROKER"),
			Topic:   str(src, "KAFKA_TOPIC", "submissions"),
			GroupID: str(src, "KAFKA_GROUPID", "submission-audit"),
		},
		Minio: Minio{
			Bucket: str(src, "BUCKET_NAME", "default"),
			User:   src.GetString("MINIO_USER"),
			Pass:   src.GetString("MINIO_PASS"),
			Addr:   src.GetString("MINIO_CONTAINER_NAME"),
		},
	}
}

func str(src Source, key, def string) string {
	if v := strings.TrimSpace(src.GetString(key)); v != "" {
		return v
	}
	return def
}

func integer(src Source, key string, def int) int {
	v, err := cast.ToIntE(strings.TrimSpace(src.GetString(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// duration accepts both "5s" and bare seconds.
func duration(src Source, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(src.GetString(key))
	if raw == "" {
		return def
	}
	if secs, err := cast.ToIntE(raw); err == nil {
		if secs <= 0 {
			return def
		}
		return time.Duration(secs) * time.Second
	}
	d, err := cast.ToDurationE(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func list(src Source, key string) []string {
	raw := src.GetString(key)
	if raw == "" {
		return nil
	}
	parts := cast.ToStringSlice(strings.ReplaceAll(raw, ",", " "))
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			res = append(res, p)
		}
	}
	return res
}
