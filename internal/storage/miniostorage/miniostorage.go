// Package miniostorage provides structure to work with minio-storage
package miniostorage

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/UnendingLoop/CustomerDesk/internal/config"
	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioCaptureStorage keeps the original high-resolution captures behind submissions.
type MinioCaptureStorage struct {
	bucket string
	client *minio.Client
}

func NewMinioClient(ctx context.Context, cfg config.Minio) (*MinioCaptureStorage, error) {
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "default"
		log.Printf("Bucket name is empty. Using default value %q...", bucket)
	}

	addr := cfg.Addr
	if !strings.Contains(addr, ":") {
		addr += ":9000"
	}

	// подключаемся к минио - создаем клиента
	strg, err := minio.New(addr, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.User, cfg.Pass, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	// создаем бакет если его нет
	if err := ensureBucket(ctx, strg, bucket); err != nil {
		log.Println("Failed to create bucket in MinIO:", err)
		return nil, err
	}

	return &MinioCaptureStorage{bucket: bucket, client: strg}, nil
}

func (s *MinioCaptureStorage) Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error {
	if r == nil {
		return errors.New("nil reader passed to storage.Put")
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return err
	}

	return nil
}

func (s *MinioCaptureStorage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *MinioCaptureStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	res, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", err
	}

	resStat, err := res.Stat()
	if err != nil {
		_ = res.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, "", model.ErrSubmissionNotFound
		}
		return nil, "", err
	}

	return res, resStat.ContentType, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}
