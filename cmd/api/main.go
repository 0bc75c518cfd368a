// Package main (in api-subfolder) provides launch of the customer desk gateway
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/CustomerDesk/internal/apiclient"
	"github.com/UnendingLoop/CustomerDesk/internal/capture"
	appconfig "github.com/UnendingLoop/CustomerDesk/internal/config"
	"github.com/UnendingLoop/CustomerDesk/internal/guard"
	"github.com/UnendingLoop/CustomerDesk/internal/imageproc"
	"github.com/UnendingLoop/CustomerDesk/internal/kafka"
	"github.com/UnendingLoop/CustomerDesk/internal/mwlogger"
	"github.com/UnendingLoop/CustomerDesk/internal/repository"
	"github.com/UnendingLoop/CustomerDesk/internal/service"
	"github.com/UnendingLoop/CustomerDesk/internal/storage"
	"github.com/UnendingLoop/CustomerDesk/internal/submission"
	"github.com/UnendingLoop/CustomerDesk/internal/transport"
	"github.com/rs/cors"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

func main() {
	// инициализировать конфиг/ считать энвы
	rawConfig := config.New()
	rawConfig.EnableEnv("")
	if err := rawConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}
	cfg := appconfig.Load(rawConfig)

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// профили сжатия: встроенные + оверлей из файла
	profiles, err := appconfig.LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		log.Fatalf("Failed to load compression profiles: %v", err)
	}

	// компрессор: webp если libwebp на месте, иначе jpeg
	webpEncoder := imageproc.NewWebPEncoder()
	compressor := imageproc.NewCompressor(webpEncoder, imageproc.JPEGEncoder{},
		imageproc.WithDecodeTimeout(cfg.DecodeTimeout))
	zlog.Logger.Info().
		Str("format", compressor.Format()).
		Bool("webp", compressor.Capabilities().Supports(webpEncoder.MIMEType())).
		Msg("Image encoder selected")

	// клиент внешнего API и сессия киоска
	session := apiclient.NewSession(func() {
		zlog.Logger.Warn().Msg("Upstream rejected the token, session cleared")
	})
	api := apiclient.New(cfg.UpstreamURL, session,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.UpstreamTimeout}),
		apiclient.WithRetry(uint64(cfg.UpstreamRetries), 0))

	submitter := submission.NewSubmitter(api, guard.New(compressor), submission.NewAdapter(cfg.TextFieldCap), profiles)

	device := capture.NewHTTPDevice(cfg.CameraURL, 5*time.Second)
	deps := service.Deps{
		API:       api,
		Session:   session,
		Submitter: submitter,
		Decoder:   compressor,
		NewCanvas: func() *capture.Canvas { return capture.NewCanvas(cfg.CanvasWidth, cfg.CanvasHeight) },
		NewCamera: func() *capture.Camera { return capture.NewCamera(device, cfg.CameraWidth, cfg.CameraHeight) },
		FormTTL:   cfg.FormTTL,
	}

	// аудит опционален: без БД/кафки/minio гейтвей работает, просто не пишет журнал
	var dbConn *dbpg.DB
	if cfg.PostgresDSN != "" {
		dbConn = repository.ConnectWithRetries(cfg.PostgresDSN, 5, 10*time.Second)
		repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)
		deps.Repo = repository.NewPostgresSubmissionRepo(dbConn)
	}
	if cfg.Minio.Addr != "" {
		if strg := storage.NewCaptureStorage(ctx, cfg.Minio, 10*time.Second); strg != nil {
			deps.Storage = strg
		}
	}
	var pub *wbfkafka.Producer
	if cfg.Kafka.Broker != "" {
		// ждем пока кафка раздуплится
		if err := kafka.WaitKafkaReady(ctx, cfg.Kafka.Broker, 5*time.Second); err != nil {
			log.Fatalf("Kafka is not reachable: %v", err)
		}
		kafka.InitKafkaTopics(ctx, cfg.Kafka.Broker, 10*time.Second, cfg.Kafka.Topic)
		pub = wbfkafka.NewProducer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic)
		deps.Publisher = pub
	}

	// создаем экземпляр сервиса
	var svc DeskAPIService = service.NewDeskService(deps)
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewDeskHandler(svc)
	// сетапим сервер
	engine := ginext.New(cfg.GinMode)
	handlers.Register(engine)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(mwlogger.NewMWLogger(engine)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zlog.Logger.Info().Msgf("Server running on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// закрываем брошенные формы
	g.Go(func() error {
		jctx := mwlogger.WithLogger(gctx, zlog.Logger.With().Str("component", "janitor").Logger())
		janitorLoop(jctx, svc, time.Minute)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Logger.Info().Msg("Server gracefully stopping...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zlog.Logger.Error().Err(err).Msg("Server stopped")
	}

	// дожидаемся отправки аудита перед закрытием продюсера
	svc.Wait()
	if err := shutdown(pub, dbConn); err != nil {
		zlog.Logger.Error().Err(err).Msg("Shutdown finished with errors")
	}
	log.Println("Exiting gateway...")
}

func janitorLoop(ctx context.Context, svc DeskAPIService, every time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			zlog.Logger.Error().Interface("panic", r).Msg("Janitor loop crashed")
		}
	}()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.DropStaleForms(ctx)
		}
	}
}

func shutdown(pub *wbfkafka.Producer, dbConn *dbpg.DB) error {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	var err error
	if pub != nil {
		err = multierr.Append(err, pub.Close())
		log.Println("Kafka-producer connection closed.")
	}
	if dbConn != nil {
		err = multierr.Append(err, dbConn.Master.Close())
		log.Println("DBconn closed")
	}
	return err
}
