package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	appconfig "github.com/UnendingLoop/CustomerDesk/internal/config"
	"github.com/UnendingLoop/CustomerDesk/internal/kafka"
	"github.com/UnendingLoop/CustomerDesk/internal/repository"
	"github.com/UnendingLoop/CustomerDesk/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
	"go.uber.org/multierr"
)

func main() {
	// инициализировать конфиг/ считать энвы
	rawConfig := config.New()
	rawConfig.EnableEnv("")
	if err := rawConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}
	cfg := appconfig.Load(rawConfig)

	zlog.InitConsole()
	if err := zlog.SetLevel(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключитсья к базе
	dbConn := repository.ConnectWithRetries(cfg.PostgresDSN, 5, 10*time.Second)
	// создаем экземпляр репо
	var repo SubmissionWorkerRepo = repository.NewPostgresSubmissionRepo(dbConn)

	// ждем пока кафка раздуплится
	if err := kafka.WaitKafkaReady(ctx, cfg.Kafka.Broker, 5*time.Second); err != nil {
		log.Fatalf("Kafka is not reachable: %v", err)
	}
	kafka.InitKafkaTopics(ctx, cfg.Kafka.Broker, 10*time.Second, cfg.Kafka.Topic)

	// подключиться к кафке как читатель
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	cons := wbfkafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	cons.StartConsuming(ctx, queue, retryStrategy)

	// Собираем воедино все что нужно воркеру и запускаем его
	w := worker.NewWorkerInstance(repo, queue, cons, retryStrategy)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.StartWorker(ctx)
	}()

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()
	<-done

	if err := shutdown(cons, dbConn); err != nil {
		log.Println("Shutdown finished with errors:", err)
	}
	log.Println("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) error {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection, then DB connection
	err := multierr.Combine(cons.Close(), dbConn.Master.Close())
	log.Println("Kafka-consumer and DB connections closed.")
	return err
}
