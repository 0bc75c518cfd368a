// Package repository provides methods to work with DB
package repository

import (
	"context"
	"database/sql"
	"log"
	"path/filepath"
	"time"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/UnendingLoop/CustomerDesk/internal/repository/auditpostgres"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/wb-go/wbf/dbpg"
)

// SubmissionRepo - журнал попыток отправки клиентов
type SubmissionRepo interface {
	Create(ctx context.Context, s *model.Submission) error
	Get(ctx context.Context, id string) (*model.Submission, error)
	GetList(ctx context.Context, req *model.ListRequest) ([]model.Submission, error)
}

func NewPostgresSubmissionRepo(dbconn *dbpg.DB) SubmissionRepo {
	return auditpostgres.PostgresRepo{DB: dbconn}
}

func ConnectWithRetries(dsnLink string, retryCount int, idleTime time.Duration) *dbpg.DB {
	dbOptions := dbpg.Options{
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: 10 * time.Minute,
	}
	var dbConn *dbpg.DB
	var err error

	for range retryCount {
		dbConn, err = dbpg.New(dsnLink, nil, &dbOptions)
		if err == nil {
			break
		}
		log.Printf("Failed to connect to PGDB: %s\nWaiting %v before next retry...", err, idleTime)
		time.Sleep(idleTime)
	}

	if err != nil {
		log.Fatal("Failed to connect to DB. Exiting the app...")
	}

	return dbConn
}

func MigrateWithRetries(db *sql.DB, migrationsPath string, retries int, idle time.Duration) {
	for i := 1; i <= retries; i++ {
		log.Printf("Migration try #%d...", i)
		err := runMigrate(db, migrationsPath)
		if err == nil {
			return
		}
		if i == retries {
			log.Fatalf("Migration failed: %v. Out of retries. Exiting...", err)
		}
		log.Printf("Migration try #%d was unsuccessful: %v. Waiting %v before next try...", i, err, idle)
		time.Sleep(idle)
	}
}

func runMigrate(db *sql.DB, migrationsPath string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(migrationsPath)
	if err != nil {
		return err
	}

	sourceURL := "file://" + absPath
	log.Println("Running migrations from:", sourceURL)

	m, err := migrate.NewWithDatabaseInstance(
		sourceURL,
		"postgres",
		driver,
	)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	log.Println("Database migrations applied successfully")
	return nil
}
