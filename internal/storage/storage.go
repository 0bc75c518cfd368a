// Package storage connects the archive of original signature captures
package storage

import (
	"context"
	"log"
	"time"

	"github.com/UnendingLoop/CustomerDesk/internal/config"
	"github.com/UnendingLoop/CustomerDesk/internal/storage/miniostorage"
)

// NewCaptureStorage keeps retrying until MinIO answers or ctx is done.
func NewCaptureStorage(ctx context.Context, cfg config.Minio, delay time.Duration) *miniostorage.MinioCaptureStorage {
	for {
		log.Println("Connecting to capture storage...")
		client, err := miniostorage.NewMinioClient(ctx, cfg)
		if err == nil {
			log.Println("Successfully connected capture storage!")
			return client
		}
		log.Printf("Failed to init connection to capture storage: %v\nNext retry in %v...", err, delay)

		select {
		case <-ctx.Done():
			log.Println("Capture storage connection canceled")
			return nil
		case <-time.After(delay):
		}
	}
}
