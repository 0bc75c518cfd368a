package main

import (
	"context"

	"github.com/UnendingLoop/CustomerDesk/internal/transport"
)

// DeskAPIService - всё, что нужно хендлерам, плюс фоновые задачи гейтвея
type DeskAPIService interface {
	transport.DeskService
	DropStaleForms(ctx context.Context) int
	Wait()
}
