package main

import (
	"context"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
)

// SubmissionWorkerRepo - воркеру нужна только запись в журнал
type SubmissionWorkerRepo interface {
	Create(ctx context.Context, s *model.Submission) error
}
