package worker

import (
	"context"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	kafkago "github.com/segmentio/kafka-go"
)

type mockRepo struct {
	createFn func(ctx context.Context, s *model.Submission) error
}

func (m *mockRepo) Create(ctx context.Context, s *model.Submission) error {
	return m.createFn(ctx, s)
}

//----------------------------------

type mockCommitter struct {
	commitFn func(ctx context.Context, msg kafkago.Message) error
}

func (m *mockCommitter) Commit(ctx context.Context, msg kafkago.Message) error {
	return m.commitFn(ctx, msg)
}
