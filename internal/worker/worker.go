// Package worker consumes submission audit events and persists them
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/retry"
)

// errPoison - сообщение, которое никогда не обработается; коммитим и идем дальше
var errPoison = errors.New("malformed submission event")

type SubmissionSaver interface {
	Create(ctx context.Context, s *model.Submission) error
}

// Committer - wbf-консюмер подходит как есть
type Committer interface {
	Commit(ctx context.Context, msg kafkago.Message) error
}

type Worker struct {
	repo      SubmissionSaver
	queue     <-chan kafkago.Message
	committer Committer
	saveRetry retry.Strategy
}

// NewWorkerInstance - saveRetry задает один раунд повторов записи в БД;
// раунды повторяются, пока запись не пройдет или не закроется контекст.
func NewWorkerInstance(repo SubmissionSaver, q <-chan kafkago.Message, cons Committer, saveRetry retry.Strategy) *Worker {
	if saveRetry.Attempts < 1 {
		saveRetry.Attempts = 1
	}
	return &Worker{repo: repo, queue: q, committer: cons, saveRetry: saveRetry}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				log.Println("Queue channel closed, stopping worker...")
				return
			}
			if err := w.handle(ctx, msg); err != nil {
				if !errors.Is(err, errPoison) {
					// контекст закрыт до записи - офсет не двигаем, событие придет снова
					log.Printf("Submission event %s left uncommitted: %v", string(msg.Key), err)
					return
				}
				log.Printf("Skipping submission event %s: %v", string(msg.Key), err)
			}
			if err := w.committer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit queue-message: %v", err)
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg kafkago.Message) error {
	sub, err := decodeEvent(msg)
	if err != nil {
		return err
	}

	return w.save(ctx, sub)
}

// save не отпускает событие, пока оно не записано: следующий коммит
// сдвинул бы офсет мимо него.
func (w *Worker) save(ctx context.Context, sub *model.Submission) error {
	for {
		err := retry.DoContext(ctx, w.saveRetry, func() error {
			return w.repo.Create(ctx, sub)
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("worker failed to save submission %q to DB: %w", sub.UID, ctx.Err())
		}
		log.Printf("Saving submission %s still failing, retrying: %v", sub.UID, err)
	}
}

func decodeEvent(msg kafkago.Message) (*model.Submission, error) {
	var sub model.Submission
	if err := json.Unmarshal(msg.Value, &sub); err != nil {
		return nil, fmt.Errorf("%w: %v", errPoison, err)
	}

	switch {
	case sub.UID.String() != string(msg.Key):
		return nil, fmt.Errorf("%w: key %q doesn't match uid %q", errPoison, msg.Key, sub.UID)
	case sub.Operation != model.OpCreate && sub.Operation != model.OpUpdate:
		return nil, fmt.Errorf("%w: unknown operation %q", errPoison, sub.Operation)
	case !model.OutcomesMap[sub.Outcome]:
		return nil, fmt.Errorf("%w: unknown outcome %q", errPoison, sub.Outcome)
	}

	if sub.CreatedAt == nil {
		ts := msg.Time.UTC()
		if msg.Time.IsZero() {
			ts = time.Now().UTC()
		}
		sub.CreatedAt = &ts
	}
	return &sub, nil
}
