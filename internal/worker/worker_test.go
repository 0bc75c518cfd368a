package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

func eventMessage(t *testing.T, s model.Submission) kafkago.Message {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(s.UID.String()), Value: data, Time: time.Now()}
}

func TestDecodeEvent(t *testing.T) {
	uid := uuid.New()
	valid := model.Submission{UID: uid, Operation: model.OpCreate, Outcome: model.OutcomeAccepted, Attempts: 1}

	tests := []struct {
		name    string
		msg     func(t *testing.T) kafkago.Message
		wantErr bool
	}{
		{"valid", func(t *testing.T) kafkago.Message { return eventMessage(t, valid) }, false},
		{"garbage", func(*testing.T) kafkago.Message {
			return kafkago.Message{Key: []byte(uid.String()), Value: []byte("{oops")}
		}, true},
		{"key mismatch", func(t *testing.T) kafkago.Message {
			m := eventMessage(t, valid)
			m.Key = []byte(uuid.NewString())
			return m
		}, true},
		{"unknown outcome", func(t *testing.T) kafkago.Message {
			s := valid
			s.Outcome = "lost"
			return eventMessage(t, s)
		}, true},
		{"unknown operation", func(t *testing.T) kafkago.Message {
			s := valid
			s.Operation = "delete"
			return eventMessage(t, s)
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := decodeEvent(tt.msg(t))
			if tt.wantErr {
				require.ErrorIs(t, err, errPoison)
				return
			}
			require.NoError(t, err)
			require.Equal(t, uid, sub.UID)
			require.NotNil(t, sub.CreatedAt)
		})
	}
}

var fastRetry = retry.Strategy{Attempts: 2, Delay: time.Millisecond, Backoff: 1}

func TestWorker_StartWorker(t *testing.T) {
	good := model.Submission{UID: uuid.New(), Operation: model.OpUpdate, Outcome: model.OutcomeTooLarge, Attempts: 3}
	flaky := model.Submission{UID: uuid.New(), Operation: model.OpCreate, Outcome: model.OutcomeFailed}

	var mu sync.Mutex
	var saved []uuid.UUID
	var committed []string
	flakyCalls := 0

	repo := &mockRepo{createFn: func(_ context.Context, s *model.Submission) error {
		mu.Lock()
		defer mu.Unlock()
		// БД лежит три вызова подряд - больше одного раунда повторов
		if s.UID == flaky.UID {
			flakyCalls++
			if flakyCalls <= 3 {
				return errors.New("db down")
			}
		}
		saved = append(saved, s.UID)
		return nil
	}}
	cons := &mockCommitter{commitFn: func(_ context.Context, msg kafkago.Message) error {
		mu.Lock()
		committed = append(committed, string(msg.Key))
		mu.Unlock()
		return nil
	}}

	queue := make(chan kafkago.Message, 3)
	queue <- eventMessage(t, good)
	queue <- eventMessage(t, flaky)
	queue <- kafkago.Message{Key: []byte("poison"), Value: []byte("not json")}
	close(queue)

	NewWorkerInstance(repo, queue, cons, fastRetry).StartWorker(context.Background())

	require.Equal(t, []uuid.UUID{good.UID, flaky.UID}, saved)
	require.Equal(t, 4, flakyCalls)
	// временный сбой БД переживаем на месте, мусор коммитим
	require.Equal(t, []string{good.UID.String(), flaky.UID.String(), "poison"}, committed)
}

func TestWorker_FailedSaveBlocksLaterCommits(t *testing.T) {
	failing := model.Submission{UID: uuid.New(), Operation: model.OpCreate, Outcome: model.OutcomeFailed}
	later := model.Submission{UID: uuid.New(), Operation: model.OpCreate, Outcome: model.OutcomeAccepted}

	var mu sync.Mutex
	var committed []string
	var saved []uuid.UUID

	repo := &mockRepo{createFn: func(_ context.Context, s *model.Submission) error {
		if s.UID == failing.UID {
			return errors.New("db down")
		}
		mu.Lock()
		saved = append(saved, s.UID)
		mu.Unlock()
		return nil
	}}
	cons := &mockCommitter{commitFn: func(_ context.Context, msg kafkago.Message) error {
		mu.Lock()
		committed = append(committed, string(msg.Key))
		mu.Unlock()
		return nil
	}}

	queue := make(chan kafkago.Message, 2)
	queue <- eventMessage(t, failing)
	queue <- eventMessage(t, later)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	NewWorkerInstance(repo, queue, cons, fastRetry).StartWorker(ctx)

	mu.Lock()
	defer mu.Unlock()
	require.Empty(t, committed)
	require.Empty(t, saved)
}

func TestWorker_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		NewWorkerInstance(&mockRepo{}, make(chan kafkago.Message), &mockCommitter{}, retry.Strategy{}).StartWorker(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
