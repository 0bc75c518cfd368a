package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/UnendingLoop/CustomerDesk/internal/mwlogger"
	"github.com/UnendingLoop/CustomerDesk/internal/submission"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// audit archives the original artifact and publishes the submission event in
// the background. Nothing here can fail the user flow.
func (s *DeskService) audit(ctx context.Context, customerID string, raw *model.RawImage, attempt *submission.Attempt, subErr error) {
	if s.publisher == nil {
		return
	}

	now := time.Now().UTC()
	event := &model.Submission{
		UID:          uuid.New(),
		CustomerID:   customerID,
		Operation:    attempt.Operation,
		Outcome:      attempt.Outcome,
		Attempts:     attempt.Report.Attempts,
		PayloadBytes: attempt.Report.Bytes,
		MIMEType:     attempt.Report.MIMEType,
		CreatedAt:    &now,
	}
	if attempt.Customer != nil && attempt.Customer.ID != "" {
		event.CustomerID = attempt.Customer.ID
	}
	if subErr != nil {
		event.Message = subErr.Error()
	}

	var original model.EncodedImage
	if raw != nil {
		original = raw.Original
	}

	// запрос закончится раньше ретраев - отвязываемся от его отмены, но логгер оставляем
	bg := context.WithoutCancel(ctx)
	s.audits.Add(1)
	go func() {
		defer s.audits.Done()
		s.publishAudit(bg, event, original)
	}()
}

func (s *DeskService) publishAudit(ctx context.Context, event *model.Submission, original model.EncodedImage) {
	logger := mwlogger.LoggerFromContext(ctx)

	if s.storage != nil && !original.IsZero() {
		key := originalKeyPrefix + event.UID.String() + model.GetImageFileExt[original.MIMEType]
		if err := s.storage.Put(ctx, key, int64(len(original.Data)), original.MIMEType, bytes.NewReader(original.Data)); err != nil {
			logger.Error().Err(err).Str("uid", event.UID.String()).Msg("Failed to archive original capture")
		} else {
			event.OriginalKey = key
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode submission event")
		return
	}

	if err := s.publisher.SendWithRetry(ctx, retryStrategy, []byte(event.UID.String()), payload); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish submission %q to audit-queue", event.UID))
		// на оригинал без события никто не сошлется
		if event.OriginalKey != "" {
			if err := s.storage.Delete(ctx, event.OriginalKey); err != nil {
				logger.Warn().Err(err).Str("key", event.OriginalKey).Msg("Failed to remove orphaned original")
			}
		}
		return
	}
	logger.Debug().Str("uid", event.UID.String()).Str("outcome", string(event.Outcome)).Msg("Submission event published")
}

func (s *DeskService) GetSubmissions(ctx context.Context, req *model.ListRequest) ([]model.Submission, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if s.repo == nil {
		return []model.Submission{}, nil
	}
	validateQueryParams(req)

	res, err := s.repo.GetList(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch submissions list from DB")
		return nil, model.ErrCommon500
	}
	return res, nil
}

// LoadOriginal streams the archived original capture of a submission.
func (s *DeskService) LoadOriginal(ctx context.Context, id string) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if err := uuid.Validate(id); err != nil {
		return nil, "", model.ErrIncorrectID
	}
	if s.repo == nil || s.storage == nil {
		return nil, "", model.ErrSubmissionNotFound
	}

	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrSubmissionNotFound) {
			return nil, "", err
		}
		logger.Error().Err(err).Msg("Failed to fetch submission from DB")
		return nil, "", model.ErrCommon500
	}
	if sub.OriginalKey == "" {
		return nil, "", model.ErrSubmissionNotFound
	}

	file, ctype, err := s.storage.Get(ctx, sub.OriginalKey)
	if err != nil {
		if errors.Is(err, model.ErrSubmissionNotFound) {
			return nil, "", err
		}
		logger.Error().Err(err).Msg("Failed to load original capture from storage")
		return nil, "", model.ErrCommon500
	}
	return file, ctype, nil
}
