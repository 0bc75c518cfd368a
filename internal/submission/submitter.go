package submission

import (
	"context"
	"errors"

	"github.com/UnendingLoop/CustomerDesk/internal/guard"
	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/UnendingLoop/CustomerDesk/internal/mwlogger"
)

// CustomerAPI - контракт внешнего API клиентов
type CustomerAPI interface {
	CreateCustomer(ctx context.Context, p model.CustomerPayload) (*model.Customer, error)
	UpdateCustomer(ctx context.Context, id string, p model.CustomerPayload) (*model.Customer, error)
}

// Fitter - контракт гварда размера
type Fitter interface {
	Fit(ctx context.Context, raw *model.RawImage, profile guard.Profile, measure guard.Measure) (guard.Result, error)
}

// Attempt describes one submission, successful or not. It is what the audit log records.
type Attempt struct {
	Operation model.Operation
	Customer  *model.Customer
	Report    model.CompressionReport
	Outcome   model.Outcome
	// Sent is false when the request was blocked before reaching the API.
	Sent bool
}

type Submitter struct {
	api      CustomerAPI
	fitter   Fitter
	adapter  *Adapter
	profiles guard.Profiles
}

func NewSubmitter(api CustomerAPI, fitter Fitter, adapter *Adapter, profiles guard.Profiles) *Submitter {
	if adapter == nil {
		adapter = NewAdapter(DefaultTextFieldCap)
	}
	if profiles == nil {
		profiles = guard.DefaultProfiles()
	}
	return &Submitter{api: api, fitter: fitter, adapter: adapter, profiles: profiles}
}

// Create validates the CPF and requires a signature before anything is sent.
func (s *Submitter) Create(ctx context.Context, form model.CustomerForm, raw *model.RawImage) (*Attempt, error) {
	attempt := &Attempt{Operation: model.OpCreate, Outcome: model.OutcomeFailed}

	if !ValidCPF(form.CPF) {
		return attempt, model.ErrInvalidCPF
	}
	if isEmpty(raw) {
		return attempt, model.ErrEmptyInput
	}

	profile := s.profileFor(model.OpCreate, raw)
	signature, err := s.fit(ctx, form, raw, profile, attempt)
	if err != nil {
		return attempt, err
	}

	attempt.Sent = true
	customer, err := s.api.CreateCustomer(ctx, s.adapter.Build(form, signature))
	return s.finish(ctx, attempt, customer, err)
}

// Update replaces the signature when a new drawing or capture exists and keeps
// the stored one otherwise. Neither one is EmptyInput.
func (s *Submitter) Update(ctx context.Context, id string, form model.CustomerForm, raw *model.RawImage, existing string) (*Attempt, error) {
	attempt := &Attempt{Operation: model.OpUpdate, Outcome: model.OutcomeFailed}

	if id == "" {
		return attempt, model.ErrCustomerNotFound
	}

	signature := existing
	switch {
	case !isEmpty(raw):
		profile := s.profileFor(model.OpUpdate, raw)
		fitted, err := s.fit(ctx, form, raw, profile, attempt)
		if err != nil {
			return attempt, err
		}
		signature = fitted
	case existing == "":
		return attempt, model.ErrEmptyInput
	default:
		size, err := s.adapter.PayloadSize(s.adapter.Build(form, existing))
		if err != nil {
			return attempt, err
		}
		attempt.Report = model.CompressionReport{Bytes: size}
		// старые записи могут хранить подпись не в data URL - отправляем как есть
		if kept, err := model.ParseDataURL(existing); err == nil {
			attempt.Report.MIMEType = kept.MIMEType
		}
	}

	attempt.Sent = true
	customer, err := s.api.UpdateCustomer(ctx, id, s.adapter.Build(form, signature))
	return s.finish(ctx, attempt, customer, err)
}

func (s *Submitter) fit(ctx context.Context, form model.CustomerForm, raw *model.RawImage, profile guard.Profile, attempt *Attempt) (string, error) {
	res, err := s.fitter.Fit(ctx, raw, profile, s.adapter.Measure(form))
	if err != nil {
		return "", err
	}
	attempt.Report = model.CompressionReport{
		Attempts: res.Attempts,
		Bytes:    res.Bytes,
		MIMEType: res.Image.MIMEType,
	}
	return res.Image.DataURL(), nil
}

func (s *Submitter) finish(ctx context.Context, attempt *Attempt, customer *model.Customer, err error) (*Attempt, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if err != nil {
		attempt.Outcome = Classify(err)
		logger.Warn().Err(err).
			Str("operation", string(attempt.Operation)).
			Str("outcome", string(attempt.Outcome)).
			Int("bytes", attempt.Report.Bytes).
			Msg("Customer submission rejected")
		return attempt, err
	}

	attempt.Outcome = model.OutcomeAccepted
	attempt.Customer = customer
	logger.Info().
		Str("operation", string(attempt.Operation)).
		Int("bytes", attempt.Report.Bytes).
		Int("attempts", attempt.Report.Attempts).
		Msg("Customer submitted")
	return attempt, nil
}

// Classify maps a submission error to its audit outcome.
func Classify(err error) model.Outcome {
	switch {
	case err == nil:
		return model.OutcomeAccepted
	case errors.Is(err, model.ErrPayloadTooLarge):
		return model.OutcomeTooLarge
	default:
		return model.OutcomeFailed
	}
}

func (s *Submitter) profileFor(op model.Operation, raw *model.RawImage) guard.Profile {
	switch {
	case raw.Origin == model.OriginCamera:
		return s.profiles.Get(guard.ProfileCamera)
	case op == model.OpUpdate:
		return s.profiles.Get(guard.ProfileUpdate)
	default:
		return s.profiles.Get(guard.ProfileSignature)
	}
}

func isEmpty(raw *model.RawImage) bool {
	return raw == nil || raw.Image == nil || raw.Width() == 0 || raw.Height() == 0
}
