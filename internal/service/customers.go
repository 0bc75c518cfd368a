package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/UnendingLoop/CustomerDesk/internal/mwlogger"
	"github.com/UnendingLoop/CustomerDesk/internal/submission"
)

const dateLayout = "2006-01-02"

func (s *DeskService) Login(ctx context.Context, creds model.Credentials) error {
	if err := validateCredentials(&creds); err != nil {
		return err
	}
	return s.api.Login(ctx, creds)
}

func (s *DeskService) Register(ctx context.Context, creds model.Credentials) error {
	if err := validateCredentials(&creds); err != nil {
		return err
	}
	return s.api.Register(ctx, creds)
}

func (s *DeskService) Logout(ctx context.Context) {
	s.session.Clear()
	logger := mwlogger.LoggerFromContext(ctx)
	logger.Info().Msg("Session token cleared")
}

func (s *DeskService) Verify(ctx context.Context) error {
	return s.api.Verify(ctx)
}

// ListCustomers fetches the whole list and filters it locally: name match is
// case and accent insensitive, cpf match is a substring, dates are inclusive.
func (s *DeskService) ListCustomers(ctx context.Context, filter model.CustomerFilter) (*model.CustomerList, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	m, err := newMatcher(filter)
	if err != nil {
		return nil, err
	}

	all, err := s.api.ListCustomers(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch customers list from upstream")
		return nil, err
	}

	res := &model.CustomerList{Total: len(all), Customers: make([]model.Customer, 0, len(all))}
	for _, c := range all {
		if m.match(c) {
			res.Customers = append(res.Customers, c)
		}
	}
	res.Filtered = len(res.Customers)
	return res, nil
}

func (s *DeskService) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	if strings.TrimSpace(id) == "" {
		return nil, model.ErrIncorrectQuery
	}
	c, err := s.api.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	c.PurchaseDate = submission.DateOnly(c.PurchaseDate)
	c.ReturnDate = submission.DateOnly(c.ReturnDate)
	return c, nil
}

// SubmitCreate sends the form's artifact as a new customer. On success the form is reset.
func (s *DeskService) SubmitCreate(ctx context.Context, formID string, form model.CustomerForm) (*model.SubmitResult, error) {
	snap, err := s.snapshot(formID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.submitter.Create(ctx, form, snap.raw)
	return s.afterSubmit(ctx, snap, "", attempt, err)
}

// SubmitUpdate replaces the customer. Without a new artifact the stored signature is kept.
func (s *DeskService) SubmitUpdate(ctx context.Context, formID, customerID string, form model.CustomerForm) (*model.SubmitResult, error) {
	snap, err := s.snapshot(formID)
	if err != nil {
		return nil, err
	}

	existing, err := s.api.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	// поля, которые форма не прислала, берем из текущей записи
	merged := mergeForm(submission.FormFromCustomer(*existing), form)

	attempt, err := s.submitter.Update(ctx, customerID, merged, snap.raw, existing.Signature)
	return s.afterSubmit(ctx, snap, customerID, attempt, err)
}

// formSnapshot pins the artifact being sent and the form revision it came from.
type formSnapshot struct {
	form     *formSession
	raw      *model.RawImage
	revision uint64
}

func (s *DeskService) snapshot(formID string) (formSnapshot, error) {
	var snap formSnapshot
	err := s.withForm(formID, func(fs *formSession) error {
		raw, err := fs.artifact()
		snap = formSnapshot{form: fs, raw: raw, revision: fs.revision}
		return err
	})
	return snap, err
}

func (s *DeskService) afterSubmit(ctx context.Context, snap formSnapshot, customerID string, attempt *submission.Attempt, err error) (*model.SubmitResult, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	if attempt != nil && attempt.Sent {
		s.audit(ctx, customerID, snap.raw, attempt, err)
	}

	if err != nil {
		switch {
		case isClientImageError(err), isUpstreamError(err), isValidationError(err):
			return nil, err
		default:
			logger.Error().Err(err).Msg("Submission failed")
			return nil, model.ErrCommon500
		}
	}

	// пока шел запрос, пользователь мог дорисовать или переснять - такое не стираем
	f := snap.form
	f.mu.Lock()
	if f.revision == snap.revision {
		f.reset()
	} else {
		logger.Debug().Str("form_id", f.id).Msg("Form changed during submission, keeping it")
	}
	f.mu.Unlock()

	return &model.SubmitResult{Customer: attempt.Customer, Compression: attempt.Report}, nil
}

func isUpstreamError(err error) bool {
	var se *model.SubmissionError
	return errors.As(err, &se) ||
		errors.Is(err, model.ErrPayloadTooLarge) ||
		errors.Is(err, model.ErrUnauthorized) ||
		errors.Is(err, model.ErrCustomerNotFound)
}

func isValidationError(err error) bool {
	return errors.Is(err, model.ErrEmptyInput) || errors.Is(err, model.ErrInvalidCPF)
}

func validateCredentials(c *model.Credentials) error {
	c.Username = strings.TrimSpace(c.Username)
	if len([]rune(c.Username)) < 3 || len([]rune(c.Password)) < 6 {
		return model.ErrWeakCredentials
	}
	return nil
}

func mergeForm(base, in model.CustomerForm) model.CustomerForm {
	pick := func(v, def string) string {
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	}
	return model.CustomerForm{
		Name:         pick(in.Name, base.Name),
		Email:        pick(in.Email, base.Email),
		Phone:        pick(in.Phone, base.Phone),
		CPF:          pick(in.CPF, base.CPF),
		PurchaseDate: pick(in.PurchaseDate, base.PurchaseDate),
		Delivery:     in.Delivery,
		ReturnDate:   pick(in.ReturnDate, base.ReturnDate),
		Password:     pick(in.Password, base.Password),
		Observation:  pick(in.Observation, base.Observation),
	}
}

type matcher struct {
	search string
	digits string
	from   time.Time
	to     time.Time
}

func newMatcher(filter model.CustomerFilter) (*matcher, error) {
	m := &matcher{
		search: fold(strings.TrimSpace(filter.Search)),
		digits: submission.DigitsOnly(filter.Search),
	}

	var err error
	if v := strings.TrimSpace(filter.PurchaseFrom); v != "" {
		if m.from, err = time.Parse(dateLayout, v); err != nil {
			return nil, model.ErrIncorrectQuery
		}
	}
	if v := strings.TrimSpace(filter.PurchaseTo); v != "" {
		if m.to, err = time.Parse(dateLayout, v); err != nil {
			return nil, model.ErrIncorrectQuery
		}
	}
	if !m.from.IsZero() && !m.to.IsZero() && m.to.Before(m.from) {
		return nil, model.ErrIncorrectQuery
	}
	return m, nil
}

func (m *matcher) match(c model.Customer) bool {
	if m.search != "" {
		byName := strings.Contains(fold(c.Name), m.search)
		byCPF := strings.Contains(c.CPF, m.search) ||
			(m.digits != "" && strings.Contains(submission.DigitsOnly(c.CPF), m.digits))
		if !byName && !byCPF {
			return false
		}
	}

	if m.from.IsZero() && m.to.IsZero() {
		return true
	}
	purchased, err := time.Parse(dateLayout, submission.DateOnly(c.PurchaseDate))
	if err != nil {
		return false
	}
	if !m.from.IsZero() && purchased.Before(m.from) {
		return false
	}
	if !m.to.IsZero() && purchased.After(m.to) {
		return false
	}
	return true
}
