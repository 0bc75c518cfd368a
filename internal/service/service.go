// Package service provides business-logic for the app
package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/UnendingLoop/CustomerDesk/internal/capture"
	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/UnendingLoop/CustomerDesk/internal/repository"
	"github.com/UnendingLoop/CustomerDesk/internal/submission"
	"github.com/wb-go/wbf/retry"
)

// CustomerAPI - контракт клиента внешнего API (чтение и авторизация)
type CustomerAPI interface {
	Login(ctx context.Context, creds model.Credentials) error
	Register(ctx context.Context, creds model.Credentials) error
	Verify(ctx context.Context) error
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
}

// AuthSession - токен внешнего API
type AuthSession interface {
	Authenticated() bool
	Clear()
}

// Submitter - отправка клиента через гвард размера
type Submitter interface {
	Create(ctx context.Context, form model.CustomerForm, raw *model.RawImage) (*submission.Attempt, error)
	Update(ctx context.Context, id string, form model.CustomerForm, raw *model.RawImage, existing string) (*submission.Attempt, error)
}

// Decoder - декодирование загруженной картинки с таймаутом
type Decoder interface {
	Decode(ctx context.Context, src model.EncodedImage, origin model.Origin) (*model.RawImage, error)
}

// EventPublisher - контракт для работы с очередью
type EventPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// CaptureStorage - контракт для работы с хранилищем оригиналов
type CaptureStorage interface {
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
	Delete(ctx context.Context, key string) error
}

// Стратегия ретрая отправки в очередь
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

const (
	originalKeyPrefix = "originals/"
	defaultFormTTL    = 30 * time.Minute
)

// Deps - всё, что нужно сервису. Publisher, Storage и Repo могут быть nil: тогда аудит выключен.
type Deps struct {
	API       CustomerAPI
	Session   AuthSession
	Submitter Submitter
	Decoder   Decoder
	Publisher EventPublisher
	Storage   CaptureStorage
	Repo      repository.SubmissionRepo
	// NewCanvas и NewCamera создают поверхности для каждой новой формы
	NewCanvas func() *capture.Canvas
	NewCamera func() *capture.Camera
	FormTTL   time.Duration
}

type DeskService struct {
	api       CustomerAPI
	session   AuthSession
	submitter Submitter
	decoder   Decoder
	publisher EventPublisher
	storage   CaptureStorage
	repo      repository.SubmissionRepo

	newCanvas func() *capture.Canvas
	newCamera func() *capture.Camera
	formTTL   time.Duration

	mu    sync.RWMutex
	forms map[string]*formSession

	audits sync.WaitGroup
	now    func() time.Time
}

func NewDeskService(d Deps) *DeskService {
	s := &DeskService{
		api:       d.API,
		session:   d.Session,
		submitter: d.Submitter,
		decoder:   d.Decoder,
		publisher: d.Publisher,
		storage:   d.Storage,
		repo:      d.Repo,
		newCanvas: d.NewCanvas,
		newCamera: d.NewCamera,
		formTTL:   d.FormTTL,
		forms:     make(map[string]*formSession),
		now:       time.Now,
	}
	if s.newCanvas == nil {
		s.newCanvas = func() *capture.Canvas { return capture.NewCanvas(0, 0) }
	}
	if s.newCamera == nil {
		s.newCamera = func() *capture.Camera { return capture.NewCamera(nil, 0, 0) }
	}
	if s.formTTL <= 0 {
		s.formTTL = defaultFormTTL
	}
	return s
}

// Wait blocks until in-flight audit publications finish.
func (s *DeskService) Wait() {
	s.audits.Wait()
}
