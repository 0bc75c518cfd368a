package service

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/UnendingLoop/CustomerDesk/internal/submission"
	"github.com/wb-go/wbf/retry"
)

// MOCK CUSTOMER API

type mockAPI struct {
	loginFn    func(ctx context.Context, creds model.Credentials) error
	registerFn func(ctx context.Context, creds model.Credentials) error
	verifyFn   func(ctx context.Context) error
	listFn     func(ctx context.Context) ([]model.Customer, error)
	getFn      func(ctx context.Context, id string) (*model.Customer, error)
}

func (m *mockAPI) Login(ctx context.Context, creds model.Credentials) error {
	return m.loginFn(ctx, creds)
}

func (m *mockAPI) Register(ctx context.Context, creds model.Credentials) error {
	return m.registerFn(ctx, creds)
}

func (m *mockAPI) Verify(ctx context.Context) error {
	return m.verifyFn(ctx)
}

func (m *mockAPI) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return m.listFn(ctx)
}

func (m *mockAPI) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	return m.getFn(ctx, id)
}

// MOCK SESSION

type mockSession struct {
	token string
}

func (m *mockSession) Authenticated() bool { return m.token != "" }
func (m *mockSession) Clear()              { m.token = "" }

// MOCK SUBMITTER

type mockSubmitter struct {
	createFn func(ctx context.Context, form model.CustomerForm, raw *model.RawImage) (*submission.Attempt, error)
	updateFn func(ctx context.Context, id string, form model.CustomerForm, raw *model.RawImage, existing string) (*submission.Attempt, error)
}

func (m *mockSubmitter) Create(ctx context.Context, form model.CustomerForm, raw *model.RawImage) (*submission.Attempt, error) {
	return m.createFn(ctx, form, raw)
}

func (m *mockSubmitter) Update(ctx context.Context, id string, form model.CustomerForm, raw *model.RawImage, existing string) (*submission.Attempt, error) {
	return m.updateFn(ctx, id, form, raw, existing)
}

// MOCK PUBLISHER

type mockPublisher struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
	sent   [][]byte
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error {
	m.mu.Lock()
	m.sent = append(m.sent, v)
	m.mu.Unlock()
	if m.sendFn == nil {
		return nil
	}
	return m.sendFn(ctx, strategy, key, v)
}

// MOCK STORAGE

type mockStorage struct {
	mu      sync.Mutex
	putFn   func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	getFn   func(ctx context.Context, key string) (io.ReadCloser, string, error)
	keys    []string
	deleted []string
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	m.mu.Lock()
	m.keys = append(m.keys, key)
	m.mu.Unlock()
	if m.putFn == nil {
		return nil
	}
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, key)
	m.mu.Unlock()
	return nil
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	return m.getFn(ctx, key)
}

// MOCK REPO

type mockRepo struct {
	createFn  func(ctx context.Context, s *model.Submission) error
	getFn     func(ctx context.Context, id string) (*model.Submission, error)
	getListFn func(ctx context.Context, req *model.ListRequest) ([]model.Submission, error)
}

func (m *mockRepo) Create(ctx context.Context, s *model.Submission) error {
	return m.createFn(ctx, s)
}

func (m *mockRepo) Get(ctx context.Context, id string) (*model.Submission, error) {
	return m.getFn(ctx, id)
}

func (m *mockRepo) GetList(ctx context.Context, req *model.ListRequest) ([]model.Submission, error) {
	return m.getListFn(ctx, req)
}

// MOCK DECODER

type mockDecoder struct {
	decodeFn func(ctx context.Context, src model.EncodedImage, origin model.Origin) (*model.RawImage, error)
}

func (m *mockDecoder) Decode(ctx context.Context, src model.EncodedImage, origin model.Origin) (*model.RawImage, error) {
	return m.decodeFn(ctx, src, origin)
}

//---------------------

type readCloser struct {
	*bytes.Reader
}

func (readCloser) Close() error { return nil }
