// Package apiclient talks to the remote customer REST API.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/UnendingLoop/CustomerDesk/internal/mwlogger"
	"github.com/goccy/go-json"
	"github.com/sethvargo/go-retry"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetries  = 2
	defaultBackoff  = 300 * time.Millisecond
	maxResponseSize = 64 << 20
)

type Client struct {
	baseURL string
	http    *http.Client
	session *Session
	retries uint64
	backoff time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetry sets how many times idempotent reads are repeated after a transient failure.
func WithRetry(retries uint64, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func New(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session = NewSession(nil)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		session: session,
		retries: defaultRetries,
		backoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() *Session {
	return c.session
}

type tokenResponse struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Login stores the returned token in the session.
func (c *Client) Login(ctx context.Context, creds model.Credentials) error {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return &model.SubmissionError{Message: "login response carries no token"}
	}
	c.session.SetToken(resp.Token)
	return nil
}

func (c *Client) Register(ctx context.Context, creds model.Credentials) error {
	return c.do(ctx, http.MethodPost, "/auth/register", creds, nil)
}

// Verify checks the stored token. Any failure, not only 401, drops it.
func (c *Client) Verify(ctx context.Context) error {
	if !c.session.Authenticated() {
		return model.ErrUnauthorized
	}
	if err := c.do(ctx, http.MethodGet, "/auth/verify", nil, nil); err != nil {
		if !errors.Is(err, model.ErrUnauthorized) {
			c.session.Clear()
		}
		return err
	}
	return nil
}

func (c *Client) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	var res []model.Customer
	err := c.withRetry(ctx, func(ctx context.Context) error {
		res = nil
		return c.do(ctx, http.MethodGet, "/customers", nil, &res)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	var res model.Customer
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(id), nil, &res)
	})
	if err != nil {
		return nil, notFound(err)
	}
	return &res, nil
}

// CreateCustomer is never retried: a lost response could duplicate the record.
func (c *Client) CreateCustomer(ctx context.Context, p model.CustomerPayload) (*model.Customer, error) {
	var res model.Customer
	if err := c.do(ctx, http.MethodPost, "/customers", p, &res); err != nil {
		return nil, err
	}
	return fillFromPayload(&res, p), nil
}

func (c *Client) UpdateCustomer(ctx context.Context, id string, p model.CustomerPayload) (*model.Customer, error) {
	var res model.Customer
	if err := c.do(ctx, http.MethodPut, "/customers/"+url.PathEscape(id), p, &res); err != nil {
		return nil, notFound(err)
	}
	if res.ID == "" {
		res.ID = id
	}
	return fillFromPayload(&res, p), nil
}

func (c *Client) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	logger := mwlogger.LoggerFromContext(ctx)
	b := retry.WithMaxRetries(c.retries, retry.NewExponential(c.backoff))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		var se *model.SubmissionError
		if errors.As(err, &se) && se.Transient() {
			logger.Warn().Err(err).Msg("Customer API read failed, retrying")
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &model.SubmissionError{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.session.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &model.SubmissionError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &model.SubmissionError{Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return &model.SubmissionError{Status: resp.StatusCode, Message: "unexpected response from customer service", Err: err}
		}
		return nil
	}

	return c.statusError(resp.StatusCode, respBody)
}

func (c *Client) statusError(status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized:
		c.session.invalidate()
		return model.ErrUnauthorized
	case http.StatusRequestEntityTooLarge:
		return model.ErrPayloadTooLarge
	}

	var er errorResponse
	_ = json.Unmarshal(body, &er)
	msg := er.Message
	if msg == "" {
		msg = er.Error
	}
	return &model.SubmissionError{Status: status, Message: msg}
}

func notFound(err error) error {
	var se *model.SubmissionError
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		return model.ErrCustomerNotFound
	}
	return err
}

// fillFromPayload covers APIs that answer 201/200 with a bare acknowledgement.
func fillFromPayload(res *model.Customer, p model.CustomerPayload) *model.Customer {
	if res.Name == "" && res.CPF == "" {
		res.Name = p.Name
		res.Email = p.Email
		res.Phone = p.Phone
		res.CPF = p.CPF
		res.PurchaseDate = p.PurchaseDate
		res.Delivery = p.Delivery
		res.ReturnDate = p.ReturnDate
		res.Observation = p.Observation
		res.Signature = p.Signature
	}
	return res
}
