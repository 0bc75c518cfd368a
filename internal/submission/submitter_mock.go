package submission

import (
	"context"

	"github.com/UnendingLoop/CustomerDesk/internal/guard"
	"github.com/UnendingLoop/CustomerDesk/internal/model"
)

// MOCK CUSTOMER API

type mockAPI struct {
	createFn func(ctx context.Context, p model.CustomerPayload) (*model.Customer, error)
	updateFn func(ctx context.Context, id string, p model.CustomerPayload) (*model.Customer, error)
}

func (m *mockAPI) CreateCustomer(ctx context.Context, p model.CustomerPayload) (*model.Customer, error) {
	return m.createFn(ctx, p)
}

func (m *mockAPI) UpdateCustomer(ctx context.Context, id string, p model.CustomerPayload) (*model.Customer, error) {
	return m.updateFn(ctx, id, p)
}

// MOCK FITTER

type mockFitter struct {
	fitFn func(ctx context.Context, raw *model.RawImage, profile guard.Profile, measure guard.Measure) (guard.Result, error)
}

func (m *mockFitter) Fit(ctx context.Context, raw *model.RawImage, profile guard.Profile, measure guard.Measure) (guard.Result, error) {
	return m.fitFn(ctx, raw, profile, measure)
}
