// Package submission assembles outgoing customer records and pushes them through
// the size guard to the customer API.
package submission

import (
	"strings"
	"unicode/utf8"

	"github.com/UnendingLoop/CustomerDesk/internal/guard"
	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/goccy/go-json"
)

const DefaultTextFieldCap = 100

type Adapter struct {
	textCap int
}

func NewAdapter(textCap int) *Adapter {
	if textCap <= 0 {
		textCap = DefaultTextFieldCap
	}
	return &Adapter{textCap: textCap}
}

// Build merges the form and the signature into the body accepted by the API.
// CPF goes digits-only, free text is cut to the cap.
func (a *Adapter) Build(form model.CustomerForm, signature string) model.CustomerPayload {
	return model.CustomerPayload{
		Name:         strings.TrimSpace(form.Name),
		Email:        strings.TrimSpace(form.Email),
		Phone:        strings.TrimSpace(form.Phone),
		CPF:          DigitsOnly(form.CPF),
		PurchaseDate: form.PurchaseDate,
		Delivery:     form.Delivery,
		ReturnDate:   form.ReturnDate,
		Password:     form.Password,
		Observation:  truncateRunes(form.Observation, a.textCap),
		Signature:    signature,
	}
}

// PayloadSize is the serialised length of p in bytes.
func (a *Adapter) PayloadSize(p model.CustomerPayload) (int, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// Measure binds the form so the guard can size candidate signatures.
func (a *Adapter) Measure(form model.CustomerForm) guard.Measure {
	return func(img model.EncodedImage) (int, error) {
		return a.PayloadSize(a.Build(form, img.DataURL()))
	}
}

// FormFromCustomer drops everything the server manages itself (id, history,
// timestamps, version) and trims dates to YYYY-MM-DD.
func FormFromCustomer(c model.Customer) model.CustomerForm {
	return model.CustomerForm{
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		CPF:          c.CPF,
		PurchaseDate: DateOnly(c.PurchaseDate),
		Delivery:     c.Delivery,
		ReturnDate:   DateOnly(c.ReturnDate),
		Password:     c.Password,
		Observation:  c.Observation,
	}
}

// DateOnly cuts an ISO timestamp down to its date part.
func DateOnly(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
