package model

import (
	"errors"
	"fmt"
)

var (
	ErrCommon500          error = errors.New("something went wrong. Try again later")       // 500
	ErrIncorrectQuery     error = errors.New("incorrect query parameters")                  // 400
	ErrIncorrectID        error = errors.New("incorrect UUID")                              // 400
	ErrIncorrectBody      error = errors.New("incorrect request body")                      // 400
	ErrFormNotFound       error = errors.New("specified form doesn't exist")                // 404
	ErrCustomerNotFound   error = errors.New("specified customer doesn't exist")            // 404
	ErrSubmissionNotFound error = errors.New("specified submission doesn't exist")          // 404
	ErrInvalidStroke      error = errors.New("stroke must contain at least one point")      // 400
	ErrEmptySource        error = errors.New("empty/incorrect source image provided")       // 400
	ErrUnsupportedFormat  error = errors.New("unsupported image format")                    // 400
	ErrMalformedDataURL   error = errors.New("malformed image data URL")                    // 400
	ErrInvalidCPF         error = errors.New("invalid CPF. Check the digits and try again") // 422
	ErrUnauthorized       error = errors.New("authorization required")                      // 401
)

// ErrWeakCredentials - 400
var ErrWeakCredentials = errors.New("username must have at least 3 characters and password at least 6")

// Capture/compression taxonomy.
var (
	// ErrCaptureUnavailable - камера отсутствует или доступ запрещен; форма остается рабочей через рисование
	ErrCaptureUnavailable error = errors.New("camera is unavailable or access was denied") // 503
	ErrCameraInactive     error = errors.New("camera is not activated")                    // 409
	ErrNoPendingCapture   error = errors.New("no camera capture to discard")               // 409
	// ErrEmptyInput blocks submission before any network call.
	ErrEmptyInput      error = errors.New("please draw the signature or take a photo before continuing")           // 422
	ErrPayloadTooLarge error = errors.New("the signature is too large. Try a smaller or simpler signature")        // 413
	ErrDecodeTimeout   error = errors.New("image source did not decode in time")                                   // 504
	ErrEncoderMissing  error = errors.New("image encoder is not available in this runtime")                        // never surfaced
	ErrUpstream        error = errors.New("customer service is unavailable. Try again later")                      // 502
)

// SubmissionError - любой не-2xx ответ внешнего API (кроме 401/413) или ошибка транспорта
type SubmissionError struct {
	Status  int
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Status != 0:
		return fmt.Sprintf("customer service responded with status %d", e.Status)
	case e.Err != nil:
		return fmt.Sprintf("customer service request failed: %v", e.Err)
	default:
		return ErrUpstream.Error()
	}
}

func (e *SubmissionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUpstream
}

// Transient reports whether the failure is worth retrying for idempotent calls.
func (e *SubmissionError) Transient() bool {
	return e.Status == 0 || e.Status >= 500
}
