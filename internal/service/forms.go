package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/UnendingLoop/CustomerDesk/internal/capture"
	"github.com/UnendingLoop/CustomerDesk/internal/imageproc"
	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/UnendingLoop/CustomerDesk/internal/mwlogger"
	"github.com/google/uuid"
)

// formSession owns one drawing surface and at most one pending capture.
// A capture clears the drawing, a new stroke drops the capture.
type formSession struct {
	mu      sync.Mutex
	id      string
	canvas  *capture.Canvas
	camera  *capture.Camera
	pending *model.RawImage
	touched time.Time
	// revision растет на каждой правке рисунка или снимка
	revision uint64
}

// artifact is what a submission sends: the pending capture, else the drawing, else nil.
func (f *formSession) artifact() (*model.RawImage, error) {
	if f.pending != nil {
		return f.pending, nil
	}
	if f.canvas.IsEmpty() {
		return nil, nil
	}
	return f.canvas.Export()
}

func (f *formSession) state() model.FormState {
	st := model.FormState{
		ID:           f.id,
		HasDrawing:   !f.canvas.IsEmpty(),
		HasCapture:   f.pending != nil,
		CameraActive: f.camera.Active(),
	}
	if f.pending != nil {
		st.CaptureFrom = f.pending.Origin
		st.Width, st.Height = f.pending.Width(), f.pending.Height()
	} else {
		st.Width, st.Height = f.canvas.Size()
	}
	return st
}

func (f *formSession) reset() {
	f.canvas.Clear()
	f.pending = nil
	f.camera.Deactivate()
	f.revision++
}

func (s *DeskService) CreateForm(ctx context.Context) model.FormState {
	f := &formSession{
		id:      uuid.NewString(),
		canvas:  s.newCanvas(),
		camera:  s.newCamera(),
		touched: s.now(),
	}

	s.mu.Lock()
	s.forms[f.id] = f
	s.mu.Unlock()

	logger := mwlogger.LoggerFromContext(ctx)
	logger.Debug().Str("form_id", f.id).Msg("Form session opened")
	return f.state()
}

func (s *DeskService) DeleteForm(ctx context.Context, id string) error {
	s.mu.Lock()
	f, ok := s.forms[id]
	delete(s.forms, id)
	s.mu.Unlock()

	if !ok {
		return model.ErrFormNotFound
	}
	f.mu.Lock()
	f.camera.Deactivate()
	f.mu.Unlock()
	return nil
}

func (s *DeskService) FormState(ctx context.Context, id string) (model.FormState, error) {
	var st model.FormState
	err := s.withForm(id, func(f *formSession) error {
		st = f.state()
		return nil
	})
	return st, err
}

func (s *DeskService) AddStroke(ctx context.Context, id string, stroke capture.Stroke) error {
	return s.withForm(id, func(f *formSession) error {
		if err := f.canvas.AddStroke(stroke); err != nil {
			return err
		}
		// рисование вытесняет снимок
		f.pending = nil
		f.revision++
		return nil
	})
}

func (s *DeskService) ClearDrawing(ctx context.Context, id string) error {
	return s.withForm(id, func(f *formSession) error {
		f.canvas.Clear()
		f.revision++
		return nil
	})
}

// ExportDrawing returns the PNG baseline of the drawing surface.
func (s *DeskService) ExportDrawing(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.withForm(id, func(f *formSession) error {
		if f.canvas.IsEmpty() {
			return model.ErrEmptyInput
		}
		raw, err := f.canvas.Export()
		if err != nil {
			return err
		}
		data = raw.Original.Data
		return nil
	})
	return data, err
}

// UploadSignature takes an image produced elsewhere (browser canvas) as the pending artifact.
func (s *DeskService) UploadSignature(ctx context.Context, id string, data []byte) (model.FormState, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if len(data) == 0 {
		return model.FormState{}, model.ErrEmptySource
	}

	mime := imageproc.SniffMIME(data)
	if !model.InImageTypeMap[mime] {
		return model.FormState{}, model.ErrUnsupportedFormat
	}

	if _, err := s.lookup(id); err != nil {
		return model.FormState{}, err
	}

	raw, err := s.decoder.Decode(ctx, model.EncodedImage{MIMEType: mime, Data: data}, model.OriginUpload)
	if err != nil {
		logger.Warn().Err(err).Str("form_id", id).Msg("Failed to decode uploaded signature")
		return model.FormState{}, err
	}

	var st model.FormState
	err = s.withForm(id, func(f *formSession) error {
		f.pending = raw
		f.canvas.Clear()
		f.revision++
		st = f.state()
		return nil
	})
	return st, err
}

func (s *DeskService) ActivateCamera(ctx context.Context, id string) (model.FormState, error) {
	f, err := s.lookup(id)
	if err != nil {
		return model.FormState{}, err
	}

	// активация ходит в устройство - не держим лок формы
	if err := f.camera.Activate(ctx); err != nil {
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Warn().Err(err).Str("form_id", id).Msg("Camera unavailable, drawing stays usable")
		return model.FormState{}, err
	}

	var st model.FormState
	err = s.withForm(id, func(f *formSession) error {
		st = f.state()
		return nil
	})
	return st, err
}

func (s *DeskService) PreviewCamera(ctx context.Context, id string) ([]byte, string, error) {
	f, err := s.lookup(id)
	if err != nil {
		return nil, "", err
	}
	frame, err := f.camera.Preview(ctx)
	if err != nil {
		return nil, "", err
	}
	s.touch(f)

	mime := imageproc.SniffMIME(frame)
	if !model.InImageTypeMap[mime] {
		mime = model.JPEG
	}
	return frame, mime, nil
}

func (s *DeskService) CaptureCamera(ctx context.Context, id string) (model.FormState, error) {
	f, err := s.lookup(id)
	if err != nil {
		return model.FormState{}, err
	}

	raw, err := f.camera.Capture(ctx)
	if err != nil {
		return model.FormState{}, err
	}

	var st model.FormState
	err = s.withForm(id, func(f *formSession) error {
		// снимок вытесняет рисунок
		f.pending = raw
		f.canvas.Clear()
		f.revision++
		st = f.state()
		return nil
	})
	return st, err
}

// DiscardCapture drops the pending capture so the user can retake it.
func (s *DeskService) DiscardCapture(ctx context.Context, id string) (model.FormState, error) {
	var st model.FormState
	err := s.withForm(id, func(f *formSession) error {
		if f.pending == nil {
			return model.ErrNoPendingCapture
		}
		f.pending = nil
		f.revision++
		st = f.state()
		return nil
	})
	return st, err
}

func (s *DeskService) DeactivateCamera(ctx context.Context, id string) error {
	return s.withForm(id, func(f *formSession) error {
		f.camera.Deactivate()
		return nil
	})
}

// DropStaleForms closes sessions idle for longer than the form TTL.
func (s *DeskService) DropStaleForms(ctx context.Context) int {
	deadline := s.now().Add(-s.formTTL)

	s.mu.Lock()
	stale := make([]*formSession, 0)
	for id, f := range s.forms {
		f.mu.Lock()
		idle := f.touched.Before(deadline)
		f.mu.Unlock()
		if idle {
			stale = append(stale, f)
			delete(s.forms, id)
		}
	}
	s.mu.Unlock()

	for _, f := range stale {
		f.camera.Deactivate()
	}
	if len(stale) > 0 {
		logger := mwlogger.LoggerFromContext(ctx)
		logger.Info().Int("count", len(stale)).Msg("Dropped idle form sessions")
	}
	return len(stale)
}

func (s *DeskService) lookup(id string) (*formSession, error) {
	s.mu.RLock()
	f, ok := s.forms[id]
	s.mu.RUnlock()
	if !ok {
		return nil, model.ErrFormNotFound
	}
	return f, nil
}

func (s *DeskService) withForm(id string, fn func(f *formSession) error) error {
	f, err := s.lookup(id)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = s.now()
	return fn(f)
}

func (s *DeskService) touch(f *formSession) {
	f.mu.Lock()
	f.touched = s.now()
	f.mu.Unlock()
}

func isClientImageError(err error) bool {
	return errors.Is(err, model.ErrUnsupportedFormat) ||
		errors.Is(err, model.ErrEmptySource) ||
		errors.Is(err, model.ErrDecodeTimeout)
}
