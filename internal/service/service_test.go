package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/UnendingLoop/CustomerDesk/internal/capture"
	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/UnendingLoop/CustomerDesk/internal/submission"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

type mockDevice struct {
	frame []byte
	err   error
}

func (m *mockDevice) Snapshot(context.Context, int, int) ([]byte, error) {
	return m.frame, m.err
}

func encodeFrame(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 40, G: 40, B: 40, A: 255}), format))
	return buf.Bytes()
}

func newTestService(t *testing.T, d Deps) *DeskService {
	t.Helper()
	if d.NewCanvas == nil {
		d.NewCanvas = func() *capture.Canvas { return capture.NewCanvas(200, 100) }
	}
	if d.NewCamera == nil {
		frame := encodeFrame(t, 640, 480, imaging.JPEG)
		d.NewCamera = func() *capture.Camera { return capture.NewCamera(&mockDevice{frame: frame}, 640, 480) }
	}
	if d.Session == nil {
		d.Session = &mockSession{}
	}
	return NewDeskService(d)
}

var line = capture.Stroke{{X: 10, Y: 50}, {X: 190, Y: 50}}

func TestForms_Lifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Deps{})

	st := svc.CreateForm(ctx)
	require.NoError(t, uuid.Validate(st.ID))
	require.False(t, st.HasDrawing)
	require.Equal(t, 200, st.Width)

	_, err := svc.ExportDrawing(ctx, st.ID)
	require.ErrorIs(t, err, model.ErrEmptyInput)

	require.ErrorIs(t, svc.AddStroke(ctx, st.ID, nil), model.ErrInvalidStroke)
	require.NoError(t, svc.AddStroke(ctx, st.ID, line))

	png, err := svc.ExportDrawing(ctx, st.ID)
	require.NoError(t, err)
	require.True(t, mimetype.Detect(png).Is(model.PNG))

	require.NoError(t, svc.ClearDrawing(ctx, st.ID))
	st, err = svc.FormState(ctx, st.ID)
	require.NoError(t, err)
	require.False(t, st.HasDrawing)

	require.NoError(t, svc.DeleteForm(ctx, st.ID))
	require.ErrorIs(t, svc.DeleteForm(ctx, st.ID), model.ErrFormNotFound)
	require.ErrorIs(t, svc.AddStroke(ctx, st.ID, line), model.ErrFormNotFound)
}

func TestForms_AtMostOnePendingArtifact(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Deps{})
	id := svc.CreateForm(ctx).ID

	require.NoError(t, svc.AddStroke(ctx, id, line))

	_, err := svc.CaptureCamera(ctx, id)
	require.ErrorIs(t, err, model.ErrCameraInactive)

	st, err := svc.ActivateCamera(ctx, id)
	require.NoError(t, err)
	require.True(t, st.CameraActive)

	frame, mime, err := svc.PreviewCamera(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, frame)
	require.Equal(t, model.JPEG, mime)

	// снимок вытесняет рисунок
	st, err = svc.CaptureCamera(ctx, id)
	require.NoError(t, err)
	require.True(t, st.HasCapture)
	require.False(t, st.HasDrawing)
	require.Equal(t, model.OriginCamera, st.CaptureFrom)
	require.Equal(t, 640, st.Width)

	// переснять
	st, err = svc.DiscardCapture(ctx, id)
	require.NoError(t, err)
	require.False(t, st.HasCapture)
	_, err = svc.DiscardCapture(ctx, id)
	require.ErrorIs(t, err, model.ErrNoPendingCapture)

	// новый штрих вытесняет снимок
	_, err = svc.CaptureCamera(ctx, id)
	require.NoError(t, err)
	require.NoError(t, svc.AddStroke(ctx, id, line))
	st, err = svc.FormState(ctx, id)
	require.NoError(t, err)
	require.False(t, st.HasCapture)
	require.True(t, st.HasDrawing)

	require.NoError(t, svc.DeactivateCamera(ctx, id))
	_, _, err = svc.PreviewCamera(ctx, id)
	require.ErrorIs(t, err, model.ErrCameraInactive)
}

func TestForms_CameraUnavailableKeepsDrawing(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Deps{NewCamera: func() *capture.Camera {
		return capture.NewCamera(&mockDevice{err: errors.New("permission denied")}, 0, 0)
	}})
	id := svc.CreateForm(ctx).ID

	_, err := svc.ActivateCamera(ctx, id)
	require.ErrorIs(t, err, model.ErrCaptureUnavailable)

	require.NoError(t, svc.AddStroke(ctx, id, line))
	st, err := svc.FormState(ctx, id)
	require.NoError(t, err)
	require.True(t, st.HasDrawing)
	require.False(t, st.CameraActive)
}

func TestForms_UploadSignature(t *testing.T) {
	ctx := context.Background()
	pngData := encodeFrame(t, 300, 120, imaging.PNG)

	dec := &mockDecoder{decodeFn: func(_ context.Context, src model.EncodedImage, origin model.Origin) (*model.RawImage, error) {
		require.Equal(t, model.PNG, src.MIMEType)
		require.Equal(t, model.OriginUpload, origin)
		return &model.RawImage{Image: image.NewNRGBA(image.Rect(0, 0, 300, 120)), Origin: origin, Original: src}, nil
	}}
	svc := newTestService(t, Deps{Decoder: dec})
	id := svc.CreateForm(ctx).ID
	require.NoError(t, svc.AddStroke(ctx, id, line))

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", nil, model.ErrEmptySource},
		{"not an image", []byte("%PDF-1.7 hello"), model.ErrUnsupportedFormat},
		{"png", pngData, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := svc.UploadSignature(ctx, id, tt.data)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.True(t, st.HasCapture)
			require.False(t, st.HasDrawing)
			require.Equal(t, model.OriginUpload, st.CaptureFrom)
		})
	}
}

func TestForms_DropStale(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, Deps{FormTTL: time.Minute})

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }
	old := svc.CreateForm(ctx).ID

	svc.now = func() time.Time { return base.Add(50 * time.Second) }
	fresh := svc.CreateForm(ctx).ID

	svc.now = func() time.Time { return base.Add(90 * time.Second) }
	require.Equal(t, 1, svc.DropStaleForms(ctx))

	_, err := svc.FormState(ctx, old)
	require.ErrorIs(t, err, model.ErrFormNotFound)
	_, err = svc.FormState(ctx, fresh)
	require.NoError(t, err)
}

func TestSubmitCreate(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("encoder crashed")

	tests := []struct {
		name        string
		draw        bool
		attempt     *submission.Attempt
		subErr      error
		wantErr     error
		wantRawNil  bool
		wantEvents  int
		wantReset   bool
		wantOutcome model.Outcome
	}{
		{
			name:       "empty form blocked",
			attempt:    &submission.Attempt{Operation: model.OpCreate, Outcome: model.OutcomeFailed},
			subErr:     model.ErrEmptyInput,
			wantErr:    model.ErrEmptyInput,
			wantRawNil: true,
		},
		{
			name: "accepted",
			draw: true,
			attempt: &submission.Attempt{
				Operation: model.OpCreate, Outcome: model.OutcomeAccepted, Sent: true,
				Customer: &model.Customer{ID: "c1"},
				Report:   model.CompressionReport{Attempts: 2, Bytes: 21000, MIMEType: model.JPEG},
			},
			wantEvents:  1,
			wantReset:   true,
			wantOutcome: model.OutcomeAccepted,
		},
		{
			name:        "too large",
			draw:        true,
			attempt:     &submission.Attempt{Operation: model.OpCreate, Outcome: model.OutcomeTooLarge, Sent: true},
			subErr:      model.ErrPayloadTooLarge,
			wantErr:     model.ErrPayloadTooLarge,
			wantEvents:  1,
			wantOutcome: model.OutcomeTooLarge,
		},
		{
			name:    "internal failure hidden",
			draw:    true,
			attempt: &submission.Attempt{Operation: model.OpCreate, Outcome: model.OutcomeFailed},
			subErr:  boom,
			wantErr: model.ErrCommon500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &mockPublisher{}
			strg := &mockStorage{}
			sub := &mockSubmitter{createFn: func(_ context.Context, form model.CustomerForm, raw *model.RawImage) (*submission.Attempt, error) {
				require.Equal(t, "Maria", form.Name)
				if tt.wantRawNil {
					require.Nil(t, raw)
				} else {
					require.Equal(t, model.OriginDrawing, raw.Origin)
				}
				return tt.attempt, tt.subErr
			}}
			svc := newTestService(t, Deps{Submitter: sub, Publisher: pub, Storage: strg})

			id := svc.CreateForm(ctx).ID
			if tt.draw {
				require.NoError(t, svc.AddStroke(ctx, id, line))
			}

			res, err := svc.SubmitCreate(ctx, id, model.CustomerForm{Name: "Maria"})
			svc.Wait()

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, "c1", res.Customer.ID)
				require.Equal(t, 2, res.Compression.Attempts)
			}

			require.Len(t, pub.sent, tt.wantEvents)
			if tt.wantEvents > 0 {
				var ev model.Submission
				require.NoError(t, json.Unmarshal(pub.sent[0], &ev))
				require.Equal(t, tt.wantOutcome, ev.Outcome)
				require.Equal(t, "originals/"+ev.UID.String()+".png", ev.OriginalKey)
				require.Equal(t, []string{ev.OriginalKey}, strg.keys)
			}

			st, err := svc.FormState(ctx, id)
			require.NoError(t, err)
			require.Equal(t, tt.draw && !tt.wantReset, st.HasDrawing)
		})
	}
}

func TestSubmitCreate_AuditFailureDoesNotFailFlow(t *testing.T) {
	ctx := context.Background()
	pub := &mockPublisher{sendFn: func(context.Context, retry.Strategy, []byte, []byte) error {
		return errors.New("kafka down")
	}}
	strg := &mockStorage{putFn: func(context.Context, string, int64, string, io.Reader) error {
		return errors.New("minio down")
	}}
	sub := &mockSubmitter{createFn: func(context.Context, model.CustomerForm, *model.RawImage) (*submission.Attempt, error) {
		return &submission.Attempt{Operation: model.OpCreate, Outcome: model.OutcomeAccepted, Sent: true, Customer: &model.Customer{ID: "c1"}}, nil
	}}
	svc := newTestService(t, Deps{Submitter: sub, Publisher: pub, Storage: strg})

	id := svc.CreateForm(ctx).ID
	require.NoError(t, svc.AddStroke(ctx, id, line))

	_, err := svc.SubmitCreate(ctx, id, model.CustomerForm{})
	svc.Wait()
	require.NoError(t, err)

	var ev model.Submission
	require.NoError(t, json.Unmarshal(pub.sent[0], &ev))
	require.Empty(t, ev.OriginalKey)
	require.Empty(t, strg.deleted)
}

func TestSubmitCreate_UnpublishedOriginalRemoved(t *testing.T) {
	ctx := context.Background()
	pub := &mockPublisher{sendFn: func(context.Context, retry.Strategy, []byte, []byte) error {
		return errors.New("kafka down")
	}}
	strg := &mockStorage{}
	sub := &mockSubmitter{createFn: func(context.Context, model.CustomerForm, *model.RawImage) (*submission.Attempt, error) {
		return &submission.Attempt{Operation: model.OpCreate, Outcome: model.OutcomeAccepted, Sent: true, Customer: &model.Customer{ID: "c1"}}, nil
	}}
	svc := newTestService(t, Deps{Submitter: sub, Publisher: pub, Storage: strg})

	id := svc.CreateForm(ctx).ID
	require.NoError(t, svc.AddStroke(ctx, id, line))

	_, err := svc.SubmitCreate(ctx, id, model.CustomerForm{})
	svc.Wait()
	require.NoError(t, err)

	require.Len(t, strg.keys, 1)
	require.Equal(t, strg.keys, strg.deleted)
}

func TestSubmitCreate_KeepsEditsMadeInFlight(t *testing.T) {
	ctx := context.Background()
	var svc *DeskService
	var id string

	sub := &mockSubmitter{createFn: func(_ context.Context, _ model.CustomerForm, raw *model.RawImage) (*submission.Attempt, error) {
		require.NotNil(t, raw)
		// пользователь начал следующую подпись, пока ждали ответ API
		require.NoError(t, svc.ClearDrawing(ctx, id))
		require.NoError(t, svc.AddStroke(ctx, id, capture.Stroke{{X: 20, Y: 20}, {X: 60, Y: 80}}))
		return &submission.Attempt{Operation: model.OpCreate, Outcome: model.OutcomeAccepted, Sent: true, Customer: &model.Customer{ID: "c1"}}, nil
	}}
	svc = newTestService(t, Deps{Submitter: sub})

	id = svc.CreateForm(ctx).ID
	require.NoError(t, svc.AddStroke(ctx, id, line))

	res, err := svc.SubmitCreate(ctx, id, model.CustomerForm{})
	svc.Wait()
	require.NoError(t, err)
	require.Equal(t, "c1", res.Customer.ID)

	st, err := svc.FormState(ctx, id)
	require.NoError(t, err)
	require.True(t, st.HasDrawing)

	// без правок в полете форма очищается
	sub.createFn = func(context.Context, model.CustomerForm, *model.RawImage) (*submission.Attempt, error) {
		return &submission.Attempt{Operation: model.OpCreate, Outcome: model.OutcomeAccepted, Sent: true, Customer: &model.Customer{ID: "c2"}}, nil
	}
	_, err = svc.SubmitCreate(ctx, id, model.CustomerForm{})
	svc.Wait()
	require.NoError(t, err)

	st, err = svc.FormState(ctx, id)
	require.NoError(t, err)
	require.False(t, st.HasDrawing)
}

func TestSubmitUpdate(t *testing.T) {
	ctx := context.Background()
	existing := &model.Customer{
		ID:           "c1",
		Name:         "João",
		Phone:        "1100",
		CPF:          "52998224725",
		PurchaseDate: "2025-01-02T00:00:00.000Z",
		Signature:    "data:image/png;base64,iVBORw0KGgo=",
	}

	api := &mockAPI{getFn: func(_ context.Context, id string) (*model.Customer, error) {
		if id != "c1" {
			return nil, model.ErrCustomerNotFound
		}
		c := *existing
		return &c, nil
	}}
	sub := &mockSubmitter{updateFn: func(_ context.Context, id string, form model.CustomerForm, raw *model.RawImage, sig string) (*submission.Attempt, error) {
		require.Equal(t, "c1", id)
		require.Nil(t, raw)
		require.Equal(t, existing.Signature, sig)
		require.Equal(t, "João", form.Name)
		require.Equal(t, "2199", form.Phone)
		require.Equal(t, "2025-01-02", form.PurchaseDate)
		return &submission.Attempt{Operation: model.OpUpdate, Outcome: model.OutcomeAccepted, Sent: true, Customer: &model.Customer{ID: id}}, nil
	}}
	svc := newTestService(t, Deps{API: api, Submitter: sub})
	id := svc.CreateForm(ctx).ID

	res, err := svc.SubmitUpdate(ctx, id, "c1", model.CustomerForm{Phone: "2199"})
	require.NoError(t, err)
	require.Equal(t, "c1", res.Customer.ID)

	_, err = svc.SubmitUpdate(ctx, id, "nope", model.CustomerForm{})
	require.ErrorIs(t, err, model.ErrCustomerNotFound)
}

func TestListCustomers(t *testing.T) {
	customers := []model.Customer{
		{ID: "1", Name: "João Silva", CPF: "52998224725", PurchaseDate: "2025-01-10T00:00:00.000Z"},
		{ID: "2", Name: "MARIA JOSÉ", CPF: "11144477735", PurchaseDate: "2025-02-01"},
		{ID: "3", Name: "Ana", CPF: "12345678909", PurchaseDate: ""},
	}
	api := &mockAPI{listFn: func(context.Context) ([]model.Customer, error) { return customers, nil }}
	svc := newTestService(t, Deps{API: api})

	tests := []struct {
		name    string
		filter  model.CustomerFilter
		want    []string
		wantErr error
	}{
		{"no filter", model.CustomerFilter{}, []string{"1", "2", "3"}, nil},
		{"accent and case folded", model.CustomerFilter{Search: "joao"}, []string{"1"}, nil},
		{"accent in query", model.CustomerFilter{Search: "José"}, []string{"2"}, nil},
		{"cpf substring", model.CustomerFilter{Search: "444777"}, []string{"2"}, nil},
		{"formatted cpf", model.CustomerFilter{Search: "529.982"}, []string{"1"}, nil},
		{"date from inclusive", model.CustomerFilter{PurchaseFrom: "2025-02-01"}, []string{"2"}, nil},
		{"date range", model.CustomerFilter{PurchaseFrom: "2025-01-01", PurchaseTo: "2025-01-10"}, []string{"1"}, nil},
		{"bad date", model.CustomerFilter{PurchaseTo: "10/01/2025"}, nil, model.ErrIncorrectQuery},
		{"inverted range", model.CustomerFilter{PurchaseFrom: "2025-03-01", PurchaseTo: "2025-01-01"}, nil, model.ErrIncorrectQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.ListCustomers(context.Background(), tt.filter)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, 3, res.Total)
			require.Equal(t, len(tt.want), res.Filtered)

			ids := make([]string, 0, len(res.Customers))
			for _, c := range res.Customers {
				ids = append(ids, c.ID)
			}
			require.Equal(t, tt.want, ids)
		})
	}
}

func TestAuth(t *testing.T) {
	ctx := context.Background()
	var logged model.Credentials
	api := &mockAPI{
		loginFn: func(_ context.Context, c model.Credentials) error {
			logged = c
			return nil
		},
		registerFn: func(context.Context, model.Credentials) error { return nil },
	}
	session := &mockSession{token: "tok"}
	svc := newTestService(t, Deps{API: api, Session: session})

	require.ErrorIs(t, svc.Login(ctx, model.Credentials{Username: "ab", Password: "123456"}), model.ErrWeakCredentials)
	require.ErrorIs(t, svc.Register(ctx, model.Credentials{Username: "ana", Password: "123"}), model.ErrWeakCredentials)

	require.NoError(t, svc.Login(ctx, model.Credentials{Username: "  ana ", Password: "123456"}))
	require.Equal(t, "ana", logged.Username)

	svc.Logout(ctx)
	require.False(t, session.Authenticated())
}

func TestLoadOriginal(t *testing.T) {
	ctx := context.Background()
	withKey := uuid.NewString()
	noKey := uuid.NewString()

	repo := &mockRepo{getFn: func(_ context.Context, id string) (*model.Submission, error) {
		switch id {
		case withKey:
			return &model.Submission{OriginalKey: "originals/" + id + ".png"}, nil
		case noKey:
			return &model.Submission{}, nil
		default:
			return nil, model.ErrSubmissionNotFound
		}
	}}
	strg := &mockStorage{getFn: func(_ context.Context, key string) (io.ReadCloser, string, error) {
		require.True(t, strings.HasPrefix(key, "originals/"))
		return readCloser{bytes.NewReader([]byte("png"))}, model.PNG, nil
	}}
	svc := newTestService(t, Deps{Repo: repo, Storage: strg})

	_, _, err := svc.LoadOriginal(ctx, "not-uuid")
	require.ErrorIs(t, err, model.ErrIncorrectID)

	_, _, err = svc.LoadOriginal(ctx, noKey)
	require.ErrorIs(t, err, model.ErrSubmissionNotFound)

	_, _, err = svc.LoadOriginal(ctx, uuid.NewString())
	require.ErrorIs(t, err, model.ErrSubmissionNotFound)

	file, ctype, err := svc.LoadOriginal(ctx, withKey)
	require.NoError(t, err)
	require.Equal(t, model.PNG, ctype)
	require.NoError(t, file.Close())
}

func TestGetSubmissions_NormalisesQuery(t *testing.T) {
	var got model.ListRequest
	repo := &mockRepo{getListFn: func(_ context.Context, req *model.ListRequest) ([]model.Submission, error) {
		got = *req
		return []model.Submission{}, nil
	}}
	svc := newTestService(t, Deps{Repo: repo})

	_, err := svc.GetSubmissions(context.Background(), &model.ListRequest{Limit: 500, Sort: "UID", Order: "ascend"})
	require.NoError(t, err)
	require.Equal(t, model.ListRequest{Page: 1, Limit: 30, Sort: "uid", Order: "ASC"}, got)

	repo.getListFn = func(context.Context, *model.ListRequest) ([]model.Submission, error) {
		return nil, errors.New("db down")
	}
	_, err = svc.GetSubmissions(context.Background(), &model.ListRequest{})
	require.ErrorIs(t, err, model.ErrCommon500)
}

func TestFold(t *testing.T) {
	tests := map[string]string{
		"João":        "joao",
		"MARIA JOSÉ":  "maria jose",
		"Conceição":   "conceicao",
		"plain ascii": "plain ascii",
	}
	for in, want := range tests {
		require.Equal(t, want, fold(in), in)
	}
}
