package transport

import (
	"context"
	"io"

	"github.com/UnendingLoop/CustomerDesk/internal/capture"
	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/gin-gonic/gin"
)

type mockDeskService struct {
	loginFn    func(ctx context.Context, creds model.Credentials) error
	registerFn func(ctx context.Context, creds model.Credentials) error
	verifyFn   func(ctx context.Context) error
	loggedOut  bool

	listCustomersFn func(ctx context.Context, filter model.CustomerFilter) (*model.CustomerList, error)
	getCustomerFn   func(ctx context.Context, id string) (*model.Customer, error)

	formStateFn       func(ctx context.Context, id string) (model.FormState, error)
	deleteFormFn      func(ctx context.Context, id string) error
	addStrokeFn       func(ctx context.Context, id string, stroke capture.Stroke) error
	clearDrawingFn    func(ctx context.Context, id string) error
	exportDrawingFn   func(ctx context.Context, id string) ([]byte, error)
	uploadSignatureFn func(ctx context.Context, id string, data []byte) (model.FormState, error)

	activateCameraFn   func(ctx context.Context, id string) (model.FormState, error)
	previewCameraFn    func(ctx context.Context, id string) ([]byte, string, error)
	captureCameraFn    func(ctx context.Context, id string) (model.FormState, error)
	discardCaptureFn   func(ctx context.Context, id string) (model.FormState, error)
	deactivateCameraFn func(ctx context.Context, id string) error

	submitCreateFn func(ctx context.Context, formID string, form model.CustomerForm) (*model.SubmitResult, error)
	submitUpdateFn func(ctx context.Context, formID, customerID string, form model.CustomerForm) (*model.SubmitResult, error)

	getSubmissionsFn func(ctx context.Context, req *model.ListRequest) ([]model.Submission, error)
	loadOriginalFn   func(ctx context.Context, id string) (io.ReadCloser, string, error)
}

func (m *mockDeskService) Login(ctx context.Context, creds model.Credentials) error {
	return m.loginFn(ctx, creds)
}

func (m *mockDeskService) Register(ctx context.Context, creds model.Credentials) error {
	return m.registerFn(ctx, creds)
}

func (m *mockDeskService) Logout(ctx context.Context) {
	m.loggedOut = true
}

func (m *mockDeskService) Verify(ctx context.Context) error {
	return m.verifyFn(ctx)
}

func (m *mockDeskService) ListCustomers(ctx context.Context, filter model.CustomerFilter) (*model.CustomerList, error) {
	return m.listCustomersFn(ctx, filter)
}

func (m *mockDeskService) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	return m.getCustomerFn(ctx, id)
}

func (m *mockDeskService) CreateForm(ctx context.Context) model.FormState {
	return model.FormState{ID: "form-1", Width: 600, Height: 250}
}

func (m *mockDeskService) FormState(ctx context.Context, id string) (model.FormState, error) {
	return m.formStateFn(ctx, id)
}

func (m *mockDeskService) DeleteForm(ctx context.Context, id string) error {
	return m.deleteFormFn(ctx, id)
}

func (m *mockDeskService) AddStroke(ctx context.Context, id string, stroke capture.Stroke) error {
	return m.addStrokeFn(ctx, id, stroke)
}

func (m *mockDeskService) ClearDrawing(ctx context.Context, id string) error {
	return m.clearDrawingFn(ctx, id)
}

func (m *mockDeskService) ExportDrawing(ctx context.Context, id string) ([]byte, error) {
	return m.exportDrawingFn(ctx, id)
}

func (m *mockDeskService) UploadSignature(ctx context.Context, id string, data []byte) (model.FormState, error) {
	return m.uploadSignatureFn(ctx, id, data)
}

func (m *mockDeskService) ActivateCamera(ctx context.Context, id string) (model.FormState, error) {
	return m.activateCameraFn(ctx, id)
}

func (m *mockDeskService) PreviewCamera(ctx context.Context, id string) ([]byte, string, error) {
	return m.previewCameraFn(ctx, id)
}

func (m *mockDeskService) CaptureCamera(ctx context.Context, id string) (model.FormState, error) {
	return m.captureCameraFn(ctx, id)
}

func (m *mockDeskService) DiscardCapture(ctx context.Context, id string) (model.FormState, error) {
	return m.discardCaptureFn(ctx, id)
}

func (m *mockDeskService) DeactivateCamera(ctx context.Context, id string) error {
	return m.deactivateCameraFn(ctx, id)
}

func (m *mockDeskService) SubmitCreate(ctx context.Context, formID string, form model.CustomerForm) (*model.SubmitResult, error) {
	return m.submitCreateFn(ctx, formID, form)
}

func (m *mockDeskService) SubmitUpdate(ctx context.Context, formID, customerID string, form model.CustomerForm) (*model.SubmitResult, error) {
	return m.submitUpdateFn(ctx, formID, customerID, form)
}

func (m *mockDeskService) GetSubmissions(ctx context.Context, req *model.ListRequest) ([]model.Submission, error) {
	return m.getSubmissionsFn(ctx, req)
}

func (m *mockDeskService) LoadOriginal(ctx context.Context, id string) (io.ReadCloser, string, error) {
	return m.loadOriginalFn(ctx, id)
}

func init() {
	gin.SetMode(gin.TestMode)
}
