// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"io"
	"net/http"

	"github.com/UnendingLoop/CustomerDesk/internal/capture"
	"github.com/UnendingLoop/CustomerDesk/internal/model"
	"github.com/wb-go/wbf/ginext"
)

const maxUploadBytes = 10 << 20

type DeskHandler struct {
	service DeskService
}

type DeskService interface {
	Login(ctx context.Context, creds model.Credentials) error
	Register(ctx context.Context, creds model.Credentials) error
	Logout(ctx context.Context)
	Verify(ctx context.Context) error

	ListCustomers(ctx context.Context, filter model.CustomerFilter) (*model.CustomerList, error)
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)

	CreateForm(ctx context.Context) model.FormState
	FormState(ctx context.Context, id string) (model.FormState, error)
	DeleteForm(ctx context.Context, id string) error
	AddStroke(ctx context.Context, id string, stroke capture.Stroke) error
	ClearDrawing(ctx context.Context, id string) error
	ExportDrawing(ctx context.Context, id string) ([]byte, error)
	UploadSignature(ctx context.Context, id string, data []byte) (model.FormState, error)

	ActivateCamera(ctx context.Context, id string) (model.FormState, error)
	PreviewCamera(ctx context.Context, id string) ([]byte, string, error)
	CaptureCamera(ctx context.Context, id string) (model.FormState, error)
	DiscardCapture(ctx context.Context, id string) (model.FormState, error)
	DeactivateCamera(ctx context.Context, id string) error

	SubmitCreate(ctx context.Context, formID string, form model.CustomerForm) (*model.SubmitResult, error)
	SubmitUpdate(ctx context.Context, formID, customerID string, form model.CustomerForm) (*model.SubmitResult, error)

	GetSubmissions(ctx context.Context, req *model.ListRequest) ([]model.Submission, error)
	LoadOriginal(ctx context.Context, id string) (io.ReadCloser, string, error)
}

func NewDeskHandler(svc DeskService) *DeskHandler {
	return &DeskHandler{
		service: svc,
	}
}

// Register вешает все маршруты гейтвея на движок
func (h DeskHandler) Register(engine *ginext.Engine) {
	engine.GET("/ping", h.SimplePinger)

	engine.POST("/auth/login", h.Login)
	engine.POST("/auth/register", h.SignUp)
	engine.POST("/auth/logout", h.Logout)
	engine.GET("/auth/verify", h.Verify)

	engine.GET("/customers", h.ListCustomers)
	engine.GET("/customers/:id", h.GetCustomer)

	engine.POST("/forms", h.CreateForm)
	engine.GET("/forms/:id", h.FormState)
	engine.DELETE("/forms/:id", h.DeleteForm)
	engine.POST("/forms/:id/strokes", h.AddStroke)
	engine.DELETE("/forms/:id/strokes", h.ClearDrawing)
	engine.GET("/forms/:id/drawing", h.ExportDrawing)
	engine.POST("/forms/:id/signature", h.UploadSignature)

	engine.POST("/forms/:id/camera", h.ActivateCamera)
	engine.GET("/forms/:id/camera/preview", h.PreviewCamera)
	engine.POST("/forms/:id/camera/capture", h.CaptureCamera)
	engine.DELETE("/forms/:id/camera/capture", h.DiscardCapture)
	engine.DELETE("/forms/:id/camera", h.DeactivateCamera)

	engine.POST("/forms/:id/customers", h.SubmitCreate)
	engine.PUT("/forms/:id/customers/:customerID", h.SubmitUpdate)

	engine.GET("/submissions", h.GetSubmissions)
	engine.GET("/submissions/:id/original", h.LoadOriginal)
}

func (h DeskHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

// AUTH

func (h DeskHandler) Login(ctx *ginext.Context) {
	var creds model.Credentials
	if err := ctx.ShouldBindJSON(&creds); err != nil {
		respondError(ctx, model.ErrIncorrectBody)
		return
	}
	if err := h.service.Login(ctx.Request.Context(), creds); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, map[string]bool{"authenticated": true})
}

func (h DeskHandler) SignUp(ctx *ginext.Context) {
	var creds model.Credentials
	if err := ctx.ShouldBindJSON(&creds); err != nil {
		respondError(ctx, model.ErrIncorrectBody)
		return
	}
	if err := h.service.Register(ctx.Request.Context(), creds); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(201)
}

func (h DeskHandler) Logout(ctx *ginext.Context) {
	h.service.Logout(ctx.Request.Context())
	ctx.Status(204)
}

func (h DeskHandler) Verify(ctx *ginext.Context) {
	if err := h.service.Verify(ctx.Request.Context()); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, map[string]bool{"authenticated": true})
}

// CUSTOMERS

func (h DeskHandler) ListCustomers(ctx *ginext.Context) {
	var filter model.CustomerFilter
	if err := queryDecoder.Decode(&filter, ctx.Request.URL.Query()); err != nil {
		respondError(ctx, model.ErrIncorrectQuery)
		return
	}

	res, err := h.service.ListCustomers(ctx.Request.Context(), filter)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, res)
}

func (h DeskHandler) GetCustomer(ctx *ginext.Context) {
	res, err := h.service.GetCustomer(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, res)
}

// FORMS

func (h DeskHandler) CreateForm(ctx *ginext.Context) {
	ctx.JSON(201, h.service.CreateForm(ctx.Request.Context()))
}

func (h DeskHandler) FormState(ctx *ginext.Context) {
	res, err := h.service.FormState(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, res)
}

func (h DeskHandler) DeleteForm(ctx *ginext.Context) {
	if err := h.service.DeleteForm(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(204)
}

type strokeBody struct {
	Points capture.Stroke `json:"points"`
}

func (h DeskHandler) AddStroke(ctx *ginext.Context) {
	var body strokeBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		respondError(ctx, model.ErrIncorrectBody)
		return
	}
	if err := h.service.AddStroke(ctx.Request.Context(), ctx.Param("id"), body.Points); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(204)
}

func (h DeskHandler) ClearDrawing(ctx *ginext.Context) {
	if err := h.service.ClearDrawing(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(204)
}

func (h DeskHandler) ExportDrawing(ctx *ginext.Context) {
	data, err := h.service.ExportDrawing(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Data(200, model.PNG, data)
}

func (h DeskHandler) UploadSignature(ctx *ginext.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxUploadBytes)

	file, _, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "image is required"})
		return
	}
	defer closeFileFlow(file)

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(ctx, model.ErrEmptySource)
		return
	}

	res, err := h.service.UploadSignature(ctx.Request.Context(), ctx.Param("id"), data)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, res)
}

// CAMERA

func (h DeskHandler) ActivateCamera(ctx *ginext.Context) {
	res, err := h.service.ActivateCamera(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, res)
}

func (h DeskHandler) PreviewCamera(ctx *ginext.Context) {
	frame, mime, err := h.service.PreviewCamera(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Header("Cache-Control", "no-store")
	ctx.Data(200, mime, frame)
}

func (h DeskHandler) CaptureCamera(ctx *ginext.Context) {
	res, err := h.service.CaptureCamera(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, res)
}

func (h DeskHandler) DiscardCapture(ctx *ginext.Context) {
	res, err := h.service.DiscardCapture(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, res)
}

func (h DeskHandler) DeactivateCamera(ctx *ginext.Context) {
	if err := h.service.DeactivateCamera(ctx.Request.Context(), ctx.Param("id")); err != nil {
		respondError(ctx, err)
		return
	}
	ctx.Status(204)
}

// SUBMISSION

func (h DeskHandler) SubmitCreate(ctx *ginext.Context) {
	var form model.CustomerForm
	if err := ctx.ShouldBindJSON(&form); err != nil {
		respondError(ctx, model.ErrIncorrectBody)
		return
	}

	res, err := h.service.SubmitCreate(ctx.Request.Context(), ctx.Param("id"), form)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(201, res)
}

func (h DeskHandler) SubmitUpdate(ctx *ginext.Context) {
	var form model.CustomerForm
	if err := ctx.ShouldBindJSON(&form); err != nil {
		respondError(ctx, model.ErrIncorrectBody)
		return
	}

	res, err := h.service.SubmitUpdate(ctx.Request.Context(), ctx.Param("id"), ctx.Param("customerID"), form)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, res)
}

// AUDIT

func (h DeskHandler) GetSubmissions(ctx *ginext.Context) {
	var req model.ListRequest

	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "failed to parse query-params"})
		return
	}

	res, err := h.service.GetSubmissions(ctx.Request.Context(), &req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(200, res)
}

func (h DeskHandler) LoadOriginal(ctx *ginext.Context) {
	id := ctx.Param("id")

	res, cType, err := h.service.LoadOriginal(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	streamFile(ctx, res, cType, id)
}
