// Package model provides data-structs for internal app-usage
package model

import (
	"time"

	"github.com/google/uuid"
)

type (
	Operation string
	Outcome   string
)

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
)

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomeTooLarge Outcome = "too_large"
	OutcomeFailed   Outcome = "failed"
)

var OutcomesMap = map[Outcome]bool{
	OutcomeAccepted: true,
	OutcomeTooLarge: true,
	OutcomeFailed:   true,
}

//---------------------

// Customer - запись клиента в том виде, в каком ее отдает внешний API
type Customer struct {
	ID              string         `json:"_id,omitempty"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Phone           string         `json:"phone"`
	CPF             string         `json:"cpf"`
	PurchaseDate    string         `json:"purchaseDate"`
	Delivery        bool           `json:"delivery"`
	ReturnDate      string         `json:"returnDate"`
	Password        string         `json:"password,omitempty"`
	Observation     string         `json:"observation"`
	Signature       string         `json:"signature"`
	PurchaseHistory []HistoryEntry `json:"purchaseHistory,omitempty"`
	CreatedAt       *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time     `json:"updatedAt,omitempty"`
	Version         *int           `json:"__v,omitempty"`
}

// HistoryEntry is owned by the server and is never sent back.
type HistoryEntry struct {
	PurchaseDate string `json:"purchaseDate"`
	ReturnDate   string `json:"returnDate"`
	Observation  string `json:"observation,omitempty"`
	Signature    string `json:"signature,omitempty"`
}

// CustomerForm - поля формы, пришедшие от фронта (без подписи)
type CustomerForm struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	CPF          string `json:"cpf"`
	PurchaseDate string `json:"purchaseDate"`
	Delivery     bool   `json:"delivery"`
	ReturnDate   string `json:"returnDate"`
	Password     string `json:"password"`
	Observation  string `json:"observation"`
}

// CustomerPayload is the exact body accepted by POST /customers and PUT /customers/:id.
type CustomerPayload struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	CPF          string `json:"cpf"`
	PurchaseDate string `json:"purchaseDate"`
	Delivery     bool   `json:"delivery"`
	ReturnDate   string `json:"returnDate"`
	Password     string `json:"password"`
	Observation  string `json:"observation"`
	Signature    string `json:"signature"`
}

// CustomerFilter - фильтры списка клиентов
type CustomerFilter struct {
	Search       string `schema:"search"`
	PurchaseFrom string `schema:"purchaseFrom"`
	PurchaseTo   string `schema:"purchaseTo"`
}

type CustomerList struct {
	Total     int        `json:"total"`
	Filtered  int        `json:"filtered"`
	Customers []Customer `json:"customers"`
}

// FormState - состояние сессии формы: что будет отправлено как подпись
type FormState struct {
	ID           string `json:"id"`
	HasDrawing   bool   `json:"hasDrawing"`
	HasCapture   bool   `json:"hasCapture"`
	CaptureFrom  Origin `json:"captureFrom,omitempty"`
	CameraActive bool   `json:"cameraActive"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}

//---------------------

// Credentials - тело и логина, и регистрации во внешнем API
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

//---------------------

// Submission - запись аудита одной попытки отправки клиента во внешний API
type Submission struct {
	UID          uuid.UUID  `json:"uid"`
	CustomerID   string     `json:"customer_id,omitempty"`
	Operation    Operation  `json:"operation"`
	Outcome      Outcome    `json:"outcome"`
	Attempts     int        `json:"attempts"`
	PayloadBytes int        `json:"payload_bytes"`
	MIMEType     string     `json:"mime_type,omitempty"`
	OriginalKey  string     `json:"original_key,omitempty"`
	Message      string     `json:"message,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

// CompressionReport is returned to the caller together with the submitted record.
type CompressionReport struct {
	Attempts int    `json:"attempts"`
	Bytes    int    `json:"bytes"`
	MIMEType string `json:"mimeType,omitempty"`
}

type SubmitResult struct {
	Customer    *Customer         `json:"customer"`
	Compression CompressionReport `json:"compression"`
}

//-------------------

type ListRequest struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Sort  string `form:"sort"`
	Order string `form:"order"`
}

const (
	ByUUID    = "uid"
	ByCreated = "created"
	OrderASC  = "ascend"
	OrderDESC = "descend"
)
