// Package httpx writes the JSON bodies shared by the storefront's API and
// htmx error responses.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"finitefield.org/mercadito/internal/platform/requestctx"
)

// Error codes surfaced to clients.
const (
	CodeBadRequest         = "bad_request"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeCatalogUnavailable = "catalog_unavailable"
	CodeCartUnavailable    = "cart_unavailable"
	CodeInternal           = "internal"
)

// Error is the JSON error envelope.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	ProductID int
}

// NewError builds an envelope. A zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clip(code, 80),
		Message: clip(message, 512),
		Status:  status,
	}
}

// FromStatus picks the code matching an HTTP status.
func FromStatus(status int, message string) Error {
	code := CodeInternal
	switch status {
	case http.StatusBadRequest:
		code = CodeBadRequest
	case http.StatusForbidden:
		code = CodeForbidden
	case http.StatusNotFound:
		code = CodeNotFound
	case http.StatusServiceUnavailable:
		code = CodeCartUnavailable
	}
	return NewError(code, message, status)
}

// ForProduct tags the envelope with the product the request referred to.
func (e Error) ForProduct(id int) Error {
	e.ProductID = id
	return e
}

type envelope struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
	ProductID int    `json:"product_id,omitempty"`
}

// WriteError writes err as JSON, filling in the request and trace ids from ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	requestID := err.RequestID
	if requestID == "" {
		requestID = clip(middleware.GetReqID(ctx), 80)
	}
	WriteJSON(w, status, envelope{
		Error:     err.Code,
		Message:   err.Message,
		Status:    status,
		RequestID: requestID,
		TraceID:   clip(requestctx.TraceID(ctx), 64),
		ProductID: err.ProductID,
	})
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clip(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
