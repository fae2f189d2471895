package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/requestctx"
)

const (
	maxCodeLen    = 80
	maxMessageLen = 512
	maxFieldLen   = 64
)

// Error is the failure body every route writes. Field names the offending input when one is known.
type Error struct {
	Code       string
	Message    string
	Status     int
	Field      string
	RetryAfter time.Duration
}

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// NewError builds an error body. A zero status becomes 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    singleLine(code, maxCodeLen),
		Message: singleLine(message, maxMessageLen),
		Status:  status,
	}
}

// WithField points the error at a request field or path parameter.
func (e Error) WithField(name string) Error {
	e.Field = singleLine(name, maxFieldLen)
	return e
}

// WithRetryAfter advertises when a retry may succeed.
func (e Error) WithRetryAfter(d time.Duration) Error {
	if d > 0 {
		e.RetryAfter = d
	}
	return e
}

// WriteError writes err with the request and trace ids carried by ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	if err.Status == 0 {
		err.Status = http.StatusInternalServerError
	}
	body := errorBody{
		Error:     err.Code,
		Message:   err.Message,
		Status:    err.Status,
		Field:     err.Field,
		RequestID: singleLine(middleware.GetReqID(ctx), maxCodeLen),
		TraceID:   requestctx.TraceID(ctx),
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	if err.RetryAfter > 0 {
		seconds := int((err.RetryAfter + time.Second - 1) / time.Second)
		h.Set("Retry-After", strconv.Itoa(seconds))
	}
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(body)
}

// singleLine strips line breaks so client-supplied text cannot forge log or header lines.
func singleLine(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
