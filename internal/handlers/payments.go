package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/httpx"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/pagination"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/services"
)

var paymentListOptions = pagination.Options{}

// PaymentHandlers exposes the payment sub-ledger of an order.
type PaymentHandlers struct {
	payments services.PaymentService
}

// NewPaymentHandlers constructs payment handlers.
func NewPaymentHandlers(payments services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{payments: payments}
}

// Routes registers /orders/{orderID}/payments endpoints on the orders router.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{orderID}/payments", h.listPayments)
	r.Post("/{orderID}/payments", h.createPayment)
	r.Get("/{orderID}/payments/{paymentID}", h.getPayment)
	r.Patch("/{orderID}/payments/{paymentID}", h.updatePayment)
	r.Delete("/{orderID}/payments/{paymentID}", h.deletePayment)
}

type createPaymentRequest struct {
	Method        string          `json:"method"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID *string         `json:"transaction_id"`
}

type updatePaymentRequest struct {
	Method          *string          `json:"method"`
	Status          *string          `json:"status"`
	Amount          *decimal.Decimal `json:"amount"`
	TransactionID   *string          `json:"transaction_id"`
	CancelledAt     optionalTime     `json:"cancelled_at"`
	ExpectedVersion *int64           `json:"version"`
}

type paymentPayload struct {
	ID            string      `json:"id"`
	OrderID       string      `json:"order_id"`
	Method        string      `json:"method"`
	Status        string      `json:"status"`
	Amount        json.Number `json:"amount"`
	TransactionID *string     `json:"transaction_id,omitempty"`
	ConfirmedAt   *string     `json:"confirmed_at,omitempty"`
	CancelledAt   *string     `json:"cancelled_at,omitempty"`
	Version       int64       `json:"version"`
	CreatedAt     string      `json:"created_at"`
	UpdatedAt     string      `json:"updated_at"`
}

func (h *PaymentHandlers) listPayments(w http.ResponseWriter, r *http.Request) {
	withOrder(w, r, h.available, func(actor domain.Actor, orderID string) {
		ctx := r.Context()
		params, ok := parseListParams(w, r, paymentListOptions)
		if !ok {
			return
		}
		page, err := h.payments.ListPayments(ctx, actor, orderID, params.Page)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, buildPage(page, toPaymentPayload))
	})
}

func (h *PaymentHandlers) createPayment(w http.ResponseWriter, r *http.Request) {
	withOrder(w, r, h.available, func(actor domain.Actor, orderID string) {
		ctx := r.Context()
		var req createPaymentRequest
		if err := decodeJSONBody(r, &req, false); err != nil {
			writeBodyError(ctx, w, err)
			return
		}
		status := domain.PaymentStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		if status == "" {
			status = domain.PaymentStatusPending
		}
		if !status.Valid() {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is not a payment status", http.StatusBadRequest).WithField("status"))
			return
		}
		payment, err := h.payments.CreatePayment(ctx, actor, services.CreatePaymentCommand{
			OrderID:       orderID,
			Method:        req.Method,
			Status:        status,
			Amount:        req.Amount,
			TransactionID: trimmedPtr(req.TransactionID),
		})
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusCreated, toPaymentPayload(payment))
	})
}

func (h *PaymentHandlers) getPayment(w http.ResponseWriter, r *http.Request) {
	h.withPayment(w, r, func(actor domain.Actor, orderID, paymentID string) {
		payment, err := h.payments.GetPayment(r.Context(), actor, orderID, paymentID)
		if err != nil {
			writeServiceError(r.Context(), w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, toPaymentPayload(payment))
	})
}

func (h *PaymentHandlers) updatePayment(w http.ResponseWriter, r *http.Request) {
	h.withPayment(w, r, func(actor domain.Actor, orderID, paymentID string) {
		ctx := r.Context()
		var req updatePaymentRequest
		if err := decodeJSONBody(r, &req, false); err != nil {
			writeBodyError(ctx, w, err)
			return
		}
		cmd := services.UpdatePaymentCommand{
			OrderID:         orderID,
			PaymentID:       paymentID,
			Method:          req.Method,
			Amount:          req.Amount,
			TransactionID:   trimmedPtr(req.TransactionID),
			CancelledAt:     req.CancelledAt.toService(),
			ExpectedVersion: req.ExpectedVersion,
		}
		if req.Status != nil {
			status := domain.PaymentStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
			if !status.Valid() {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is not a payment status", http.StatusBadRequest).WithField("status"))
				return
			}
			cmd.Status = &status
		}
		payment, err := h.payments.UpdatePayment(ctx, actor, cmd)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, toPaymentPayload(payment))
	})
}

func (h *PaymentHandlers) deletePayment(w http.ResponseWriter, r *http.Request) {
	h.withPayment(w, r, func(actor domain.Actor, orderID, paymentID string) {
		if err := h.payments.DeletePayment(r.Context(), actor, orderID, paymentID); err != nil {
			writeServiceError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *PaymentHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.payments == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *PaymentHandlers) withPayment(w http.ResponseWriter, r *http.Request, fn func(actor domain.Actor, orderID, paymentID string)) {
	withOrder(w, r, h.available, func(actor domain.Actor, orderID string) {
		paymentID, ok := pathUUID(w, r, "paymentID")
		if !ok {
			return
		}
		fn(actor, orderID, paymentID)
	})
}

func toPaymentPayload(payment domain.Payment) paymentPayload {
	return paymentPayload{
		ID:            payment.ID,
		OrderID:       payment.OrderID,
		Method:        payment.Method,
		Status:        string(payment.Status),
		Amount:        money(payment.Amount),
		TransactionID: payment.TransactionID,
		ConfirmedAt:   formatTimePtr(payment.ConfirmedAt),
		CancelledAt:   formatTimePtr(payment.CancelledAt),
		Version:       payment.Version,
		CreatedAt:     formatTime(payment.CreatedAt),
		UpdatedAt:     formatTime(payment.UpdatedAt),
	}
}
