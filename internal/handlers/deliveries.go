package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/httpx"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/pagination"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/services"
)

var deliveryListOptions = pagination.Options{
	AllowedSort: []string{
		string(domain.DeliverySortCreatedAt),
		string(domain.DeliverySortUpdatedAt),
		string(domain.DeliverySortExpectedDeliveryDate),
		string(domain.DeliverySortStartTime),
		string(domain.DeliverySortEndTime),
	},
	AllowedFilters:   []string{"status", "stage"},
	DefaultDirection: domain.DefaultDeliverySort.Direction,
}

// DeliveryHandlers exposes the delivery sub-ledger of an order.
type DeliveryHandlers struct {
	deliveries services.DeliveryService
}

// NewDeliveryHandlers constructs delivery handlers.
func NewDeliveryHandlers(deliveries services.DeliveryService) *DeliveryHandlers {
	return &DeliveryHandlers{deliveries: deliveries}
}

// Routes registers /orders/{orderID}/deliveries endpoints on the orders router.
func (h *DeliveryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{orderID}/deliveries", h.listDeliveries)
	r.Post("/{orderID}/deliveries", h.createDelivery)
	r.Get("/{orderID}/deliveries/{deliveryID}", h.getDelivery)
	r.Patch("/{orderID}/deliveries/{deliveryID}", h.updateDelivery)
	r.Delete("/{orderID}/deliveries/{deliveryID}", h.deleteDelivery)
}

type createDeliveryRequest struct {
	Status               string     `json:"status"`
	Stage                string     `json:"stage"`
	ExpectedDeliveryDate *time.Time `json:"expected_delivery_date"`
	StartTime            *time.Time `json:"start_time"`
	EndTime              *time.Time `json:"end_time"`
}

type updateDeliveryRequest struct {
	Status               *string      `json:"status"`
	Stage                *string      `json:"stage"`
	ExpectedDeliveryDate optionalTime `json:"expected_delivery_date"`
	StartTime            optionalTime `json:"start_time"`
	EndTime              optionalTime `json:"end_time"`
	ExpectedVersion      *int64       `json:"version"`
}

type deliveryPayload struct {
	ID                   string  `json:"id"`
	OrderID              string  `json:"order_id"`
	Status               string  `json:"status"`
	Stage                string  `json:"stage"`
	ExpectedDeliveryDate *string `json:"expected_delivery_date"`
	StartTime            *string `json:"start_time"`
	EndTime              *string `json:"end_time"`
	Version              int64   `json:"version"`
	CreatedAt            string  `json:"created_at"`
	UpdatedAt            string  `json:"updated_at"`
}

func (h *DeliveryHandlers) listDeliveries(w http.ResponseWriter, r *http.Request) {
	withOrder(w, r, h.available, func(actor domain.Actor, orderID string) {
		ctx := r.Context()
		params, ok := parseListParams(w, r, deliveryListOptions)
		if !ok {
			return
		}
		query := services.ListDeliveriesQuery{
			OrderID: orderID,
			Sort: domain.DeliverySort{
				Field:     domain.DeliverySortField(params.Sort),
				Direction: params.Direction,
			}.Normalize(),
			Page: params.Page,
		}
		if raw, ok := params.Filter("status"); ok {
			status := domain.DeliveryStatus(strings.ToLower(raw))
			if !status.Valid() {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_query", "status filter is not a delivery status", http.StatusBadRequest).WithField("status"))
				return
			}
			query.Status = &status
		}
		if raw, ok := params.Filter("stage"); ok {
			stage := domain.DeliveryStage(strings.ToLower(raw))
			if !stage.Valid() {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_query", "stage filter is not a delivery stage", http.StatusBadRequest).WithField("stage"))
				return
			}
			query.Stage = &stage
		}

		page, err := h.deliveries.ListDeliveries(ctx, actor, query)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, buildPage(page, toDeliveryPayload))
	})
}

func (h *DeliveryHandlers) createDelivery(w http.ResponseWriter, r *http.Request) {
	withOrder(w, r, h.available, func(actor domain.Actor, orderID string) {
		ctx := r.Context()
		var req createDeliveryRequest
		if err := decodeJSONBody(r, &req, false); err != nil {
			writeBodyError(ctx, w, err)
			return
		}
		status := domain.DeliveryStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		stage := domain.DeliveryStage(strings.ToLower(strings.TrimSpace(req.Stage)))
		if !status.Valid() || !stage.Valid() {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status and stage must be delivery values", http.StatusBadRequest))
			return
		}
		delivery, err := h.deliveries.CreateDelivery(ctx, actor, services.CreateDeliveryCommand{
			OrderID:              orderID,
			Status:               status,
			Stage:                stage,
			ExpectedDeliveryDate: req.ExpectedDeliveryDate,
			StartTime:            req.StartTime,
			EndTime:              req.EndTime,
		})
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusCreated, toDeliveryPayload(delivery))
	})
}

func (h *DeliveryHandlers) getDelivery(w http.ResponseWriter, r *http.Request) {
	h.withDelivery(w, r, func(actor domain.Actor, orderID, deliveryID string) {
		delivery, err := h.deliveries.GetDelivery(r.Context(), actor, orderID, deliveryID)
		if err != nil {
			writeServiceError(r.Context(), w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, toDeliveryPayload(delivery))
	})
}

func (h *DeliveryHandlers) updateDelivery(w http.ResponseWriter, r *http.Request) {
	h.withDelivery(w, r, func(actor domain.Actor, orderID, deliveryID string) {
		ctx := r.Context()
		var req updateDeliveryRequest
		if err := decodeJSONBody(r, &req, false); err != nil {
			writeBodyError(ctx, w, err)
			return
		}
		cmd := services.UpdateDeliveryCommand{
			OrderID:              orderID,
			DeliveryID:           deliveryID,
			ExpectedDeliveryDate: req.ExpectedDeliveryDate.toService(),
			StartTime:            req.StartTime.toService(),
			EndTime:              req.EndTime.toService(),
			ExpectedVersion:      req.ExpectedVersion,
		}
		if req.Status != nil {
			status := domain.DeliveryStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
			if !status.Valid() {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is not a delivery status", http.StatusBadRequest).WithField("status"))
				return
			}
			cmd.Status = &status
		}
		if req.Stage != nil {
			stage := domain.DeliveryStage(strings.ToLower(strings.TrimSpace(*req.Stage)))
			if !stage.Valid() {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "stage is not a delivery stage", http.StatusBadRequest).WithField("stage"))
				return
			}
			cmd.Stage = &stage
		}
		delivery, err := h.deliveries.UpdateDelivery(ctx, actor, cmd)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, toDeliveryPayload(delivery))
	})
}

func (h *DeliveryHandlers) deleteDelivery(w http.ResponseWriter, r *http.Request) {
	h.withDelivery(w, r, func(actor domain.Actor, orderID, deliveryID string) {
		if err := h.deliveries.DeleteDelivery(r.Context(), actor, orderID, deliveryID); err != nil {
			writeServiceError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *DeliveryHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.deliveries == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("delivery_service_unavailable", "delivery service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *DeliveryHandlers) withDelivery(w http.ResponseWriter, r *http.Request, fn func(actor domain.Actor, orderID, deliveryID string)) {
	withOrder(w, r, h.available, func(actor domain.Actor, orderID string) {
		deliveryID, ok := pathUUID(w, r, "deliveryID")
		if !ok {
			return
		}
		fn(actor, orderID, deliveryID)
	})
}

func toDeliveryPayload(delivery domain.Delivery) deliveryPayload {
	return deliveryPayload{
		ID:                   delivery.ID,
		OrderID:              delivery.OrderID,
		Status:               string(delivery.Status),
		Stage:                string(delivery.Stage),
		ExpectedDeliveryDate: formatTimePtr(delivery.ExpectedDeliveryDate),
		StartTime:            formatTimePtr(delivery.StartTime),
		EndTime:              formatTimePtr(delivery.EndTime),
		Version:              delivery.Version,
		CreatedAt:            formatTime(delivery.CreatedAt),
		UpdatedAt:            formatTime(delivery.UpdatedAt),
	}
}
