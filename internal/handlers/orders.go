package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/httpx"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/pagination"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/services"
)

const maxOrderLines = 200

var (
	orderListOptions     = pagination.Options{AllowedFilters: []string{"status"}}
	orderItemListOptions = pagination.Options{}
)

var validOrderStatuses = map[domain.OrderStatus]struct{}{
	domain.OrderStatusPending:    {},
	domain.OrderStatusProcessing: {},
	domain.OrderStatusCompleted:  {},
	domain.OrderStatusCancelled:  {},
}

// OrderHandlers exposes order and order line endpoints.
type OrderHandlers struct {
	orders  services.OrderService
	catalog services.CatalogService
}

// NewOrderHandlers constructs order handlers. The catalog resolves line references on order creation.
func NewOrderHandlers(orders services.OrderService, catalog services.CatalogService) *OrderHandlers {
	return &OrderHandlers{orders: orders, catalog: catalog}
}

// Routes registers the /orders endpoints. Payment and delivery routes are mounted separately.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Post("/", h.createOrder)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:transition", h.transitionOrder)
	r.Get("/{orderID}/reconciliation", h.reconcileOrder)
	r.Get("/{orderID}/items", h.listItems)
	r.Post("/{orderID}/items", h.addItem)
	r.Patch("/{orderID}/items/{itemID}", h.updateItem)
}

type orderLineRequest struct {
	Reference string          `json:"reference"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type createOrderRequest struct {
	MemberID   string             `json:"member_id"`
	ChannelID  string             `json:"channel_id"`
	SectionID  *string            `json:"section_id"`
	CartID     *string            `json:"cart_id"`
	Code       string             `json:"code"`
	TotalPrice decimal.Decimal    `json:"total_price"`
	Lines      []orderLineRequest `json:"lines"`
}

type transitionOrderRequest struct {
	Status          string `json:"status"`
	ExpectedVersion *int64 `json:"version"`
}

type addOrderItemRequest struct {
	Reference string                  `json:"reference"`
	Quantity  int                     `json:"quantity"`
	Price     decimal.Decimal         `json:"price"`
	Status    *domain.OrderItemStatus `json:"status"`
}

type updateOrderItemRequest struct {
	Quantity        *int                    `json:"quantity"`
	Price           *decimal.Decimal        `json:"price"`
	Status          *domain.OrderItemStatus `json:"status"`
	ExpectedVersion *int64                  `json:"version"`
}

type orderPayload struct {
	ID            string      `json:"id"`
	Code          string      `json:"code"`
	MemberID      string      `json:"member_id"`
	ChannelID     string      `json:"channel_id"`
	SectionID     *string     `json:"section_id,omitempty"`
	CartID        *string     `json:"cart_id,omitempty"`
	SellerIDs     []string    `json:"seller_ids"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	TotalPrice    json.Number `json:"total_price"`
	Version       int64       `json:"version"`
	CreatedAt     string      `json:"created_at"`
	UpdatedAt     string      `json:"updated_at"`
	CompletedAt   *string     `json:"completed_at,omitempty"`
	CancelledAt   *string     `json:"cancelled_at,omitempty"`
}

type orderItemPayload struct {
	ID         string      `json:"id"`
	OrderID    string      `json:"order_id"`
	SnapshotID string      `json:"snapshot_id"`
	SaleID     string      `json:"sale_id"`
	SellerID   string      `json:"seller_id"`
	Quantity   int         `json:"quantity"`
	Price      json.Number `json:"price"`
	LineTotal  json.Number `json:"line_total"`
	Status     string      `json:"status"`
	Version    int64       `json:"version"`
	CreatedAt  string      `json:"created_at"`
	UpdatedAt  string      `json:"updated_at"`
}

type reconciliationPayload struct {
	OrderID    string      `json:"order_id"`
	TotalPrice json.Number `json:"total_price"`
	LineTotal  json.Number `json:"line_total"`
	Mismatch   bool        `json:"mismatch"`
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	params, ok := parseListParams(w, r, orderListOptions)
	if !ok {
		return
	}

	var filter services.OrderListFilter
	if raw, ok := params.Filter("status"); ok {
		statuses, err := parseOrderStatuses(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_query", err.Error(), http.StatusBadRequest))
			return
		}
		filter.Status = statuses
	}

	page, err := h.orders.ListOrders(ctx, actor, filter, params.Page)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPage(page, toOrderPayload))
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if len(req.Lines) > maxOrderLines {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("at most %d lines are accepted", maxOrderLines), http.StatusBadRequest).WithField("lines"))
		return
	}

	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" && actor.Role == domain.RoleMember {
		memberID = actor.ID
	}

	lines := make([]services.OrderLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		if h.catalog == nil {
			httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog unavailable", http.StatusServiceUnavailable))
			return
		}
		snapshot, err := h.catalog.ResolveSaleSnapshot(ctx, strings.TrimSpace(line.Reference))
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		lines = append(lines, services.OrderLine{Snapshot: snapshot, Quantity: line.Quantity, Price: line.Price})
	}

	order, err := h.orders.CreateOrder(ctx, actor, services.CreateOrderCommand{
		MemberID:   memberID,
		ChannelID:  strings.TrimSpace(req.ChannelID),
		SectionID:  trimmedPtr(req.SectionID),
		CartID:     trimmedPtr(req.CartID),
		Code:       req.Code,
		TotalPrice: req.TotalPrice,
		Lines:      lines,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, toOrderPayload(order))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	withOrder(w, r, h.available, func(actor domain.Actor, orderID string) {
		order, err := h.orders.GetOrder(r.Context(), actor, orderID)
		if err != nil {
			writeServiceError(r.Context(), w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, toOrderPayload(order))
	})
}

func (h *OrderHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
	withOrder(w, r, h.available, func(actor domain.Actor, orderID string) {
		ctx := r.Context()
		var req transitionOrderRequest
		if err := decodeJSONBody(r, &req, false); err != nil {
			writeBodyError(ctx, w, err)
			return
		}
		target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		if _, ok := validOrderStatuses[target]; !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is not an order status", http.StatusBadRequest).WithField("status"))
			return
		}
		order, err := h.orders.TransitionStatus(ctx, actor, services.TransitionOrderCommand{
			OrderID:         orderID,
			Target:          target,
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, toOrderPayload(order))
	})
}

func (h *OrderHandlers) reconcileOrder(w http.ResponseWriter, r *http.Request) {
	withOrder(w, r, h.available, func(actor domain.Actor, orderID string) {
		result, err := h.orders.ReconcileTotal(r.Context(), actor, orderID)
		if err != nil {
			writeServiceError(r.Context(), w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, reconciliationPayload{
			OrderID:    result.OrderID,
			TotalPrice: money(result.TotalPrice),
			LineTotal:  money(result.LineTotal),
			Mismatch:   result.Mismatch,
		})
	})
}

func (h *OrderHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	withOrder(w, r, h.available, func(actor domain.Actor, orderID string) {
		ctx := r.Context()
		params, ok := parseListParams(w, r, orderItemListOptions)
		if !ok {
			return
		}
		page, err := h.orders.ListItems(ctx, actor, orderID, params.Page)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, buildPage(page, toOrderItemPayload))
	})
}

func (h *OrderHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	withOrder(w, r, h.available, func(actor domain.Actor, orderID string) {
		ctx := r.Context()
		var req addOrderItemRequest
		if err := decodeJSONBody(r, &req, false); err != nil {
			writeBodyError(ctx, w, err)
			return
		}
		item, err := h.orders.AddItem(ctx, actor, services.AddOrderItemCommand{
			OrderID:   orderID,
			Reference: strings.TrimSpace(req.Reference),
			Quantity:  req.Quantity,
			Price:     req.Price,
			Status:    req.Status,
		})
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusCreated, toOrderItemPayload(item))
	})
}

func (h *OrderHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	withOrder(w, r, h.available, func(actor domain.Actor, orderID string) {
		ctx := r.Context()
		itemID, ok := pathUUID(w, r, "itemID")
		if !ok {
			return
		}
		var req updateOrderItemRequest
		if err := decodeJSONBody(r, &req, false); err != nil {
			writeBodyError(ctx, w, err)
			return
		}
		item, err := h.orders.UpdateItem(ctx, actor, services.UpdateOrderItemCommand{
			OrderID:         orderID,
			ItemID:          itemID,
			Quantity:        req.Quantity,
			Price:           req.Price,
			Status:          req.Status,
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, toOrderItemPayload(item))
	})
}

func (h *OrderHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.orders == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

// withOrder resolves the actor and the orderID path parameter shared by every order-scoped route.
func withOrder(w http.ResponseWriter, r *http.Request, available func(http.ResponseWriter, *http.Request) bool, fn func(actor domain.Actor, orderID string)) {
	if !available(w, r) {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	orderID, ok := pathUUID(w, r, "orderID")
	if !ok {
		return
	}
	fn(actor, orderID)
}

func parseOrderStatuses(raw string) ([]domain.OrderStatus, error) {
	var statuses []domain.OrderStatus
	for _, part := range strings.Split(raw, ",") {
		status := domain.OrderStatus(strings.ToLower(strings.TrimSpace(part)))
		if status == "" {
			continue
		}
		if _, ok := validOrderStatuses[status]; !ok {
			return nil, fmt.Errorf("unknown order status %q", part)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func toOrderPayload(order domain.Order) orderPayload {
	sellers := order.SellerIDs
	if sellers == nil {
		sellers = []string{}
	}
	return orderPayload{
		ID:            order.ID,
		Code:          order.Code,
		MemberID:      order.MemberID,
		ChannelID:     order.ChannelID,
		SectionID:     order.SectionID,
		CartID:        order.CartID,
		SellerIDs:     sellers,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalPrice:    money(order.TotalPrice),
		Version:       order.Version,
		CreatedAt:     formatTime(order.CreatedAt),
		UpdatedAt:     formatTime(order.UpdatedAt),
		CompletedAt:   formatTimePtr(order.CompletedAt),
		CancelledAt:   formatTimePtr(order.CancelledAt),
	}
}

func toOrderItemPayload(item domain.OrderItem) orderItemPayload {
	return orderItemPayload{
		ID:         item.ID,
		OrderID:    item.OrderID,
		SnapshotID: item.SnapshotID,
		SaleID:     item.SaleID,
		SellerID:   item.SellerID,
		Quantity:   item.Quantity,
		Price:      money(item.Price),
		LineTotal:  money(domain.LineTotal(item.Price, item.Quantity)),
		Status:     string(item.Status),
		Version:    item.Version,
		CreatedAt:  formatTime(item.CreatedAt),
		UpdatedAt:  formatTime(item.UpdatedAt),
	}
}
