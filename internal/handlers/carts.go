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

var (
	cartItemListOptions   = pagination.Options{AllowedFilters: []string{"status"}}
	cartOptionListOptions = pagination.Options{AllowedFilters: []string{"option_group_id"}}
)

// CartHandlers exposes cart, cart line and line option endpoints.
type CartHandlers struct {
	carts services.CartService
}

// NewCartHandlers constructs cart handlers backed by the cart service.
func NewCartHandlers(carts services.CartService) *CartHandlers {
	return &CartHandlers{carts: carts}
}

// Routes registers the /carts endpoints.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createCart)
	r.Get("/{cartID}", h.getCart)
	r.Post("/{cartID}:abandon", h.abandonCart)
	r.Post("/{cartID}:checkout", h.checkoutCart)

	r.Get("/{cartID}/items", h.listItems)
	r.Post("/{cartID}/items", h.addItem)
	r.Patch("/{cartID}/items/{itemID}", h.updateItem)
	r.Delete("/{cartID}/items/{itemID}", h.removeItem)

	r.Get("/{cartID}/items/{itemID}/options", h.listOptions)
	r.Post("/{cartID}/items/{itemID}/options", h.attachOption)
	r.Patch("/{cartID}/items/{itemID}/options/{optionID}", h.updateOption)
	r.Delete("/{cartID}/items/{itemID}/options/{optionID}", h.removeOption)
}

type createCartRequest struct {
	GuestID  string `json:"guest_id"`
	MemberID string `json:"member_id"`
}

type checkoutCartRequest struct {
	ChannelID  string          `json:"channel_id"`
	SectionID  *string         `json:"section_id"`
	Code       string          `json:"code"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type addCartItemRequest struct {
	Reference string                 `json:"reference"`
	Quantity  int                    `json:"quantity"`
	UnitPrice decimal.Decimal        `json:"unit_price"`
	Status    *domain.CartItemStatus `json:"status"`
}

type updateCartItemRequest struct {
	Quantity        *int                   `json:"quantity"`
	UnitPrice       *decimal.Decimal       `json:"unit_price"`
	Status          *domain.CartItemStatus `json:"status"`
	ExpectedVersion *int64                 `json:"version"`
}

type attachOptionRequest struct {
	OptionGroupID string `json:"option_group_id"`
	OptionID      string `json:"option_id"`
}

type updateOptionRequest struct {
	OptionGroupID   *string `json:"option_group_id"`
	OptionID        *string `json:"option_id"`
	ExpectedVersion *int64  `json:"version"`
}

type cartPayload struct {
	ID          string  `json:"id"`
	GuestID     string  `json:"guest_id,omitempty"`
	MemberID    string  `json:"member_id,omitempty"`
	Status      string  `json:"status"`
	Version     int64   `json:"version"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	OrderedAt   *string `json:"ordered_at,omitempty"`
	AbandonedAt *string `json:"abandoned_at,omitempty"`
}

type cartItemPayload struct {
	ID         string      `json:"id"`
	CartID     string      `json:"cart_id"`
	SnapshotID string      `json:"snapshot_id"`
	SaleID     string      `json:"sale_id"`
	SellerID   string      `json:"seller_id"`
	Quantity   int         `json:"quantity"`
	UnitPrice  json.Number `json:"unit_price"`
	LineTotal  json.Number `json:"line_total"`
	Status     string      `json:"status"`
	Version    int64       `json:"version"`
	CreatedAt  string      `json:"created_at"`
	UpdatedAt  string      `json:"updated_at"`
}

type cartItemOptionPayload struct {
	ID            string `json:"id"`
	CartItemID    string `json:"cart_item_id"`
	OptionGroupID string `json:"option_group_id"`
	OptionID      string `json:"option_id"`
	Version       int64  `json:"version"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func (h *CartHandlers) createCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createCartRequest
	if err := decodeJSONBody(r, &req, true); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.CreateCartCommand{
		GuestID:  strings.TrimSpace(req.GuestID),
		MemberID: strings.TrimSpace(req.MemberID),
	}
	// An empty body opens a cart owned by the caller.
	if cmd.GuestID == "" && cmd.MemberID == "" {
		switch actor.Role {
		case domain.RoleGuest:
			cmd.GuestID = actor.ID
		case domain.RoleMember:
			cmd.MemberID = actor.ID
		}
	}

	cart, err := h.carts.CreateCart(ctx, actor, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, toCartPayload(cart))
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, func(actor domain.Actor, cartID string) {
		cart, err := h.carts.GetCart(r.Context(), actor, cartID)
		if err != nil {
			writeServiceError(r.Context(), w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, toCartPayload(cart))
	})
}

func (h *CartHandlers) abandonCart(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, func(actor domain.Actor, cartID string) {
		cart, err := h.carts.AbandonCart(r.Context(), actor, cartID)
		if err != nil {
			writeServiceError(r.Context(), w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, toCartPayload(cart))
	})
}

func (h *CartHandlers) checkoutCart(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, func(actor domain.Actor, cartID string) {
		ctx := r.Context()
		var req checkoutCartRequest
		if err := decodeJSONBody(r, &req, false); err != nil {
			writeBodyError(ctx, w, err)
			return
		}
		order, err := h.carts.CheckoutCart(ctx, actor, services.CheckoutCartCommand{
			CartID:     cartID,
			ChannelID:  strings.TrimSpace(req.ChannelID),
			SectionID:  trimmedPtr(req.SectionID),
			Code:       req.Code,
			TotalPrice: req.TotalPrice,
		})
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusCreated, toOrderPayload(order))
	})
}

func (h *CartHandlers) listItems(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, func(actor domain.Actor, cartID string) {
		ctx := r.Context()
		params, ok := parseListParams(w, r, cartItemListOptions)
		if !ok {
			return
		}
		var filter services.CartItemFilter
		if raw, ok := params.Filter("status"); ok {
			status := domain.CartItemStatus(strings.ToLower(raw))
			if !status.Valid() {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_query", "status filter is not a cart item status", http.StatusBadRequest).WithField("status"))
				return
			}
			filter.Status = &status
		}
		page, err := h.carts.ListItems(ctx, actor, cartID, filter, params.Page)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, buildPage(page, toCartItemPayload))
	})
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	h.withCart(w, r, func(actor domain.Actor, cartID string) {
		ctx := r.Context()
		var req addCartItemRequest
		if err := decodeJSONBody(r, &req, false); err != nil {
			writeBodyError(ctx, w, err)
			return
		}
		item, err := h.carts.AddItem(ctx, actor, services.AddCartItemCommand{
			CartID:    cartID,
			Reference: strings.TrimSpace(req.Reference),
			Quantity:  req.Quantity,
			UnitPrice: req.UnitPrice,
			Status:    req.Status,
		})
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusCreated, toCartItemPayload(item))
	})
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	h.withCartItem(w, r, func(actor domain.Actor, cartID, itemID string) {
		ctx := r.Context()
		var req updateCartItemRequest
		if err := decodeJSONBody(r, &req, false); err != nil {
			writeBodyError(ctx, w, err)
			return
		}
		item, err := h.carts.UpdateItem(ctx, actor, services.UpdateCartItemCommand{
			CartID:          cartID,
			ItemID:          itemID,
			Quantity:        req.Quantity,
			UnitPrice:       req.UnitPrice,
			Status:          req.Status,
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, toCartItemPayload(item))
	})
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	h.withCartItem(w, r, func(actor domain.Actor, cartID, itemID string) {
		if err := h.carts.RemoveItem(r.Context(), actor, cartID, itemID); err != nil {
			writeServiceError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *CartHandlers) listOptions(w http.ResponseWriter, r *http.Request) {
	h.withCartItem(w, r, func(actor domain.Actor, cartID, itemID string) {
		ctx := r.Context()
		params, ok := parseListParams(w, r, cartOptionListOptions)
		if !ok {
			return
		}
		groupID, _ := params.Filter("option_group_id")
		page, err := h.carts.ListItemOptions(ctx, actor, services.ListItemOptionsQuery{
			CartID:        cartID,
			ItemID:        itemID,
			OptionGroupID: groupID,
			Page:          params.Page,
		})
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, buildPage(page, toCartItemOptionPayload))
	})
}

func (h *CartHandlers) attachOption(w http.ResponseWriter, r *http.Request) {
	h.withCartItem(w, r, func(actor domain.Actor, cartID, itemID string) {
		ctx := r.Context()
		var req attachOptionRequest
		if err := decodeJSONBody(r, &req, false); err != nil {
			writeBodyError(ctx, w, err)
			return
		}
		option, err := h.carts.AttachOption(ctx, actor, services.AttachOptionCommand{
			CartID:        cartID,
			ItemID:        itemID,
			OptionGroupID: strings.TrimSpace(req.OptionGroupID),
			OptionID:      strings.TrimSpace(req.OptionID),
		})
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusCreated, toCartItemOptionPayload(option))
	})
}

func (h *CartHandlers) updateOption(w http.ResponseWriter, r *http.Request) {
	h.withCartItem(w, r, func(actor domain.Actor, cartID, itemID string) {
		ctx := r.Context()
		optionID, ok := pathUUID(w, r, "optionID")
		if !ok {
			return
		}
		var req updateOptionRequest
		if err := decodeJSONBody(r, &req, false); err != nil {
			writeBodyError(ctx, w, err)
			return
		}
		option, err := h.carts.UpdateOption(ctx, actor, services.UpdateOptionCommand{
			CartID:          cartID,
			ItemID:          itemID,
			OptionRecordID:  optionID,
			OptionGroupID:   trimmedPtr(req.OptionGroupID),
			OptionID:        trimmedPtr(req.OptionID),
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, toCartItemOptionPayload(option))
	})
}

func (h *CartHandlers) removeOption(w http.ResponseWriter, r *http.Request) {
	h.withCartItem(w, r, func(actor domain.Actor, cartID, itemID string) {
		optionID, ok := pathUUID(w, r, "optionID")
		if !ok {
			return
		}
		err := h.carts.RemoveOption(r.Context(), actor, services.RemoveOptionCommand{
			CartID:         cartID,
			ItemID:         itemID,
			OptionRecordID: optionID,
		})
		if err != nil {
			writeServiceError(r.Context(), w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func (h *CartHandlers) withCart(w http.ResponseWriter, r *http.Request, fn func(actor domain.Actor, cartID string)) {
	if h.carts == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("cart_service_unavailable", "cart service unavailable", http.StatusServiceUnavailable))
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	cartID, ok := pathUUID(w, r, "cartID")
	if !ok {
		return
	}
	fn(actor, cartID)
}

func (h *CartHandlers) withCartItem(w http.ResponseWriter, r *http.Request, fn func(actor domain.Actor, cartID, itemID string)) {
	h.withCart(w, r, func(actor domain.Actor, cartID string) {
		itemID, ok := pathUUID(w, r, "itemID")
		if !ok {
			return
		}
		fn(actor, cartID, itemID)
	})
}

func toCartPayload(cart domain.Cart) cartPayload {
	return cartPayload{
		ID:          cart.ID,
		GuestID:     cart.GuestID,
		MemberID:    cart.MemberID,
		Status:      string(cart.Status),
		Version:     cart.Version,
		CreatedAt:   formatTime(cart.CreatedAt),
		UpdatedAt:   formatTime(cart.UpdatedAt),
		OrderedAt:   formatTimePtr(cart.OrderedAt),
		AbandonedAt: formatTimePtr(cart.AbandonedAt),
	}
}

func toCartItemPayload(item domain.CartItem) cartItemPayload {
	return cartItemPayload{
		ID:         item.ID,
		CartID:     item.CartID,
		SnapshotID: item.SnapshotID,
		SaleID:     item.SaleID,
		SellerID:   item.SellerID,
		Quantity:   item.Quantity,
		UnitPrice:  money(item.UnitPrice),
		LineTotal:  money(domain.LineTotal(item.UnitPrice, item.Quantity)),
		Status:     string(item.Status),
		Version:    item.Version,
		CreatedAt:  formatTime(item.CreatedAt),
		UpdatedAt:  formatTime(item.UpdatedAt),
	}
}

func toCartItemOptionPayload(option domain.CartItemOption) cartItemOptionPayload {
	return cartItemOptionPayload{
		ID:            option.ID,
		CartItemID:    option.CartItemID,
		OptionGroupID: option.OptionGroupID,
		OptionID:      option.OptionID,
		Version:       option.Version,
		CreatedAt:     formatTime(option.CreatedAt),
		UpdatedAt:     formatTime(option.UpdatedAt),
	}
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
