package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

// CatalogService resolves catalog references into immutable snapshot and option references.
type CatalogService interface {
	ResolveSaleSnapshot(ctx context.Context, saleOrSnapshotID string) (domain.SnapshotRef, error)
	ResolveOption(ctx context.Context, optionGroupID, optionID string) (domain.OptionRef, error)
}

// CartService manages carts, their lines and line options.
type CartService interface {
	CreateCart(ctx context.Context, actor domain.Actor, cmd CreateCartCommand) (domain.Cart, error)
	GetCart(ctx context.Context, actor domain.Actor, cartID string) (domain.Cart, error)
	AbandonCart(ctx context.Context, actor domain.Actor, cartID string) (domain.Cart, error)
	AbandonStaleCarts(ctx context.Context, cmd AbandonStaleCartsCommand) (int, error)
	CheckoutCart(ctx context.Context, actor domain.Actor, cmd CheckoutCartCommand) (domain.Order, error)

	AddItem(ctx context.Context, actor domain.Actor, cmd AddCartItemCommand) (domain.CartItem, error)
	UpdateItem(ctx context.Context, actor domain.Actor, cmd UpdateCartItemCommand) (domain.CartItem, error)
	RemoveItem(ctx context.Context, actor domain.Actor, cartID, itemID string) error
	ListItems(ctx context.Context, actor domain.Actor, cartID string, filter CartItemFilter, page domain.PageRequest) (domain.Page[domain.CartItem], error)

	AttachOption(ctx context.Context, actor domain.Actor, cmd AttachOptionCommand) (domain.CartItemOption, error)
	UpdateOption(ctx context.Context, actor domain.Actor, cmd UpdateOptionCommand) (domain.CartItemOption, error)
	RemoveOption(ctx context.Context, actor domain.Actor, cmd RemoveOptionCommand) error
	ListItemOptions(ctx context.Context, actor domain.Actor, cmd ListItemOptionsQuery) (domain.Page[domain.CartItemOption], error)
}

// OrderService manages orders and their lines.
type OrderService interface {
	CreateOrder(ctx context.Context, actor domain.Actor, cmd CreateOrderCommand) (domain.Order, error)
	GetOrder(ctx context.Context, actor domain.Actor, orderID string) (domain.Order, error)
	ListOrders(ctx context.Context, actor domain.Actor, filter OrderListFilter, page domain.PageRequest) (domain.Page[domain.Order], error)
	TransitionStatus(ctx context.Context, actor domain.Actor, cmd TransitionOrderCommand) (domain.Order, error)
	ReconcileTotal(ctx context.Context, actor domain.Actor, orderID string) (Reconciliation, error)

	AddItem(ctx context.Context, actor domain.Actor, cmd AddOrderItemCommand) (domain.OrderItem, error)
	UpdateItem(ctx context.Context, actor domain.Actor, cmd UpdateOrderItemCommand) (domain.OrderItem, error)
	ListItems(ctx context.Context, actor domain.Actor, orderID string, page domain.PageRequest) (domain.Page[domain.OrderItem], error)
}

// PaymentService records payments against orders.
type PaymentService interface {
	CreatePayment(ctx context.Context, actor domain.Actor, cmd CreatePaymentCommand) (domain.Payment, error)
	UpdatePayment(ctx context.Context, actor domain.Actor, cmd UpdatePaymentCommand) (domain.Payment, error)
	DeletePayment(ctx context.Context, actor domain.Actor, orderID, paymentID string) error
	GetPayment(ctx context.Context, actor domain.Actor, orderID, paymentID string) (domain.Payment, error)
	ListPayments(ctx context.Context, actor domain.Actor, orderID string, page domain.PageRequest) (domain.Page[domain.Payment], error)
}

// DeliveryService records shipments against orders.
type DeliveryService interface {
	CreateDelivery(ctx context.Context, actor domain.Actor, cmd CreateDeliveryCommand) (domain.Delivery, error)
	UpdateDelivery(ctx context.Context, actor domain.Actor, cmd UpdateDeliveryCommand) (domain.Delivery, error)
	DeleteDelivery(ctx context.Context, actor domain.Actor, orderID, deliveryID string) error
	GetDelivery(ctx context.Context, actor domain.Actor, orderID, deliveryID string) (domain.Delivery, error)
	ListDeliveries(ctx context.Context, actor domain.Actor, query ListDeliveriesQuery) (domain.Page[domain.Delivery], error)
}

// SystemService reports service readiness.
type SystemService interface {
	HealthReport(ctx context.Context) (domain.Readiness, error)
}

// CreateCartCommand names exactly one cart owner.
type CreateCartCommand struct {
	GuestID  string
	MemberID string
}

// AbandonStaleCartsCommand drives the stale cart sweep.
type AbandonStaleCartsCommand struct {
	OlderThan time.Duration
	Limit     int
}

// CheckoutCartCommand converts a member cart into an order.
type CheckoutCartCommand struct {
	CartID     string
	ChannelID  string
	SectionID  *string
	Code       string
	TotalPrice decimal.Decimal
}

// AddCartItemCommand adds a line referencing a sale or snapshot.
type AddCartItemCommand struct {
	CartID    string
	Reference string
	Quantity  int
	UnitPrice decimal.Decimal
	Status    *domain.CartItemStatus
}

// UpdateCartItemCommand patches a cart line. Nil fields keep their stored value.
type UpdateCartItemCommand struct {
	CartID          string
	ItemID          string
	Quantity        *int
	UnitPrice       *decimal.Decimal
	Status          *domain.CartItemStatus
	ExpectedVersion *int64
}

// CartItemFilter narrows cart line listings.
type CartItemFilter struct {
	Status *domain.CartItemStatus
}

// AttachOptionCommand attaches one option choice to a cart line. CartID is optional and, when set,
// must own the line.
type AttachOptionCommand struct {
	CartID        string
	ItemID        string
	OptionGroupID string
	OptionID      string
}

// UpdateOptionCommand replaces the option choice of an attached option record.
type UpdateOptionCommand struct {
	CartID          string
	ItemID          string
	OptionRecordID  string
	OptionGroupID   *string
	OptionID        *string
	ExpectedVersion *int64
}

// RemoveOptionCommand soft-deletes an attached option record.
type RemoveOptionCommand struct {
	CartID         string
	ItemID         string
	OptionRecordID string
}

// ListItemOptionsQuery lists options attached to a cart line.
type ListItemOptionsQuery struct {
	CartID        string
	ItemID        string
	OptionGroupID string
	Page          domain.PageRequest
}

// OrderLine is a resolved line used when an order is created with its lines.
type OrderLine struct {
	Snapshot domain.SnapshotRef
	Quantity int
	Price    decimal.Decimal
}

// CreateOrderCommand opens an order for a member on a channel.
type CreateOrderCommand struct {
	MemberID   string
	ChannelID  string
	SectionID  *string
	CartID     *string
	Code       string
	TotalPrice decimal.Decimal
	Lines      []OrderLine
}

// OrderListFilter narrows order listings. Visibility scoping is applied from the actor.
type OrderListFilter struct {
	Status []domain.OrderStatus
}

// TransitionOrderCommand moves an order along its status machine.
type TransitionOrderCommand struct {
	OrderID         string
	Target          domain.OrderStatus
	ExpectedVersion *int64
}

// Reconciliation compares the stored order total with the sum of its live lines.
type Reconciliation struct {
	OrderID    string
	TotalPrice decimal.Decimal
	LineTotal  decimal.Decimal
	Mismatch   bool
}

// AddOrderItemCommand adds a line to an open order.
type AddOrderItemCommand struct {
	OrderID   string
	Reference string
	Quantity  int
	Price     decimal.Decimal
	Status    *domain.OrderItemStatus
}

// UpdateOrderItemCommand patches an order line. Nil fields keep their stored value.
type UpdateOrderItemCommand struct {
	OrderID         string
	ItemID          string
	Quantity        *int
	Price           *decimal.Decimal
	Status          *domain.OrderItemStatus
	ExpectedVersion *int64
}

// CreatePaymentCommand records a payment.
type CreatePaymentCommand struct {
	OrderID       string
	Method        string
	Status        domain.PaymentStatus
	Amount        decimal.Decimal
	TransactionID *string
}

// UpdatePaymentCommand patches a payment. CancelledAt distinguishes "leave unchanged" from "clear".
type UpdatePaymentCommand struct {
	OrderID         string
	PaymentID       string
	Method          *string
	Status          *domain.PaymentStatus
	Amount          *decimal.Decimal
	TransactionID   *string
	CancelledAt     OptionalTime
	ExpectedVersion *int64
}

// CreateDeliveryCommand records a delivery.
type CreateDeliveryCommand struct {
	OrderID              string
	Status               domain.DeliveryStatus
	Stage                domain.DeliveryStage
	ExpectedDeliveryDate *time.Time
	StartTime            *time.Time
	EndTime              *time.Time
}

// UpdateDeliveryCommand patches a delivery. Timestamp fields may be cleared.
type UpdateDeliveryCommand struct {
	OrderID              string
	DeliveryID           string
	Status               *domain.DeliveryStatus
	Stage                *domain.DeliveryStage
	ExpectedDeliveryDate OptionalTime
	StartTime            OptionalTime
	EndTime              OptionalTime
	ExpectedVersion      *int64
}

// ListDeliveriesQuery lists deliveries of an order with exact-match filters.
type ListDeliveriesQuery struct {
	OrderID string
	Status  *domain.DeliveryStatus
	Stage   *domain.DeliveryStage
	Sort    domain.DeliverySort
	Page    domain.PageRequest
}

// OptionalTime is a tri-state patch value: unset, set to a time, or explicitly cleared.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

// apply returns the patched value.
func (o OptionalTime) apply(current *time.Time) *time.Time {
	if !o.Set {
		return current
	}
	if o.Value == nil {
		return nil
	}
	v := o.Value.UTC()
	return &v
}
