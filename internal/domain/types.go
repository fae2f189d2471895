package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// Role tags the kind of principal acting on the workflow.
type Role string

const (
	// RoleGuest identifies an anonymous shopper holding a guest session.
	RoleGuest Role = "guest"
	// RoleMember identifies a registered customer.
	RoleMember Role = "member"
	// RoleSeller identifies a merchant operating sales on a channel.
	RoleSeller Role = "seller"
	// RoleAdmin identifies an operator with unrestricted access.
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleMember, RoleSeller, RoleAdmin:
		return true
	default:
		return false
	}
}

// Actor is the authenticated principal an operation is performed on behalf of.
type Actor struct {
	ID   string
	Role Role
}

// IsZero reports whether the actor carries no identity.
func (a Actor) IsZero() bool {
	return a.ID == "" && a.Role == ""
}

// CartStatus captures the lifecycle of a cart.
type CartStatus string

const (
	// CartStatusActive accepts item mutations.
	CartStatusActive CartStatus = "active"
	// CartStatusOrdered marks a cart converted into an order.
	CartStatusOrdered CartStatus = "ordered"
	// CartStatusAbandoned marks a cart dropped explicitly or by the stale-cart sweep.
	CartStatusAbandoned CartStatus = "abandoned"
)

// CartItemStatus captures the lifecycle of a cart line.
type CartItemStatus string

const (
	CartItemStatusPending CartItemStatus = "pending"
	CartItemStatusOrdered CartItemStatus = "ordered"
	CartItemStatusRemoved CartItemStatus = "removed"
)

// Valid reports whether the status is known.
func (s CartItemStatus) Valid() bool {
	switch s {
	case CartItemStatusPending, CartItemStatusOrdered, CartItemStatusRemoved:
		return true
	default:
		return false
	}
}

// Cart belongs to exactly one guest or member owner.
type Cart struct {
	ID          string
	GuestID     string
	MemberID    string
	Status      CartStatus
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	OrderedAt   *time.Time
	AbandonedAt *time.Time
}

// OwnerID returns whichever owner reference is set.
func (c Cart) OwnerID() string {
	if c.MemberID != "" {
		return c.MemberID
	}
	return c.GuestID
}

// CartItem is a line within a cart referencing a frozen catalog snapshot.
type CartItem struct {
	ID         string
	CartID     string
	SnapshotID string
	SaleID     string
	SellerID   string
	Quantity   int
	UnitPrice  decimal.Decimal
	Status     CartItemStatus
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  *time.Time
}

// CartItemOption attaches one catalog option choice to a cart item.
type CartItemOption struct {
	ID            string
	CartItemID    string
	OptionGroupID string
	OptionID      string
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// OrderStatus captures the fulfilment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OrderPaymentStatus is derived from the payment sub-ledger of an order.
type OrderPaymentStatus string

const (
	OrderPaymentStatusPending       OrderPaymentStatus = "pending"
	OrderPaymentStatusPartiallyPaid OrderPaymentStatus = "partially_paid"
	OrderPaymentStatusPaid          OrderPaymentStatus = "paid"
	OrderPaymentStatusRefunded      OrderPaymentStatus = "refunded"
)

// OrderItemStatus captures the state of a single order line.
type OrderItemStatus string

const (
	OrderItemStatusPending   OrderItemStatus = "pending"
	OrderItemStatusConfirmed OrderItemStatus = "confirmed"
	OrderItemStatusShipped   OrderItemStatus = "shipped"
	OrderItemStatusDelivered OrderItemStatus = "delivered"
	OrderItemStatusCancelled OrderItemStatus = "cancelled"
)

// Valid reports whether the status is known.
func (s OrderItemStatus) Valid() bool {
	switch s {
	case OrderItemStatusPending, OrderItemStatusConfirmed, OrderItemStatusShipped, OrderItemStatusDelivered, OrderItemStatusCancelled:
		return true
	default:
		return false
	}
}

// Order is placed by a single member on a sales channel.
type Order struct {
	ID            string
	Code          string
	MemberID      string
	ChannelID     string
	SectionID     *string
	CartID        *string
	SellerIDs     []string
	Status        OrderStatus
	PaymentStatus OrderPaymentStatus
	TotalPrice    decimal.Decimal
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
}

// OrderItem is an immutable reference to a catalog snapshot sold within an order.
type OrderItem struct {
	ID         string
	OrderID    string
	SnapshotID string
	SaleID     string
	SellerID   string
	Quantity   int
	Price      decimal.Decimal
	Status     OrderItemStatus
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PaymentStatus captures the lifecycle of a single payment record.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// Valid reports whether the status is known.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusConfirmed, PaymentStatusCancelled:
		return true
	default:
		return false
	}
}

// Payment records money collected (or reversed) against an order.
type Payment struct {
	ID            string
	OrderID       string
	Method        string
	Status        PaymentStatus
	Amount        decimal.Decimal
	TransactionID *string
	ConfirmedAt   *time.Time
	CancelledAt   *time.Time
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryStatus is the coarse shipping state of a delivery.
type DeliveryStatus string

const (
	DeliveryStatusPreparing DeliveryStatus = "preparing"
	DeliveryStatusShipping  DeliveryStatus = "shipping"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

// Valid reports whether the status is known.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusPreparing, DeliveryStatusShipping, DeliveryStatusDelivered:
		return true
	default:
		return false
	}
}

// DeliveryStage is the fine-grained fulfilment stage of a delivery. It is set independently of DeliveryStatus.
type DeliveryStage string

const (
	DeliveryStagePreparation   DeliveryStage = "preparation"
	DeliveryStageManufacturing DeliveryStage = "manufacturing"
	DeliveryStageShipping      DeliveryStage = "shipping"
	DeliveryStageCompleted     DeliveryStage = "completed"
)

// Valid reports whether the stage is known.
func (s DeliveryStage) Valid() bool {
	switch s {
	case DeliveryStagePreparation, DeliveryStageManufacturing, DeliveryStageShipping, DeliveryStageCompleted:
		return true
	default:
		return false
	}
}

// Delivery is one shipment of (part of) an order.
type Delivery struct {
	ID                   string
	OrderID              string
	Status               DeliveryStatus
	Stage                DeliveryStage
	ExpectedDeliveryDate *time.Time
	StartTime            *time.Time
	EndTime              *time.Time
	Version              int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DeliverySortField lists the timestamp fields deliveries may be ordered by.
type DeliverySortField string

const (
	DeliverySortCreatedAt            DeliverySortField = "created_at"
	DeliverySortUpdatedAt            DeliverySortField = "updated_at"
	DeliverySortExpectedDeliveryDate DeliverySortField = "expected_delivery_date"
	DeliverySortStartTime            DeliverySortField = "start_time"
	DeliverySortEndTime              DeliverySortField = "end_time"
)

// Valid reports whether the field is sortable.
func (f DeliverySortField) Valid() bool {
	switch f {
	case DeliverySortCreatedAt, DeliverySortUpdatedAt, DeliverySortExpectedDeliveryDate, DeliverySortStartTime, DeliverySortEndTime:
		return true
	default:
		return false
	}
}

// DeliverySort orders delivery listings.
type DeliverySort struct {
	Field     DeliverySortField
	Direction SortOrder
}

// Channel is a sales channel orders are placed on.
type Channel struct {
	ID     string
	Code   string
	Name   string
	Active bool
}

// Section is an optional sub-area of a channel.
type Section struct {
	ID        string
	ChannelID string
	Name      string
	Active    bool
}

// Sale is a seller's listing on the catalog. SnapshotID points at its current frozen snapshot.
type Sale struct {
	ID         string
	SellerID   string
	ChannelID  string
	Title      string
	SnapshotID string
	Active     bool
}

// SaleSnapshot freezes price and description of a sale at a point in time.
type SaleSnapshot struct {
	ID        string
	SaleID    string
	Title     string
	UnitPrice decimal.Decimal
	CreatedAt time.Time
}

// OptionGroup is a node of the catalog option taxonomy (for example "colour").
type OptionGroup struct {
	ID     string
	Name   string
	Active bool
}

// Option is a selectable value within an option group.
type Option struct {
	ID      string
	GroupID string
	Name    string
	Active  bool
}

// SnapshotRef is the resolved, immutable catalog reference stored on cart and order lines.
type SnapshotRef struct {
	SnapshotID string
	SaleID     string
	SellerID   string
	Title      string
	UnitPrice  decimal.Decimal
}

// OptionRef is a resolved option taxonomy entry.
type OptionRef struct {
	GroupID  string
	OptionID string
	Name     string
}
