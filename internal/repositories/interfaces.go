package repositories

import (
	"context"
	"time"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	CartItems() CartItemRepository
	CartItemOptions() CartItemOptionRepository
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Payments() PaymentRepository
	Deliveries() DeliveryRepository
	Catalog() CatalogRepository
	Channels() ChannelRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CartRepository persists cart headers.
type CartRepository interface {
	Insert(ctx context.Context, cart domain.Cart) error
	Update(ctx context.Context, cart domain.Cart) error
	FindByID(ctx context.Context, cartID string) (domain.Cart, error)
	ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Cart, error)
}

// CartItemFilter narrows cart item listings.
type CartItemFilter struct {
	Status *domain.CartItemStatus
}

// CartItemRepository persists cart lines. Soft-deleted lines are invisible to reads.
type CartItemRepository interface {
	Insert(ctx context.Context, item domain.CartItem) error
	Update(ctx context.Context, item domain.CartItem) error
	SoftDelete(ctx context.Context, itemID string, deletedAt time.Time) error
	FindByID(ctx context.Context, itemID string) (domain.CartItem, error)
	List(ctx context.Context, cartID string, filter CartItemFilter, page domain.PageRequest) (domain.Page[domain.CartItem], error)
	ListByCart(ctx context.Context, cartID string) ([]domain.CartItem, error)
}

// CartItemOptionFilter narrows option listings.
type CartItemOptionFilter struct {
	OptionGroupID string
}

// CartItemOptionRepository persists option choices attached to cart lines. Soft-deleted rows are invisible to reads.
type CartItemOptionRepository interface {
	Insert(ctx context.Context, option domain.CartItemOption) error
	Update(ctx context.Context, option domain.CartItemOption) error
	SoftDelete(ctx context.Context, optionID string, deletedAt time.Time) error
	FindByID(ctx context.Context, optionID string) (domain.CartItemOption, error)
	List(ctx context.Context, cartItemID string, filter CartItemOptionFilter, page domain.PageRequest) (domain.Page[domain.CartItemOption], error)
}

// OrderListFilter narrows order listings. Empty fields are ignored.
type OrderListFilter struct {
	MemberID string
	SellerID string
	Status   []domain.OrderStatus
}

// OrderRepository persists order headers. Insert reports a conflict when the order code is taken.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter, page domain.PageRequest) (domain.Page[domain.Order], error)
}

// OrderItemRepository persists order lines.
type OrderItemRepository interface {
	Insert(ctx context.Context, item domain.OrderItem) error
	Update(ctx context.Context, item domain.OrderItem) error
	FindByID(ctx context.Context, itemID string) (domain.OrderItem, error)
	List(ctx context.Context, orderID string, page domain.PageRequest) (domain.Page[domain.OrderItem], error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.OrderItem, error)
}

// PaymentRepository persists payment records. Delete removes the record permanently.
type PaymentRepository interface {
	Insert(ctx context.Context, payment domain.Payment) error
	Update(ctx context.Context, payment domain.Payment) error
	Delete(ctx context.Context, paymentID string) error
	FindByID(ctx context.Context, paymentID string) (domain.Payment, error)
	List(ctx context.Context, orderID string, page domain.PageRequest) (domain.Page[domain.Payment], error)
	ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error)
}

// DeliveryFilter narrows delivery listings by exact status and stage.
type DeliveryFilter struct {
	Status *domain.DeliveryStatus
	Stage  *domain.DeliveryStage
	Sort   domain.DeliverySort
}

// DeliveryRepository persists delivery records. Delete removes the record permanently.
type DeliveryRepository interface {
	Insert(ctx context.Context, delivery domain.Delivery) error
	Update(ctx context.Context, delivery domain.Delivery) error
	Delete(ctx context.Context, deliveryID string) error
	FindByID(ctx context.Context, deliveryID string) (domain.Delivery, error)
	List(ctx context.Context, orderID string, filter DeliveryFilter, page domain.PageRequest) (domain.Page[domain.Delivery], error)
}

// CatalogRepository reads the externally managed catalog.
type CatalogRepository interface {
	FindSale(ctx context.Context, saleID string) (domain.Sale, error)
	FindSnapshot(ctx context.Context, snapshotID string) (domain.SaleSnapshot, error)
	FindOptionGroup(ctx context.Context, groupID string) (domain.OptionGroup, error)
	FindOption(ctx context.Context, optionID string) (domain.Option, error)
}

// ChannelRepository reads the externally managed sales channels and sections.
type ChannelRepository interface {
	FindChannel(ctx context.Context, channelID string) (domain.Channel, error)
	FindSection(ctx context.Context, sectionID string) (domain.Section, error)
}

// HealthRepository aggregates dependency probes for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.Readiness, error)
}
