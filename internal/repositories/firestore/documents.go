package firestore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

const (
	cartCollection           = "carts"
	cartItemCollection       = "cartItems"
	cartItemOptionCollection = "cartItemOptions"
	orderCollection          = "orders"
	orderCodeCollection      = "orderCodes"
	orderItemCollection      = "orderItems"
	paymentCollection        = "payments"
	deliveryCollection       = "deliveries"
	channelCollection        = "channels"
	sectionCollection        = "sections"
	saleCollection           = "sales"
	saleSnapshotCollection   = "saleSnapshots"
	optionGroupCollection    = "optionGroups"
	optionCollection         = "options"
)

// Money is persisted as a decimal string so no precision is lost to float64.
func encodeMoney(value decimal.Decimal) string {
	return value.String()
}

func decodeMoney(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode %s: %w", field, err)
	}
	return value, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

type cartDocument struct {
	GuestID     string     `firestore:"guestId"`
	MemberID    string     `firestore:"memberId"`
	Status      string     `firestore:"status"`
	Version     int64      `firestore:"version"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
	OrderedAt   *time.Time `firestore:"orderedAt"`
	AbandonedAt *time.Time `firestore:"abandonedAt"`
}

func newCartDocument(cart domain.Cart) cartDocument {
	return cartDocument{
		GuestID:     cart.GuestID,
		MemberID:    cart.MemberID,
		Status:      string(cart.Status),
		Version:     cart.Version,
		CreatedAt:   cart.CreatedAt.UTC(),
		UpdatedAt:   cart.UpdatedAt.UTC(),
		OrderedAt:   utcPtr(cart.OrderedAt),
		AbandonedAt: utcPtr(cart.AbandonedAt),
	}
}

func (d cartDocument) toDomain(id string) domain.Cart {
	return domain.Cart{
		ID:          id,
		GuestID:     d.GuestID,
		MemberID:    d.MemberID,
		Status:      domain.CartStatus(d.Status),
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		OrderedAt:   d.OrderedAt,
		AbandonedAt: d.AbandonedAt,
	}
}

type cartItemDocument struct {
	CartID     string     `firestore:"cartId"`
	SnapshotID string     `firestore:"snapshotId"`
	SaleID     string     `firestore:"saleId"`
	SellerID   string     `firestore:"sellerId"`
	Quantity   int        `firestore:"quantity"`
	UnitPrice  string     `firestore:"unitPrice"`
	Status     string     `firestore:"status"`
	Version    int64      `firestore:"version"`
	CreatedAt  time.Time  `firestore:"createdAt"`
	UpdatedAt  time.Time  `firestore:"updatedAt"`
	DeletedAt  *time.Time `firestore:"deletedAt"`
}

func newCartItemDocument(item domain.CartItem) cartItemDocument {
	return cartItemDocument{
		CartID:     item.CartID,
		SnapshotID: item.SnapshotID,
		SaleID:     item.SaleID,
		SellerID:   item.SellerID,
		Quantity:   item.Quantity,
		UnitPrice:  encodeMoney(item.UnitPrice),
		Status:     string(item.Status),
		Version:    item.Version,
		CreatedAt:  item.CreatedAt.UTC(),
		UpdatedAt:  item.UpdatedAt.UTC(),
		DeletedAt:  utcPtr(item.DeletedAt),
	}
}

func (d cartItemDocument) toDomain(id string) (domain.CartItem, error) {
	price, err := decodeMoney("unitPrice", d.UnitPrice)
	if err != nil {
		return domain.CartItem{}, err
	}
	return domain.CartItem{
		ID:         id,
		CartID:     d.CartID,
		SnapshotID: d.SnapshotID,
		SaleID:     d.SaleID,
		SellerID:   d.SellerID,
		Quantity:   d.Quantity,
		UnitPrice:  price,
		Status:     domain.CartItemStatus(d.Status),
		Version:    d.Version,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		DeletedAt:  d.DeletedAt,
	}, nil
}

type cartItemOptionDocument struct {
	CartItemID    string     `firestore:"cartItemId"`
	OptionGroupID string     `firestore:"optionGroupId"`
	OptionID      string     `firestore:"optionId"`
	Version       int64      `firestore:"version"`
	CreatedAt     time.Time  `firestore:"createdAt"`
	UpdatedAt     time.Time  `firestore:"updatedAt"`
	DeletedAt     *time.Time `firestore:"deletedAt"`
}

func newCartItemOptionDocument(option domain.CartItemOption) cartItemOptionDocument {
	return cartItemOptionDocument{
		CartItemID:    option.CartItemID,
		OptionGroupID: option.OptionGroupID,
		OptionID:      option.OptionID,
		Version:       option.Version,
		CreatedAt:     option.CreatedAt.UTC(),
		UpdatedAt:     option.UpdatedAt.UTC(),
		DeletedAt:     utcPtr(option.DeletedAt),
	}
}

func (d cartItemOptionDocument) toDomain(id string) domain.CartItemOption {
	return domain.CartItemOption{
		ID:            id,
		CartItemID:    d.CartItemID,
		OptionGroupID: d.OptionGroupID,
		OptionID:      d.OptionID,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		DeletedAt:     d.DeletedAt,
	}
}

type orderDocument struct {
	Code          string     `firestore:"code"`
	MemberID      string     `firestore:"memberId"`
	ChannelID     string     `firestore:"channelId"`
	SectionID     *string    `firestore:"sectionId"`
	CartID        *string    `firestore:"cartId"`
	SellerIDs     []string   `firestore:"sellerIds"`
	Status        string     `firestore:"status"`
	PaymentStatus string     `firestore:"paymentStatus"`
	TotalPrice    string     `firestore:"totalPrice"`
	Version       int64      `firestore:"version"`
	CreatedAt     time.Time  `firestore:"createdAt"`
	UpdatedAt     time.Time  `firestore:"updatedAt"`
	CompletedAt   *time.Time `firestore:"completedAt"`
	CancelledAt   *time.Time `firestore:"cancelledAt"`
}

func newOrderDocument(order domain.Order) orderDocument {
	sellers := order.SellerIDs
	if sellers == nil {
		sellers = []string{}
	}
	return orderDocument{
		Code:          order.Code,
		MemberID:      order.MemberID,
		ChannelID:     order.ChannelID,
		SectionID:     order.SectionID,
		CartID:        order.CartID,
		SellerIDs:     sellers,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalPrice:    encodeMoney(order.TotalPrice),
		Version:       order.Version,
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
		CompletedAt:   utcPtr(order.CompletedAt),
		CancelledAt:   utcPtr(order.CancelledAt),
	}
}

func (d orderDocument) toDomain(id string) (domain.Order, error) {
	total, err := decodeMoney("totalPrice", d.TotalPrice)
	if err != nil {
		return domain.Order{}, err
	}
	return domain.Order{
		ID:            id,
		Code:          d.Code,
		MemberID:      d.MemberID,
		ChannelID:     d.ChannelID,
		SectionID:     d.SectionID,
		CartID:        d.CartID,
		SellerIDs:     append([]string(nil), d.SellerIDs...),
		Status:        domain.OrderStatus(d.Status),
		PaymentStatus: domain.OrderPaymentStatus(d.PaymentStatus),
		TotalPrice:    total,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
		CompletedAt:   d.CompletedAt,
		CancelledAt:   d.CancelledAt,
	}, nil
}

type orderCodeDocument struct {
	OrderID   string    `firestore:"orderId"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type orderItemDocument struct {
	OrderID    string    `firestore:"orderId"`
	SnapshotID string    `firestore:"snapshotId"`
	SaleID     string    `firestore:"saleId"`
	SellerID   string    `firestore:"sellerId"`
	Quantity   int       `firestore:"quantity"`
	Price      string    `firestore:"price"`
	Status     string    `firestore:"status"`
	Version    int64     `firestore:"version"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func newOrderItemDocument(item domain.OrderItem) orderItemDocument {
	return orderItemDocument{
		OrderID:    item.OrderID,
		SnapshotID: item.SnapshotID,
		SaleID:     item.SaleID,
		SellerID:   item.SellerID,
		Quantity:   item.Quantity,
		Price:      encodeMoney(item.Price),
		Status:     string(item.Status),
		Version:    item.Version,
		CreatedAt:  item.CreatedAt.UTC(),
		UpdatedAt:  item.UpdatedAt.UTC(),
	}
}

func (d orderItemDocument) toDomain(id string) (domain.OrderItem, error) {
	price, err := decodeMoney("price", d.Price)
	if err != nil {
		return domain.OrderItem{}, err
	}
	return domain.OrderItem{
		ID:         id,
		OrderID:    d.OrderID,
		SnapshotID: d.SnapshotID,
		SaleID:     d.SaleID,
		SellerID:   d.SellerID,
		Quantity:   d.Quantity,
		Price:      price,
		Status:     domain.OrderItemStatus(d.Status),
		Version:    d.Version,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}

type paymentDocument struct {
	OrderID       string     `firestore:"orderId"`
	Method        string     `firestore:"method"`
	Status        string     `firestore:"status"`
	Amount        string     `firestore:"amount"`
	TransactionID *string    `firestore:"transactionId"`
	ConfirmedAt   *time.Time `firestore:"confirmedAt"`
	CancelledAt   *time.Time `firestore:"cancelledAt"`
	Version       int64      `firestore:"version"`
	CreatedAt     time.Time  `firestore:"createdAt"`
	UpdatedAt     time.Time  `firestore:"updatedAt"`
}

func newPaymentDocument(payment domain.Payment) paymentDocument {
	return paymentDocument{
		OrderID:       payment.OrderID,
		Method:        payment.Method,
		Status:        string(payment.Status),
		Amount:        encodeMoney(payment.Amount),
		TransactionID: payment.TransactionID,
		ConfirmedAt:   utcPtr(payment.ConfirmedAt),
		CancelledAt:   utcPtr(payment.CancelledAt),
		Version:       payment.Version,
		CreatedAt:     payment.CreatedAt.UTC(),
		UpdatedAt:     payment.UpdatedAt.UTC(),
	}
}

func (d paymentDocument) toDomain(id string) (domain.Payment, error) {
	amount, err := decodeMoney("amount", d.Amount)
	if err != nil {
		return domain.Payment{}, err
	}
	return domain.Payment{
		ID:            id,
		OrderID:       d.OrderID,
		Method:        d.Method,
		Status:        domain.PaymentStatus(d.Status),
		Amount:        amount,
		TransactionID: d.TransactionID,
		ConfirmedAt:   d.ConfirmedAt,
		CancelledAt:   d.CancelledAt,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

type deliveryDocument struct {
	OrderID              string     `firestore:"orderId"`
	Status               string     `firestore:"status"`
	Stage                string     `firestore:"stage"`
	ExpectedDeliveryDate *time.Time `firestore:"expectedDeliveryDate"`
	StartTime            *time.Time `firestore:"startTime"`
	EndTime              *time.Time `firestore:"endTime"`
	Version              int64      `firestore:"version"`
	CreatedAt            time.Time  `firestore:"createdAt"`
	UpdatedAt            time.Time  `firestore:"updatedAt"`
}

func newDeliveryDocument(delivery domain.Delivery) deliveryDocument {
	return deliveryDocument{
		OrderID:              delivery.OrderID,
		Status:               string(delivery.Status),
		Stage:                string(delivery.Stage),
		ExpectedDeliveryDate: utcPtr(delivery.ExpectedDeliveryDate),
		StartTime:            utcPtr(delivery.StartTime),
		EndTime:              utcPtr(delivery.EndTime),
		Version:              delivery.Version,
		CreatedAt:            delivery.CreatedAt.UTC(),
		UpdatedAt:            delivery.UpdatedAt.UTC(),
	}
}

func (d deliveryDocument) toDomain(id string) domain.Delivery {
	return domain.Delivery{
		ID:                   id,
		OrderID:              d.OrderID,
		Status:               domain.DeliveryStatus(d.Status),
		Stage:                domain.DeliveryStage(d.Stage),
		ExpectedDeliveryDate: d.ExpectedDeliveryDate,
		StartTime:            d.StartTime,
		EndTime:              d.EndTime,
		Version:              d.Version,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

type channelDocument struct {
	Code   string `firestore:"code"`
	Name   string `firestore:"name"`
	Active bool   `firestore:"active"`
}

type sectionDocument struct {
	ChannelID string `firestore:"channelId"`
	Name      string `firestore:"name"`
	Active    bool   `firestore:"active"`
}

type saleDocument struct {
	SellerID   string `firestore:"sellerId"`
	ChannelID  string `firestore:"channelId"`
	Title      string `firestore:"title"`
	SnapshotID string `firestore:"snapshotId"`
	Active     bool   `firestore:"active"`
}

type saleSnapshotDocument struct {
	SaleID    string    `firestore:"saleId"`
	Title     string    `firestore:"title"`
	UnitPrice string    `firestore:"unitPrice"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type optionGroupDocument struct {
	Name   string `firestore:"name"`
	Active bool   `firestore:"active"`
}

type optionDocument struct {
	GroupID string `firestore:"groupId"`
	Name    string `firestore:"name"`
	Active  bool   `firestore:"active"`
}
