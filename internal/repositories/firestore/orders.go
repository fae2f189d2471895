package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	pfirestore "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/firestore"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

// OrderRepository persists order headers. Order codes are reserved in a companion collection keyed by code.
type OrderRepository struct {
	base  *pfirestore.Collection[orderDocument]
	codes *pfirestore.Collection[orderCodeDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base:  pfirestore.NewCollection[orderDocument](provider, orderCollection),
		codes: pfirestore.NewCollection[orderCodeDocument](provider, orderCodeCollection),
	}, nil
}

// Insert reserves the order code and writes the order. A taken code surfaces as a conflict.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if err := r.codes.Create(ctx, order.Code, orderCodeDocument{OrderID: order.ID, CreatedAt: order.CreatedAt.UTC()}); err != nil {
		return err
	}
	return r.base.Create(ctx, order.ID, newOrderDocument(order))
}

// Update rewrites the order header. The order code is immutable once reserved.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.base.Set(ctx, order.ID, newOrderDocument(order))
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter, page domain.PageRequest) (domain.Page[domain.Order], error) {
	return listPage(ctx, r.base, func(q firestore.Query) firestore.Query {
		if filter.MemberID != "" {
			q = q.Where("memberId", "==", filter.MemberID)
		}
		if filter.SellerID != "" {
			q = q.Where("sellerIds", "array-contains", filter.SellerID)
		}
		if len(filter.Status) > 0 {
			statuses := make([]string, 0, len(filter.Status))
			for _, status := range filter.Status {
				statuses = append(statuses, string(status))
			}
			q = q.Where("status", "in", statuses)
		}
		return q
	}, page, fallible(orderDocument.toDomain))
}

// OrderItemRepository persists order lines.
type OrderItemRepository struct {
	base *pfirestore.Collection[orderItemDocument]
}

// NewOrderItemRepository constructs a Firestore-backed order item repository.
func NewOrderItemRepository(provider *pfirestore.Provider) (*OrderItemRepository, error) {
	if provider == nil {
		return nil, errors.New("order item repository requires firestore provider")
	}
	return &OrderItemRepository{base: pfirestore.NewCollection[orderItemDocument](provider, orderItemCollection)}, nil
}

func (r *OrderItemRepository) Insert(ctx context.Context, item domain.OrderItem) error {
	return r.base.Create(ctx, item.ID, newOrderItemDocument(item))
}

func (r *OrderItemRepository) Update(ctx context.Context, item domain.OrderItem) error {
	return r.base.Set(ctx, item.ID, newOrderItemDocument(item))
}

func (r *OrderItemRepository) FindByID(ctx context.Context, itemID string) (domain.OrderItem, error) {
	doc, err := r.base.Get(ctx, itemID)
	if err != nil {
		return domain.OrderItem{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

func (r *OrderItemRepository) List(ctx context.Context, orderID string, page domain.PageRequest) (domain.Page[domain.OrderItem], error) {
	return listPage(ctx, r.base, byOrder(orderID), page, fallible(orderItemDocument.toDomain))
}

func (r *OrderItemRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	return listAll(ctx, r.base, byOrder(orderID), fallible(orderItemDocument.toDomain))
}

func byOrder(orderID string) pfirestore.QueryBuilder {
	return func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID)
	}
}
