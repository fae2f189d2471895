package memory

import (
	"context"
	"slices"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

type orderRepository struct{ store *store }

func (r orderRepository) Insert(ctx context.Context, order domain.Order) error {
	return r.store.write(ctx, "orders.insert", func(s *state) error {
		if _, taken := s.orderCodes[order.Code]; taken {
			return conflict("orders.insert", "code "+order.Code)
		}
		if err := s.orders.insert(order.ID, cloneOrder(order)); err != nil {
			return err
		}
		s.orderCodes[order.Code] = order.ID
		return nil
	})
}

func (r orderRepository) Update(ctx context.Context, order domain.Order) error {
	return r.store.write(ctx, "orders.update", func(s *state) error {
		current, err := s.orders.get("update", order.ID)
		if err != nil {
			return err
		}
		if current.Code != order.Code {
			if _, taken := s.orderCodes[order.Code]; taken {
				return conflict("orders.update", "code "+order.Code)
			}
			delete(s.orderCodes, current.Code)
			s.orderCodes[order.Code] = order.ID
		}
		return s.orders.put(order.ID, cloneOrder(order))
	})
}

func (r orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := r.store.read(ctx, "orders.get", func(s *state) error {
		found, err := s.orders.get("get", orderID)
		order = cloneOrder(found)
		return err
	})
	return order, err
}

func (r orderRepository) List(ctx context.Context, filter repositories.OrderListFilter, page domain.PageRequest) (domain.Page[domain.Order], error) {
	var orders []domain.Order
	err := r.store.read(ctx, "orders.list", func(s *state) error {
		orders = s.orders.filter(func(o domain.Order) bool {
			if filter.MemberID != "" && o.MemberID != filter.MemberID {
				return false
			}
			if filter.SellerID != "" && !slices.Contains(o.SellerIDs, filter.SellerID) {
				return false
			}
			return len(filter.Status) == 0 || slices.Contains(filter.Status, o.Status)
		})
		return nil
	})
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	window, total := domain.Window(orders, page)
	for i := range window {
		window[i] = cloneOrder(window[i])
	}
	return domain.NewPage(window, total, page), nil
}

type orderItemRepository struct{ store *store }

func (r orderItemRepository) Insert(ctx context.Context, item domain.OrderItem) error {
	return r.store.write(ctx, "orderItems.insert", func(s *state) error {
		return s.orderItems.insert(item.ID, item)
	})
}

func (r orderItemRepository) Update(ctx context.Context, item domain.OrderItem) error {
	return r.store.write(ctx, "orderItems.update", func(s *state) error {
		return s.orderItems.put(item.ID, item)
	})
}

func (r orderItemRepository) FindByID(ctx context.Context, itemID string) (domain.OrderItem, error) {
	var item domain.OrderItem
	err := r.store.read(ctx, "orderItems.get", func(s *state) error {
		var err error
		item, err = s.orderItems.get("get", itemID)
		return err
	})
	return item, err
}

func (r orderItemRepository) List(ctx context.Context, orderID string, page domain.PageRequest) (domain.Page[domain.OrderItem], error) {
	items, err := r.ListByOrder(ctx, orderID)
	if err != nil {
		return domain.Page[domain.OrderItem]{}, err
	}
	window, total := domain.Window(items, page)
	return domain.NewPage(window, total, page), nil
}

func (r orderItemRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	err := r.store.read(ctx, "orderItems.list", func(s *state) error {
		items = s.orderItems.filter(func(item domain.OrderItem) bool {
			return item.OrderID == orderID
		})
		return nil
	})
	return items, err
}
