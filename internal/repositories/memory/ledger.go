package memory

import (
	"context"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

type paymentRepository struct{ store *store }

func (r paymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	return r.store.write(ctx, "payments.insert", func(s *state) error {
		return s.payments.insert(payment.ID, payment)
	})
}

func (r paymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	return r.store.write(ctx, "payments.update", func(s *state) error {
		return s.payments.put(payment.ID, payment)
	})
}

func (r paymentRepository) Delete(ctx context.Context, paymentID string) error {
	return r.store.write(ctx, "payments.delete", func(s *state) error {
		if domain.DeletePolicyFor(domain.EntityPayment) != domain.DeleteHard {
			return conflict("payments.delete", paymentID)
		}
		return s.payments.remove(paymentID)
	})
}

func (r paymentRepository) FindByID(ctx context.Context, paymentID string) (domain.Payment, error) {
	var payment domain.Payment
	err := r.store.read(ctx, "payments.get", func(s *state) error {
		var err error
		payment, err = s.payments.get("get", paymentID)
		return err
	})
	return payment, err
}

func (r paymentRepository) List(ctx context.Context, orderID string, page domain.PageRequest) (domain.Page[domain.Payment], error) {
	payments, err := r.ListByOrder(ctx, orderID)
	if err != nil {
		return domain.Page[domain.Payment]{}, err
	}
	window, total := domain.Window(payments, page)
	return domain.NewPage(window, total, page), nil
}

func (r paymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := r.store.read(ctx, "payments.list", func(s *state) error {
		payments = s.payments.filter(func(p domain.Payment) bool {
			return p.OrderID == orderID
		})
		return nil
	})
	return payments, err
}

type deliveryRepository struct{ store *store }

func (r deliveryRepository) Insert(ctx context.Context, delivery domain.Delivery) error {
	return r.store.write(ctx, "deliveries.insert", func(s *state) error {
		return s.deliveries.insert(delivery.ID, delivery)
	})
}

func (r deliveryRepository) Update(ctx context.Context, delivery domain.Delivery) error {
	return r.store.write(ctx, "deliveries.update", func(s *state) error {
		return s.deliveries.put(delivery.ID, delivery)
	})
}

func (r deliveryRepository) Delete(ctx context.Context, deliveryID string) error {
	return r.store.write(ctx, "deliveries.delete", func(s *state) error {
		if domain.DeletePolicyFor(domain.EntityDelivery) != domain.DeleteHard {
			return conflict("deliveries.delete", deliveryID)
		}
		return s.deliveries.remove(deliveryID)
	})
}

func (r deliveryRepository) FindByID(ctx context.Context, deliveryID string) (domain.Delivery, error) {
	var delivery domain.Delivery
	err := r.store.read(ctx, "deliveries.get", func(s *state) error {
		var err error
		delivery, err = s.deliveries.get("get", deliveryID)
		return err
	})
	return delivery, err
}

func (r deliveryRepository) List(ctx context.Context, orderID string, filter repositories.DeliveryFilter, page domain.PageRequest) (domain.Page[domain.Delivery], error) {
	var deliveries []domain.Delivery
	err := r.store.read(ctx, "deliveries.list", func(s *state) error {
		deliveries = s.deliveries.filter(func(d domain.Delivery) bool {
			if d.OrderID != orderID {
				return false
			}
			if filter.Status != nil && d.Status != *filter.Status {
				return false
			}
			return filter.Stage == nil || d.Stage == *filter.Stage
		})
		return nil
	})
	if err != nil {
		return domain.Page[domain.Delivery]{}, err
	}
	domain.SortDeliveries(deliveries, filter.Sort)
	window, total := domain.Window(deliveries, page)
	return domain.NewPage(window, total, page), nil
}
