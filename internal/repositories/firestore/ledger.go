package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	pfirestore "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/firestore"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

// PaymentRepository persists payment records. Deletes remove the document.
type PaymentRepository struct {
	base *pfirestore.Collection[paymentDocument]
}

// NewPaymentRepository constructs a Firestore-backed payment repository.
func NewPaymentRepository(provider *pfirestore.Provider) (*PaymentRepository, error) {
	if provider == nil {
		return nil, errors.New("payment repository requires firestore provider")
	}
	return &PaymentRepository{base: pfirestore.NewCollection[paymentDocument](provider, paymentCollection)}, nil
}

func (r *PaymentRepository) Insert(ctx context.Context, payment domain.Payment) error {
	return r.base.Create(ctx, payment.ID, newPaymentDocument(payment))
}

func (r *PaymentRepository) Update(ctx context.Context, payment domain.Payment) error {
	return r.base.Set(ctx, payment.ID, newPaymentDocument(payment))
}

func (r *PaymentRepository) Delete(ctx context.Context, paymentID string) error {
	if domain.DeletePolicyFor(domain.EntityPayment) != domain.DeleteHard {
		return errors.New("payment repository: payments are not hard-deletable")
	}
	return r.base.Delete(ctx, paymentID)
}

func (r *PaymentRepository) FindByID(ctx context.Context, paymentID string) (domain.Payment, error) {
	doc, err := r.base.Get(ctx, paymentID)
	if err != nil {
		return domain.Payment{}, err
	}
	return doc.Data.toDomain(doc.ID)
}

func (r *PaymentRepository) List(ctx context.Context, orderID string, page domain.PageRequest) (domain.Page[domain.Payment], error) {
	return listPage(ctx, r.base, byOrder(orderID), page, fallible(paymentDocument.toDomain))
}

func (r *PaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	return listAll(ctx, r.base, byOrder(orderID), fallible(paymentDocument.toDomain))
}

// DeliveryRepository persists delivery records. Deletes remove the document.
type DeliveryRepository struct {
	base *pfirestore.Collection[deliveryDocument]
}

// NewDeliveryRepository constructs a Firestore-backed delivery repository.
func NewDeliveryRepository(provider *pfirestore.Provider) (*DeliveryRepository, error) {
	if provider == nil {
		return nil, errors.New("delivery repository requires firestore provider")
	}
	return &DeliveryRepository{base: pfirestore.NewCollection[deliveryDocument](provider, deliveryCollection)}, nil
}

func (r *DeliveryRepository) Insert(ctx context.Context, delivery domain.Delivery) error {
	return r.base.Create(ctx, delivery.ID, newDeliveryDocument(delivery))
}

func (r *DeliveryRepository) Update(ctx context.Context, delivery domain.Delivery) error {
	return r.base.Set(ctx, delivery.ID, newDeliveryDocument(delivery))
}

func (r *DeliveryRepository) Delete(ctx context.Context, deliveryID string) error {
	if domain.DeletePolicyFor(domain.EntityDelivery) != domain.DeleteHard {
		return errors.New("delivery repository: deliveries are not hard-deletable")
	}
	return r.base.Delete(ctx, deliveryID)
}

func (r *DeliveryRepository) FindByID(ctx context.Context, deliveryID string) (domain.Delivery, error) {
	doc, err := r.base.Get(ctx, deliveryID)
	if err != nil {
		return domain.Delivery{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List filters in Firestore and orders in memory so unset timestamps sort last in either direction.
func (r *DeliveryRepository) List(ctx context.Context, orderID string, filter repositories.DeliveryFilter, page domain.PageRequest) (domain.Page[domain.Delivery], error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("orderId", "==", orderID)
		if filter.Status != nil {
			q = q.Where("status", "==", string(*filter.Status))
		}
		if filter.Stage != nil {
			q = q.Where("stage", "==", string(*filter.Stage))
		}
		return q
	})
	if err != nil {
		return domain.Page[domain.Delivery]{}, err
	}
	deliveries, err := convertAll(docs, infallible(deliveryDocument.toDomain))
	if err != nil {
		return domain.Page[domain.Delivery]{}, err
	}
	domain.SortDeliveries(deliveries, filter.Sort)
	window, total := domain.Window(deliveries, page)
	return domain.NewPage(window, total, page), nil
}
