package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/firestore"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

// Registry wires every Firestore repository around a shared provider.
type Registry struct {
	provider *pfirestore.Provider
	uow      *pfirestore.UnitOfWork
	health   repositories.HealthRepository

	carts           *CartRepository
	cartItems       *CartItemRepository
	cartItemOptions *CartItemOptionRepository
	orders          *OrderRepository
	orderItems      *OrderItemRepository
	payments        *PaymentRepository
	deliveries      *DeliveryRepository
	catalog         *CatalogRepository
	channels        *ChannelRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the repositories. Extra checks are added to the readiness probe next to Firestore.
func NewRegistry(provider *pfirestore.Provider, checks ...repositories.DependencyCheck) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}

	reg := &Registry{provider: provider, uow: pfirestore.NewUnitOfWork(provider)}
	var err error
	if reg.carts, err = NewCartRepository(provider); err != nil {
		return nil, err
	}
	if reg.cartItems, err = NewCartItemRepository(provider); err != nil {
		return nil, err
	}
	if reg.cartItemOptions, err = NewCartItemOptionRepository(provider); err != nil {
		return nil, err
	}
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, err
	}
	if reg.orderItems, err = NewOrderItemRepository(provider); err != nil {
		return nil, err
	}
	if reg.payments, err = NewPaymentRepository(provider); err != nil {
		return nil, err
	}
	if reg.deliveries, err = NewDeliveryRepository(provider); err != nil {
		return nil, err
	}
	if reg.catalog, err = NewCatalogRepository(provider); err != nil {
		return nil, err
	}
	if reg.channels, err = NewChannelRepository(provider); err != nil {
		return nil, err
	}

	probes := append([]repositories.DependencyCheck{{
		Name: "firestore",
		Check: func(ctx context.Context) error {
			return provider.Ping(ctx, orderCollection)
		},
	}}, checks...)
	if reg.health, err = repositories.NewDependencyHealthRepository(probes); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.uow.RunInTx(ctx, fn)
}

func (r *Registry) Carts() repositories.CartRepository { return r.carts }

func (r *Registry) CartItems() repositories.CartItemRepository { return r.cartItems }

func (r *Registry) CartItemOptions() repositories.CartItemOptionRepository {
	return r.cartItemOptions
}

func (r *Registry) Orders() repositories.OrderRepository { return r.orders }

func (r *Registry) OrderItems() repositories.OrderItemRepository { return r.orderItems }

func (r *Registry) Payments() repositories.PaymentRepository { return r.payments }

func (r *Registry) Deliveries() repositories.DeliveryRepository { return r.deliveries }

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

func (r *Registry) Channels() repositories.ChannelRepository { return r.channels }

func (r *Registry) Health() repositories.HealthRepository { return r.health }
