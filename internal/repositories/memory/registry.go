package memory

import (
	"context"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

// Option customises the in-memory registry.
type Option func(*Registry)

// WithDependencyChecks adds readiness probes evaluated next to the store probe.
func WithDependencyChecks(checks ...repositories.DependencyCheck) Option {
	return func(r *Registry) {
		r.checks = append(r.checks, checks...)
	}
}

// Registry is a process-local repositories.Registry used by tests and local runs.
type Registry struct {
	store  *store
	checks []repositories.DependencyCheck
	health repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		store: newStore(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	checks := append([]repositories.DependencyCheck{{Name: "memory", Check: r.ping}}, r.checks...)
	health, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		panic(err)
	}
	r.health = health
	return r
}

// RunInTx serialises fn against other transactions and restores the previous state when fn fails.
// Reads made outside the transaction observe the state as of its start until it returns.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if fn == nil {
		return nil
	}
	if inTx(ctx) {
		return fn(ctx)
	}

	release, err := r.store.lockTx(ctx)
	if err != nil {
		return err
	}
	defer release()

	r.store.mu.Lock()
	snapshot := r.store.data.clone()
	r.store.committed = snapshot
	r.store.mu.Unlock()

	err = fn(context.WithValue(ctx, txKey{}, true))

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err != nil && !r.store.closed {
		r.store.data = snapshot
	}
	r.store.committed = nil
	return err
}

// Close marks the store unavailable. Subsequent calls fail with an unavailable error.
func (r *Registry) Close(context.Context) error {
	r.store.mu.Lock()
	r.store.closed = true
	r.store.mu.Unlock()
	return nil
}

func (r *Registry) ping(ctx context.Context) error {
	return r.store.read(ctx, "memory.ping", func(*state) error { return nil })
}

func (r *Registry) Carts() repositories.CartRepository { return cartRepository{store: r.store} }

func (r *Registry) CartItems() repositories.CartItemRepository {
	return cartItemRepository{store: r.store}
}

func (r *Registry) CartItemOptions() repositories.CartItemOptionRepository {
	return cartItemOptionRepository{store: r.store}
}

func (r *Registry) Orders() repositories.OrderRepository { return orderRepository{store: r.store} }

func (r *Registry) OrderItems() repositories.OrderItemRepository {
	return orderItemRepository{store: r.store}
}

func (r *Registry) Payments() repositories.PaymentRepository {
	return paymentRepository{store: r.store}
}

func (r *Registry) Deliveries() repositories.DeliveryRepository {
	return deliveryRepository{store: r.store}
}

func (r *Registry) Catalog() repositories.CatalogRepository {
	return catalogRepository{store: r.store}
}

func (r *Registry) Channels() repositories.ChannelRepository {
	return channelRepository{store: r.store}
}

func (r *Registry) Health() repositories.HealthRepository { return r.health }
