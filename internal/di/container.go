package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/config"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/observability"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/services"
)

// Services bundles the workflow services the HTTP layer relies upon.
type Services struct {
	Catalog    services.CatalogService
	Carts      services.CartService
	Orders     services.OrderService
	Payments   services.PaymentService
	Deliveries services.DeliveryService
	System     services.SystemService
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services

	closers []func(context.Context) error
}

// Option customises the collaborators handed to the services.
type Option func(*options)

type options struct {
	events   services.EventPublisher
	verifier services.PaymentTransactionVerifier
	logger   *zap.Logger
	clock    func() time.Time
	idGen    func() string
	build    services.BuildInfo
	closers  []func(context.Context) error
}

// WithEventPublisher routes committed workflow events to publisher.
func WithEventPublisher(publisher services.EventPublisher) Option {
	return func(o *options) { o.events = publisher }
}

// WithTransactionVerifier enables PSP checks when payments are confirmed.
func WithTransactionVerifier(verifier services.PaymentTransactionVerifier) Option {
	return func(o *options) { o.verifier = verifier }
}

// WithLogger sets the base logger used for service events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock overrides the time source for every service.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// WithIDGenerator overrides entity id generation.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) { o.idGen = gen }
}

// WithBuildInfo sets the metadata reported by readiness checks.
func WithBuildInfo(info services.BuildInfo) Option {
	return func(o *options) { o.build = info }
}

// WithCloser registers a hook run by Close after the repositories are closed.
func WithCloser(fn func(context.Context) error) Option {
	return func(o *options) {
		if fn != nil {
			o.closers = append(o.closers, fn)
		}
	}
}

// NewContainer constructs the runtime dependencies over reg.
func NewContainer(cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.build.Environment == "" {
		o.build.Environment = cfg.Environment
	}

	svc, err := buildServices(reg, o)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
		closers:      o.closers,
	}, nil
}

// Close releases repository clients and any registered hooks.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Repositories != nil {
		errs = append(errs, c.Repositories.Close(ctx))
	}
	for _, closer := range c.closers {
		errs = append(errs, closer(ctx))
	}
	return errors.Join(errs...)
}

func buildServices(reg repositories.Registry, o options) (Services, error) {
	var svc Services
	var err error

	svc.Catalog, err = services.NewCatalogService(services.CatalogServiceDeps{Catalog: reg.Catalog()})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}

	svc.Orders, err = services.NewOrderService(services.OrderServiceDeps{
		Orders:      reg.Orders(),
		Items:       reg.OrderItems(),
		Channels:    reg.Channels(),
		Catalog:     svc.Catalog,
		UnitOfWork:  reg,
		Clock:       o.clock,
		IDGenerator: o.idGen,
		Events:      o.events,
		Logger:      observability.ServiceLogger(o.logger, "orders"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}

	svc.Carts, err = services.NewCartService(services.CartServiceDeps{
		Carts:       reg.Carts(),
		Items:       reg.CartItems(),
		Options:     reg.CartItemOptions(),
		Catalog:     svc.Catalog,
		Orders:      svc.Orders,
		UnitOfWork:  reg,
		Clock:       o.clock,
		IDGenerator: o.idGen,
		Events:      o.events,
		Logger:      observability.ServiceLogger(o.logger, "carts"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}

	svc.Payments, err = services.NewPaymentService(services.PaymentServiceDeps{
		Orders:      reg.Orders(),
		Payments:    reg.Payments(),
		Verifier:    o.verifier,
		UnitOfWork:  reg,
		Clock:       o.clock,
		IDGenerator: o.idGen,
		Events:      o.events,
		Logger:      observability.ServiceLogger(o.logger, "payments"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}

	svc.Deliveries, err = services.NewDeliveryService(services.DeliveryServiceDeps{
		Orders:      reg.Orders(),
		Deliveries:  reg.Deliveries(),
		UnitOfWork:  reg,
		Clock:       o.clock,
		IDGenerator: o.idGen,
		Events:      o.events,
		Logger:      observability.ServiceLogger(o.logger, "deliveries"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build delivery service: %w", err)
	}

	svc.System, err = services.NewSystemService(services.SystemServiceDeps{
		Health: reg.Health(),
		Clock:  o.clock,
		Build:  o.build,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}

	return svc, nil
}
