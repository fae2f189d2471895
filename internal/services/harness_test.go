package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories/memory"
)

var testEpoch = time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)

var (
	adminActor   = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	memberA      = domain.Actor{ID: "member-a", Role: domain.RoleMember}
	memberB      = domain.Actor{ID: "member-b", Role: domain.RoleMember}
	sellerA      = domain.Actor{ID: "seller-a", Role: domain.RoleSeller}
	sellerB      = domain.Actor{ID: "seller-b", Role: domain.RoleSeller}
	guestA       = domain.Actor{ID: "guest-a", Role: domain.RoleGuest}
	nobody       = domain.Actor{}
	decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []WorkflowEvent
	err    error
}

func (p *recordingPublisher) PublishWorkflowEvent(_ context.Context, event WorkflowEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.Type)
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

type logEntry struct {
	event  string
	fields map[string]any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) log(_ context.Context, event string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{event: event, fields: fields})
}

func (l *recordingLogger) count(event string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, entry := range l.entries {
		if entry.event == event {
			n++
		}
	}
	return n
}

type harness struct {
	reg        *memory.Registry
	clock      *testClock
	events     *recordingPublisher
	logs       *recordingLogger
	catalog    CatalogService
	carts      CartService
	orders     OrderService
	payments   PaymentService
	deliveries DeliveryService
	codes      int
}

type harnessOption func(*PaymentServiceDeps)

func withVerifier(v PaymentTransactionVerifier) harnessOption {
	return func(deps *PaymentServiceDeps) { deps.Verifier = v }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		reg:    memory.NewRegistry(),
		clock:  &testClock{now: testEpoch},
		events: &recordingPublisher{},
		logs:   &recordingLogger{},
	}
	seedCatalog(h.reg)

	var err error
	h.catalog, err = NewCatalogService(CatalogServiceDeps{Catalog: h.reg.Catalog()})
	require.NoError(t, err)

	h.orders, err = NewOrderService(OrderServiceDeps{
		Orders:     h.reg.Orders(),
		Items:      h.reg.OrderItems(),
		Channels:   h.reg.Channels(),
		Catalog:    h.catalog,
		UnitOfWork: h.reg,
		Clock:      h.clock.Now,
		Events:     h.events,
		Logger:     h.logs.log,
	})
	require.NoError(t, err)

	h.carts, err = NewCartService(CartServiceDeps{
		Carts:      h.reg.Carts(),
		Items:      h.reg.CartItems(),
		Options:    h.reg.CartItemOptions(),
		Catalog:    h.catalog,
		Orders:     h.orders,
		UnitOfWork: h.reg,
		Clock:      h.clock.Now,
		Events:     h.events,
		Logger:     h.logs.log,
	})
	require.NoError(t, err)

	paymentDeps := PaymentServiceDeps{
		Orders:     h.reg.Orders(),
		Payments:   h.reg.Payments(),
		UnitOfWork: h.reg,
		Clock:      h.clock.Now,
		Events:     h.events,
		Logger:     h.logs.log,
	}
	for _, opt := range opts {
		opt(&paymentDeps)
	}
	h.payments, err = NewPaymentService(paymentDeps)
	require.NoError(t, err)

	h.deliveries, err = NewDeliveryService(DeliveryServiceDeps{
		Orders:     h.reg.Orders(),
		Deliveries: h.reg.Deliveries(),
		UnitOfWork: h.reg,
		Clock:      h.clock.Now,
		Events:     h.events,
		Logger:     h.logs.log,
	})
	require.NoError(t, err)
	return h
}

func seedCatalog(reg *memory.Registry) {
	reg.SeedChannel(domain.Channel{ID: "ch-main", Code: "MAIN", Name: "Main store", Active: true})
	reg.SeedChannel(domain.Channel{ID: "ch-other", Code: "OTHER", Name: "Outlet", Active: true})
	reg.SeedChannel(domain.Channel{ID: "ch-closed", Code: "CLOSED", Name: "Closed", Active: false})
	reg.SeedSection(domain.Section{ID: "sec-a", ChannelID: "ch-main", Name: "Featured", Active: true})
	reg.SeedSection(domain.Section{ID: "sec-other", ChannelID: "ch-other", Name: "Clearance", Active: true})

	reg.SeedSale(domain.Sale{ID: "sale-a", SellerID: sellerA.ID, ChannelID: "ch-main", Title: "Desk lamp", SnapshotID: "snap-a", Active: true})
	reg.SeedSnapshot(domain.SaleSnapshot{ID: "snap-a", SaleID: "sale-a", Title: "Desk lamp", UnitPrice: decimal.NewFromInt(12000), CreatedAt: testEpoch})
	reg.SeedSale(domain.Sale{ID: "sale-b", SellerID: sellerB.ID, ChannelID: "ch-main", Title: "Notebook", SnapshotID: "snap-b", Active: true})
	reg.SeedSnapshot(domain.SaleSnapshot{ID: "snap-b", SaleID: "sale-b", Title: "Notebook", UnitPrice: decimal.NewFromInt(5000), CreatedAt: testEpoch})
	reg.SeedSale(domain.Sale{ID: "sale-off", SellerID: sellerA.ID, ChannelID: "ch-main", Title: "Retired", SnapshotID: "snap-off", Active: false})
	reg.SeedSnapshot(domain.SaleSnapshot{ID: "snap-off", SaleID: "sale-off", Title: "Retired", UnitPrice: decimal.NewFromInt(100), CreatedAt: testEpoch})

	reg.SeedOptionGroup(domain.OptionGroup{ID: "grp-color", Name: "Colour", Active: true})
	reg.SeedOptionGroup(domain.OptionGroup{ID: "grp-size", Name: "Size", Active: true})
	reg.SeedOptionGroup(domain.OptionGroup{ID: "grp-old", Name: "Legacy", Active: false})
	reg.SeedOption(domain.Option{ID: "opt-red", GroupID: "grp-color", Name: "Red", Active: true})
	reg.SeedOption(domain.Option{ID: "opt-blue", GroupID: "grp-color", Name: "Blue", Active: true})
	reg.SeedOption(domain.Option{ID: "opt-l", GroupID: "grp-size", Name: "Large", Active: true})
	reg.SeedOption(domain.Option{ID: "opt-legacy", GroupID: "grp-old", Name: "Legacy", Active: true})
}

func (h *harness) nextCode() string {
	h.codes++
	return fmt.Sprintf("ORD-%04d-%d", h.codes, gofakeit.Number(1000, 9999))
}

// placeOrder creates an order for member A on the main channel with the given sale lines at snapshot price.
func (h *harness) placeOrder(t *testing.T, total int64, lines ...orderLineSpec) domain.Order {
	t.Helper()
	cmd := CreateOrderCommand{
		MemberID:   memberA.ID,
		ChannelID:  "ch-main",
		Code:       h.nextCode(),
		TotalPrice: decimal.NewFromInt(total),
	}
	for _, line := range lines {
		ref, err := h.catalog.ResolveSaleSnapshot(context.Background(), line.sale)
		require.NoError(t, err)
		cmd.Lines = append(cmd.Lines, OrderLine{Snapshot: ref, Quantity: line.quantity, Price: ref.UnitPrice})
	}
	order, err := h.orders.CreateOrder(context.Background(), memberA, cmd)
	require.NoError(t, err)
	return order
}

type orderLineSpec struct {
	sale     string
	quantity int
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}
