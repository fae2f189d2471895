package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

var baseTime = time.Date(2025, time.May, 4, 9, 0, 0, 0, time.UTC)

func repoErr(t *testing.T, err error) repositories.RepositoryError {
	t.Helper()
	var target repositories.RepositoryError
	require.True(t, errors.As(err, &target), "expected repository error, got %v", err)
	return target
}

func TestCartItemSoftDeleteHidesRow(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	items := reg.CartItems()

	item := domain.CartItem{ID: "item-1", CartID: "cart-1", Quantity: 2, UnitPrice: decimal.NewFromInt(9900), Status: domain.CartItemStatusPending, CreatedAt: baseTime}
	require.NoError(t, items.Insert(ctx, item))
	require.NoError(t, items.Insert(ctx, domain.CartItem{ID: "item-2", CartID: "cart-1", Status: domain.CartItemStatusPending}))

	require.NoError(t, items.SoftDelete(ctx, "item-1", baseTime.Add(time.Minute)))

	_, err := items.FindByID(ctx, "item-1")
	assert.True(t, repoErr(t, err).IsNotFound())

	err = items.SoftDelete(ctx, "item-1", baseTime.Add(2*time.Minute))
	assert.True(t, repoErr(t, err).IsNotFound())

	page, err := items.List(ctx, "cart-1", repositories.CartItemFilter{}, domain.PageRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "item-2", page.Data[0].ID)
	assert.Equal(t, 1, page.Pagination.Records)

	raw, err := reg.store.data.cartItems.get("get", "item-1")
	require.NoError(t, err)
	require.NotNil(t, raw.DeletedAt)
	assert.Equal(t, domain.CartItemStatusRemoved, raw.Status)
	assert.Equal(t, int64(1), raw.Version)
}

func TestOrderCodeUniqueness(t *testing.T) {
	ctx := context.Background()
	orders := NewRegistry().Orders()

	require.NoError(t, orders.Insert(ctx, domain.Order{ID: "o-1", Code: "ORD-1", MemberID: "m-1"}))
	err := orders.Insert(ctx, domain.Order{ID: "o-2", Code: "ORD-1", MemberID: "m-2"})
	assert.True(t, repoErr(t, err).IsConflict())

	require.NoError(t, orders.Insert(ctx, domain.Order{ID: "o-3", Code: "ORD-3", MemberID: "m-1", SellerIDs: []string{"s-1"}}))

	page, err := orders.List(ctx, repositories.OrderListFilter{SellerID: "s-1"}, domain.PageRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "o-3", page.Data[0].ID)
}

func TestOrderReadsDoNotAliasStoredSlices(t *testing.T) {
	ctx := context.Background()
	orders := NewRegistry().Orders()
	require.NoError(t, orders.Insert(ctx, domain.Order{ID: "o-1", Code: "C", SellerIDs: []string{"s-1"}}))

	got, err := orders.FindByID(ctx, "o-1")
	require.NoError(t, err)
	got.SellerIDs[0] = "mutated"

	again, err := orders.FindByID(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s-1"}, again.SellerIDs)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	boom := errors.New("boom")

	err := reg.RunInTx(ctx, func(ctx context.Context) error {
		if err := reg.Payments().Insert(ctx, domain.Payment{ID: "p-1", OrderID: "o-1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = reg.Payments().FindByID(ctx, "p-1")
	assert.True(t, repoErr(t, err).IsNotFound())

	require.NoError(t, reg.RunInTx(ctx, func(ctx context.Context) error {
		return reg.RunInTx(ctx, func(ctx context.Context) error {
			return reg.Payments().Insert(ctx, domain.Payment{ID: "p-2", OrderID: "o-1"})
		})
	}))
	_, err = reg.Payments().FindByID(ctx, "p-2")
	assert.NoError(t, err)
}

func TestRunInTxHidesUncommittedWrites(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	payments := reg.Payments()
	require.NoError(t, payments.Insert(ctx, domain.Payment{ID: "p-0", OrderID: "o-1"}))

	boom := errors.New("boom")
	written := make(chan error, 1)
	err := reg.RunInTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, payments.Insert(txCtx, domain.Payment{ID: "p-1", OrderID: "o-1"}))
		_, err := payments.FindByID(txCtx, "p-1")
		require.NoError(t, err)

		_, err = payments.FindByID(ctx, "p-1")
		assert.True(t, repoErr(t, err).IsNotFound())
		outside, err := payments.ListByOrder(ctx, "o-1")
		require.NoError(t, err)
		assert.Len(t, outside, 1)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, payments.Insert(cancelled, domain.Payment{ID: "p-3", OrderID: "o-1"}), context.Canceled)

		go func() { written <- payments.Insert(ctx, domain.Payment{ID: "p-2", OrderID: "o-1"}) }()
		select {
		case err := <-written:
			t.Errorf("write outside the transaction finished before commit: %v", err)
			written <- err
		case <-time.After(20 * time.Millisecond):
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, <-written)

	_, err = payments.FindByID(ctx, "p-1")
	assert.True(t, repoErr(t, err).IsNotFound())
	_, err = payments.FindByID(ctx, "p-2")
	assert.NoError(t, err)
	_, err = payments.FindByID(ctx, "p-3")
	assert.True(t, repoErr(t, err).IsNotFound())
}

func TestPaymentHardDelete(t *testing.T) {
	ctx := context.Background()
	payments := NewRegistry().Payments()
	require.NoError(t, payments.Insert(ctx, domain.Payment{ID: "p-1", OrderID: "o-1"}))

	require.NoError(t, payments.Delete(ctx, "p-1"))
	err := payments.Delete(ctx, "p-1")
	assert.True(t, repoErr(t, err).IsNotFound())
}

func TestDeliveryListFiltersSortsAndPages(t *testing.T) {
	ctx := context.Background()
	deliveries := NewRegistry().Deliveries()

	shipping := domain.DeliveryStatusShipping
	expected := baseTime.Add(72 * time.Hour)
	fixtures := []domain.Delivery{
		{ID: "d-1", OrderID: "o-1", Status: domain.DeliveryStatusShipping, Stage: domain.DeliveryStageShipping, CreatedAt: baseTime},
		{ID: "d-2", OrderID: "o-1", Status: domain.DeliveryStatusPreparing, Stage: domain.DeliveryStagePreparation, CreatedAt: baseTime.Add(time.Hour)},
		{ID: "d-3", OrderID: "o-1", Status: domain.DeliveryStatusShipping, Stage: domain.DeliveryStageShipping, CreatedAt: baseTime.Add(2 * time.Hour), ExpectedDeliveryDate: &expected},
		{ID: "d-4", OrderID: "o-1", Status: domain.DeliveryStatusShipping, Stage: domain.DeliveryStageCompleted, CreatedAt: baseTime.Add(3 * time.Hour)},
		{ID: "d-5", OrderID: "o-2", Status: domain.DeliveryStatusShipping, CreatedAt: baseTime},
	}
	for _, d := range fixtures {
		require.NoError(t, deliveries.Insert(ctx, d))
	}

	page, err := deliveries.List(ctx, "o-1", repositories.DeliveryFilter{Status: &shipping}, domain.PageRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "d-4", page.Data[0].ID)
	assert.Equal(t, "d-3", page.Data[1].ID)
	assert.Equal(t, domain.PageInfo{Current: 1, Limit: 2, Records: 3, Pages: 2}, page.Pagination)
	for _, d := range page.Data {
		assert.Equal(t, domain.DeliveryStatusShipping, d.Status)
	}

	byExpected, err := deliveries.List(ctx, "o-1", repositories.DeliveryFilter{
		Sort: domain.DeliverySort{Field: domain.DeliverySortExpectedDeliveryDate, Direction: domain.SortAsc},
	}, domain.PageRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, byExpected.Data, 4)
	assert.Equal(t, "d-3", byExpected.Data[0].ID)
}

func TestCatalogSeedAndLookup(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	reg.SeedSale(domain.Sale{ID: "sale-1", SellerID: "seller-1", SnapshotID: "snap-1", Active: true})
	reg.SeedSale(domain.Sale{ID: "sale-1", SellerID: "seller-1", SnapshotID: "snap-2", Active: true})

	sale, err := reg.Catalog().FindSale(ctx, "sale-1")
	require.NoError(t, err)
	assert.Equal(t, "snap-2", sale.SnapshotID)

	_, err = reg.Channels().FindChannel(ctx, "missing")
	assert.True(t, repoErr(t, err).IsNotFound())
}

func TestCloseMakesStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	report, err := reg.Health().Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthOK, report.Status)

	require.NoError(t, reg.Close(ctx))

	_, err = reg.Carts().FindByID(ctx, "cart-1")
	assert.True(t, repoErr(t, err).IsUnavailable())

	report, err = reg.Health().Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.HealthDegraded, report.Status)
}
