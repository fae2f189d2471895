//go:build integration

package firestore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	pconfig "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/config"
	pfirestore "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/firestore"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

func newEmulatorRegistry(t *testing.T) *Registry {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "workflow-test", EmulatorHost: host})
	reg, err := NewRegistry(provider)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close(context.Background()) })
	return reg
}

func TestOrderCodeReservationConflicts(t *testing.T) {
	reg := newEmulatorRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	code := "IT-" + uuid.NewString()[:8]
	now := time.Now().UTC()
	first := domain.Order{ID: uuid.NewString(), Code: code, MemberID: "m-1", Status: domain.OrderStatusPending, TotalPrice: decimal.RequireFromString("100.50"), CreatedAt: now, UpdatedAt: now}
	if err := reg.RunInTx(ctx, func(ctx context.Context) error { return reg.Orders().Insert(ctx, first) }); err != nil {
		t.Fatalf("insert: %v", err)
	}

	second := first
	second.ID = uuid.NewString()
	err := reg.RunInTx(ctx, func(ctx context.Context) error { return reg.Orders().Insert(ctx, second) })
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict, got %v", err)
	}

	got, err := reg.Orders().FindByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.TotalPrice.Equal(first.TotalPrice) {
		t.Fatalf("expected total %s, got %s", first.TotalPrice, got.TotalPrice)
	}
}

func TestCartItemSoftDeleteAgainstEmulator(t *testing.T) {
	reg := newEmulatorRegistry(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	cartID := uuid.NewString()
	item := domain.CartItem{ID: uuid.NewString(), CartID: cartID, Quantity: 1, UnitPrice: decimal.NewFromInt(10), Status: domain.CartItemStatusPending, CreatedAt: time.Now().UTC()}
	if err := reg.CartItems().Insert(ctx, item); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := reg.CartItems().SoftDelete(ctx, item.ID, time.Now()); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	_, err := reg.CartItems().FindByID(ctx, item.ID)
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found after soft delete, got %v", err)
	}

	page, err := reg.CartItems().List(ctx, cartID, repositories.CartItemFilter{}, domain.PageRequest{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Pagination.Records != 0 || len(page.Data) != 0 {
		t.Fatalf("expected soft-deleted item hidden, got %+v", page.Pagination)
	}
}
