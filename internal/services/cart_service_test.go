package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

func TestNewCartServiceRequiresDependencies(t *testing.T) {
	h := newHarness(t)
	_, err := NewCartService(CartServiceDeps{})
	require.Error(t, err)
	_, err = NewCartService(CartServiceDeps{Carts: h.reg.Carts(), Items: h.reg.CartItems(), Options: h.reg.CartItemOptions()})
	require.Error(t, err)
}

func TestCartServiceCreateCartOwnership(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		actor   domain.Actor
		cmd     CreateCartCommand
		wantErr error
	}{
		{name: "guest for self", actor: guestA, cmd: CreateCartCommand{GuestID: guestA.ID}},
		{name: "member for self", actor: memberA, cmd: CreateCartCommand{MemberID: memberA.ID}},
		{name: "admin for member", actor: adminActor, cmd: CreateCartCommand{MemberID: memberB.ID}},
		{name: "both owners", actor: memberA, cmd: CreateCartCommand{GuestID: guestA.ID, MemberID: memberA.ID}, wantErr: ErrInvalidArgument},
		{name: "no owner", actor: memberA, cmd: CreateCartCommand{}, wantErr: ErrInvalidArgument},
		{name: "member for another member", actor: memberA, cmd: CreateCartCommand{MemberID: memberB.ID}, wantErr: ErrForbidden},
		{name: "guest for member", actor: guestA, cmd: CreateCartCommand{MemberID: memberA.ID}, wantErr: ErrForbidden},
		{name: "seller", actor: sellerA, cmd: CreateCartCommand{MemberID: sellerA.ID}, wantErr: ErrForbidden},
		{name: "anonymous", actor: nobody, cmd: CreateCartCommand{GuestID: guestA.ID}, wantErr: ErrUnauthenticated},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			cart, err := h.carts.CreateCart(ctx, tc.actor, tc.cmd)
			if tc.wantErr != nil {
				requireKind(t, err, tc.wantErr)
				assert.Empty(t, h.events.types())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.CartStatusActive, cart.Status)
			assert.Equal(t, int64(1), cart.Version)
			assert.Equal(t, testEpoch, cart.CreatedAt)
			assert.Equal(t, []string{eventCartCreated}, h.events.types())

			got, err := h.carts.GetCart(ctx, tc.actor, cart.ID)
			require.NoError(t, err)
			assert.Equal(t, cart, got)
		})
	}
}

func TestCartServiceGetCartVisibility(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	guestCart, err := h.carts.CreateCart(ctx, guestA, CreateCartCommand{GuestID: guestA.ID})
	require.NoError(t, err)

	_, err = h.carts.GetCart(ctx, domain.Actor{ID: "guest-b", Role: domain.RoleGuest}, guestCart.ID)
	requireKind(t, err, ErrForbidden)
	_, err = h.carts.GetCart(ctx, memberA, guestCart.ID)
	requireKind(t, err, ErrForbidden)
	_, err = h.carts.GetCart(ctx, sellerA, guestCart.ID)
	requireKind(t, err, ErrForbidden)
	_, err = h.carts.GetCart(ctx, nobody, guestCart.ID)
	requireKind(t, err, ErrUnauthenticated)
	_, err = h.carts.GetCart(ctx, adminActor, guestCart.ID)
	require.NoError(t, err)
	_, err = h.carts.GetCart(ctx, guestA, "missing")
	requireKind(t, err, ErrNotFound)
}

func TestCartServiceItemLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cart, err := h.carts.CreateCart(ctx, memberA, CreateCartCommand{MemberID: memberA.ID})
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	item, err := h.carts.AddItem(ctx, memberA, AddCartItemCommand{
		CartID:    cart.ID,
		Reference: "sale-a",
		Quantity:  2,
		UnitPrice: decimal.NewFromInt(12000),
	})
	require.NoError(t, err)
	assert.Equal(t, "snap-a", item.SnapshotID)
	assert.Equal(t, "sale-a", item.SaleID)
	assert.Equal(t, sellerA.ID, item.SellerID)
	assert.Equal(t, domain.CartItemStatusPending, item.Status)
	assert.Equal(t, int64(1), item.Version)

	touched, err := h.carts.GetCart(ctx, memberA, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), touched.Version)
	assert.Equal(t, testEpoch.Add(time.Minute), touched.UpdatedAt)

	bySnapshot, err := h.carts.AddItem(ctx, memberA, AddCartItemCommand{CartID: cart.ID, Reference: "snap-b", Quantity: 1, UnitPrice: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	assert.Equal(t, "sale-b", bySnapshot.SaleID)

	stale := int64(7)
	_, err = h.carts.UpdateItem(ctx, memberA, UpdateCartItemCommand{CartID: cart.ID, ItemID: item.ID, Quantity: valuePtr(3), ExpectedVersion: &stale})
	requireKind(t, err, ErrConflict)

	current := item.Version
	updated, err := h.carts.UpdateItem(ctx, memberA, UpdateCartItemCommand{CartID: cart.ID, ItemID: item.ID, Quantity: valuePtr(3), ExpectedVersion: &current})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Quantity)
	assert.True(t, updated.UnitPrice.Equal(decimal.NewFromInt(12000)))
	assert.Equal(t, int64(2), updated.Version)

	_, err = h.carts.UpdateItem(ctx, memberA, UpdateCartItemCommand{CartID: cart.ID, ItemID: item.ID, Quantity: valuePtr(0)})
	requireKind(t, err, ErrInvalidArgument)

	require.NoError(t, h.carts.RemoveItem(ctx, memberA, cart.ID, item.ID))
	err = h.carts.RemoveItem(ctx, memberA, cart.ID, item.ID)
	requireKind(t, err, ErrNotFound)

	page, err := h.carts.ListItems(ctx, memberA, cart.ID, CartItemFilter{}, domain.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, bySnapshot.ID, page.Data[0].ID)
	assert.Equal(t, domain.PageInfo{Current: 1, Limit: 100, Records: 1, Pages: 1}, page.Pagination)
}

func TestCartServiceAddItemValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cart, err := h.carts.CreateCart(ctx, guestA, CreateCartCommand{GuestID: guestA.ID})
	require.NoError(t, err)
	removed := domain.CartItemStatusRemoved

	tests := []struct {
		name    string
		cmd     AddCartItemCommand
		wantErr error
	}{
		{name: "zero quantity", cmd: AddCartItemCommand{Reference: "sale-a", Quantity: 0}, wantErr: ErrInvalidArgument},
		{name: "negative price", cmd: AddCartItemCommand{Reference: "sale-a", Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}, wantErr: ErrInvalidArgument},
		{name: "removed status", cmd: AddCartItemCommand{Reference: "sale-a", Quantity: 1, Status: &removed}, wantErr: ErrInvalidArgument},
		{name: "blank reference", cmd: AddCartItemCommand{Reference: " ", Quantity: 1}, wantErr: ErrInvalidArgument},
		{name: "inactive sale", cmd: AddCartItemCommand{Reference: "sale-off", Quantity: 1}, wantErr: ErrNotFound},
		{name: "unknown reference", cmd: AddCartItemCommand{Reference: "nope", Quantity: 1}, wantErr: ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.cmd.CartID = cart.ID
			_, err := h.carts.AddItem(ctx, guestA, tc.cmd)
			requireKind(t, err, tc.wantErr)
		})
	}

	unchanged, err := h.carts.GetCart(ctx, guestA, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unchanged.Version)
}

func TestCartServiceOptions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cart, err := h.carts.CreateCart(ctx, guestA, CreateCartCommand{GuestID: guestA.ID})
	require.NoError(t, err)
	item, err := h.carts.AddItem(ctx, guestA, AddCartItemCommand{CartID: cart.ID, Reference: "sale-a", Quantity: 1, UnitPrice: decimal.NewFromInt(12000)})
	require.NoError(t, err)

	_, err = h.carts.AttachOption(ctx, guestA, AttachOptionCommand{CartID: cart.ID, ItemID: item.ID, OptionGroupID: "grp-size", OptionID: "opt-red"})
	requireKind(t, err, ErrNotFound)
	_, err = h.carts.AttachOption(ctx, guestA, AttachOptionCommand{CartID: cart.ID, ItemID: item.ID, OptionGroupID: "grp-old", OptionID: "opt-legacy"})
	requireKind(t, err, ErrNotFound)

	color, err := h.carts.AttachOption(ctx, guestA, AttachOptionCommand{CartID: cart.ID, ItemID: item.ID, OptionGroupID: "grp-color", OptionID: "opt-red"})
	require.NoError(t, err)
	size, err := h.carts.AttachOption(ctx, guestA, AttachOptionCommand{ItemID: item.ID, OptionGroupID: "grp-size", OptionID: "opt-l"})
	require.NoError(t, err)

	blue := "opt-blue"
	updated, err := h.carts.UpdateOption(ctx, guestA, UpdateOptionCommand{CartID: cart.ID, ItemID: item.ID, OptionRecordID: color.ID, OptionID: &blue})
	require.NoError(t, err)
	assert.Equal(t, "grp-color", updated.OptionGroupID)
	assert.Equal(t, "opt-blue", updated.OptionID)
	assert.Equal(t, int64(2), updated.Version)

	page, err := h.carts.ListItemOptions(ctx, guestA, ListItemOptionsQuery{CartID: cart.ID, ItemID: item.ID, OptionGroupID: "grp-color"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, color.ID, page.Data[0].ID)

	_, err = h.carts.ListItemOptions(ctx, memberA, ListItemOptionsQuery{ItemID: item.ID})
	requireKind(t, err, ErrForbidden)

	require.NoError(t, h.carts.RemoveOption(ctx, guestA, RemoveOptionCommand{CartID: cart.ID, ItemID: item.ID, OptionRecordID: size.ID}))
	err = h.carts.RemoveOption(ctx, guestA, RemoveOptionCommand{CartID: cart.ID, ItemID: item.ID, OptionRecordID: size.ID})
	requireKind(t, err, ErrNotFound)

	all, err := h.carts.ListItemOptions(ctx, guestA, ListItemOptionsQuery{CartID: cart.ID, ItemID: item.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, all.Pagination.Records)
}

func TestCartServiceStateGating(t *testing.T) {
	ctx := context.Background()
	for _, actor := range []domain.Actor{memberA, adminActor} {
		t.Run(string(actor.Role), func(t *testing.T) {
			h := newHarness(t)
			cart, err := h.carts.CreateCart(ctx, memberA, CreateCartCommand{MemberID: memberA.ID})
			require.NoError(t, err)
			item, err := h.carts.AddItem(ctx, memberA, AddCartItemCommand{CartID: cart.ID, Reference: "sale-a", Quantity: 1})
			require.NoError(t, err)

			abandoned, err := h.carts.AbandonCart(ctx, actor, cart.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.CartStatusAbandoned, abandoned.Status)
			require.NotNil(t, abandoned.AbandonedAt)

			_, err = h.carts.AddItem(ctx, actor, AddCartItemCommand{CartID: cart.ID, Reference: "sale-a", Quantity: 1})
			requireKind(t, err, ErrInvalidState)
			_, err = h.carts.UpdateItem(ctx, actor, UpdateCartItemCommand{CartID: cart.ID, ItemID: item.ID, Quantity: valuePtr(2)})
			requireKind(t, err, ErrInvalidState)
			err = h.carts.RemoveItem(ctx, actor, cart.ID, item.ID)
			requireKind(t, err, ErrInvalidState)
			_, err = h.carts.AttachOption(ctx, actor, AttachOptionCommand{ItemID: item.ID, OptionGroupID: "grp-color", OptionID: "opt-red"})
			requireKind(t, err, ErrInvalidState)
			_, err = h.carts.AbandonCart(ctx, actor, cart.ID)
			requireKind(t, err, ErrInvalidState)
			_, err = h.carts.CheckoutCart(ctx, actor, CheckoutCartCommand{CartID: cart.ID, ChannelID: "ch-main", Code: "ORD-1"})
			requireKind(t, err, ErrInvalidState)

			page, err := h.carts.ListItems(ctx, actor, cart.ID, CartItemFilter{}, domain.PageRequest{})
			require.NoError(t, err)
			assert.Len(t, page.Data, 1)
		})
	}
}

func TestCartServiceCheckout(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cart, err := h.carts.CreateCart(ctx, memberA, CreateCartCommand{MemberID: memberA.ID})
	require.NoError(t, err)
	lamp, err := h.carts.AddItem(ctx, memberA, AddCartItemCommand{CartID: cart.ID, Reference: "sale-a", Quantity: 2, UnitPrice: decimal.NewFromInt(12000)})
	require.NoError(t, err)
	_, err = h.carts.AddItem(ctx, memberA, AddCartItemCommand{CartID: cart.ID, Reference: "sale-b", Quantity: 1, UnitPrice: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	dropped, err := h.carts.AddItem(ctx, memberA, AddCartItemCommand{CartID: cart.ID, Reference: "sale-b", Quantity: 4})
	require.NoError(t, err)
	require.NoError(t, h.carts.RemoveItem(ctx, memberA, cart.ID, dropped.ID))
	h.events.reset()

	section := "sec-a"
	order, err := h.carts.CheckoutCart(ctx, memberA, CheckoutCartCommand{
		CartID:     cart.ID,
		ChannelID:  "ch-main",
		SectionID:  &section,
		Code:       " ord-2025-0001 ",
		TotalPrice: decimal.NewFromInt(29000),
	})
	require.NoError(t, err)
	assert.Equal(t, "ORD-2025-0001", order.Code)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.OrderPaymentStatusPending, order.PaymentStatus)
	assert.ElementsMatch(t, []string{sellerA.ID, sellerB.ID}, order.SellerIDs)
	require.NotNil(t, order.CartID)
	assert.Equal(t, cart.ID, *order.CartID)
	require.NotNil(t, order.SectionID)
	assert.Equal(t, "sec-a", *order.SectionID)
	assert.Equal(t, []string{eventCartCheckedOut, eventOrderCreated}, h.events.types())
	assert.Zero(t, h.logs.count(orderEventTotalMismatch))

	items, err := h.orders.ListItems(ctx, memberA, order.ID, domain.PageRequest{})
	require.NoError(t, err)
	require.Len(t, items.Data, 2)

	closed, err := h.carts.GetCart(ctx, memberA, cart.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CartStatusOrdered, closed.Status)
	require.NotNil(t, closed.OrderedAt)

	ordered := domain.CartItemStatusOrdered
	lines, err := h.carts.ListItems(ctx, memberA, cart.ID, CartItemFilter{Status: &ordered}, domain.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, lines.Data, 2)
	assert.Contains(t, []string{lines.Data[0].ID, lines.Data[1].ID}, lamp.ID)

	_, err = h.carts.CheckoutCart(ctx, memberA, CheckoutCartCommand{CartID: cart.ID, ChannelID: "ch-main", Code: "ORD-2"})
	requireKind(t, err, ErrInvalidState)
}

func TestCartServiceCheckoutFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("guest cart", func(t *testing.T) {
		h := newHarness(t)
		cart, err := h.carts.CreateCart(ctx, guestA, CreateCartCommand{GuestID: guestA.ID})
		require.NoError(t, err)
		_, err = h.carts.AddItem(ctx, guestA, AddCartItemCommand{CartID: cart.ID, Reference: "sale-a", Quantity: 1})
		require.NoError(t, err)
		_, err = h.carts.CheckoutCart(ctx, guestA, CheckoutCartCommand{CartID: cart.ID, ChannelID: "ch-main", Code: "ORD-G"})
		requireKind(t, err, ErrInvalidState)
	})

	t.Run("empty cart", func(t *testing.T) {
		h := newHarness(t)
		cart, err := h.carts.CreateCart(ctx, memberA, CreateCartCommand{MemberID: memberA.ID})
		require.NoError(t, err)
		_, err = h.carts.CheckoutCart(ctx, memberA, CheckoutCartCommand{CartID: cart.ID, ChannelID: "ch-main", Code: "ORD-E"})
		requireKind(t, err, ErrInvalidState)
	})

	t.Run("duplicate code rolls back", func(t *testing.T) {
		h := newHarness(t)
		existing := h.placeOrder(t, 0)

		cart, err := h.carts.CreateCart(ctx, memberA, CreateCartCommand{MemberID: memberA.ID})
		require.NoError(t, err)
		item, err := h.carts.AddItem(ctx, memberA, AddCartItemCommand{CartID: cart.ID, Reference: "sale-a", Quantity: 1})
		require.NoError(t, err)
		h.events.reset()

		_, err = h.carts.CheckoutCart(ctx, memberA, CheckoutCartCommand{CartID: cart.ID, ChannelID: "ch-main", Code: existing.Code})
		requireKind(t, err, ErrConflict)
		assert.Empty(t, h.events.types())

		still, err := h.carts.GetCart(ctx, memberA, cart.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.CartStatusActive, still.Status)
		page, err := h.carts.ListItems(ctx, memberA, cart.ID, CartItemFilter{}, domain.PageRequest{})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, item.ID, page.Data[0].ID)
		assert.Equal(t, domain.CartItemStatusPending, page.Data[0].Status)

		orders, err := h.orders.ListOrders(ctx, adminActor, OrderListFilter{}, domain.PageRequest{})
		require.NoError(t, err)
		assert.Equal(t, 1, orders.Pagination.Records)
	})

	t.Run("total mismatch is logged", func(t *testing.T) {
		h := newHarness(t)
		cart, err := h.carts.CreateCart(ctx, memberA, CreateCartCommand{MemberID: memberA.ID})
		require.NoError(t, err)
		_, err = h.carts.AddItem(ctx, memberA, AddCartItemCommand{CartID: cart.ID, Reference: "sale-a", Quantity: 1, UnitPrice: decimal.NewFromInt(12000)})
		require.NoError(t, err)
		order, err := h.carts.CheckoutCart(ctx, memberA, CheckoutCartCommand{CartID: cart.ID, ChannelID: "ch-main", Code: "ORD-M", TotalPrice: decimal.NewFromInt(1)})
		require.NoError(t, err)
		assert.True(t, order.TotalPrice.Equal(decimal.NewFromInt(1)))
		assert.Equal(t, 1, h.logs.count(orderEventTotalMismatch))
	})
}

func TestCartServiceAbandonStaleCarts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	idle, err := h.carts.CreateCart(ctx, memberA, CreateCartCommand{MemberID: memberA.ID})
	require.NoError(t, err)
	busy, err := h.carts.CreateCart(ctx, guestA, CreateCartCommand{GuestID: guestA.ID})
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	_, err = h.carts.AddItem(ctx, guestA, AddCartItemCommand{CartID: busy.ID, Reference: "sale-b", Quantity: 1})
	require.NoError(t, err)
	h.clock.Advance(time.Hour)
	h.events.reset()

	_, err = h.carts.AbandonStaleCarts(ctx, AbandonStaleCartsCommand{})
	requireKind(t, err, ErrInvalidArgument)

	count, err := h.carts.AbandonStaleCarts(ctx, AbandonStaleCartsCommand{OlderThan: 90 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{eventCartAbandoned}, h.events.types())
	assert.Equal(t, 1, h.logs.count("cart.sweep.completed"))

	swept, err := h.carts.GetCart(ctx, memberA, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CartStatusAbandoned, swept.Status)
	kept, err := h.carts.GetCart(ctx, guestA, busy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CartStatusActive, kept.Status)

	count, err = h.carts.AbandonStaleCarts(ctx, AbandonStaleCartsCommand{OlderThan: 90 * time.Minute})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCartServicePublishFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.events.err = errors.New("broker down")

	cart, err := h.carts.CreateCart(ctx, memberA, CreateCartCommand{MemberID: memberA.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, cart.ID)
	assert.Equal(t, 1, h.logs.count("workflow.event.publish.failed"))
}
