package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

type stubVerifier struct {
	mu      sync.Mutex
	settled bool
	err     error
	calls   []string
}

func (v *stubVerifier) TransactionSettled(_ context.Context, transactionID string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, transactionID)
	return v.settled, v.err
}

func TestDerivePaymentStatus(t *testing.T) {
	confirmedAt := testEpoch
	payment := func(status domain.PaymentStatus, amount int64, wasConfirmed bool) domain.Payment {
		p := domain.Payment{Status: status, Amount: decimal.NewFromInt(amount)}
		if wasConfirmed {
			p.ConfirmedAt = &confirmedAt
		}
		return p
	}

	tests := []struct {
		name   string
		total  int64
		ledger []domain.Payment
		want   domain.OrderPaymentStatus
	}{
		{name: "no payments", total: 100, want: domain.OrderPaymentStatusPending},
		{name: "only pending", total: 100, ledger: []domain.Payment{payment(domain.PaymentStatusPending, 100, false)}, want: domain.OrderPaymentStatusPending},
		{name: "partial", total: 100, ledger: []domain.Payment{payment(domain.PaymentStatusConfirmed, 40, true), payment(domain.PaymentStatusPending, 60, false)}, want: domain.OrderPaymentStatusPartiallyPaid},
		{name: "covered", total: 100, ledger: []domain.Payment{payment(domain.PaymentStatusConfirmed, 40, true), payment(domain.PaymentStatusConfirmed, 60, true)}, want: domain.OrderPaymentStatusPaid},
		{name: "overpaid", total: 100, ledger: []domain.Payment{payment(domain.PaymentStatusConfirmed, 150, true)}, want: domain.OrderPaymentStatusPaid},
		{name: "free order confirmed", total: 0, ledger: []domain.Payment{payment(domain.PaymentStatusConfirmed, 0, true)}, want: domain.OrderPaymentStatusPaid},
		{name: "refunded", total: 100, ledger: []domain.Payment{payment(domain.PaymentStatusCancelled, 100, true), payment(domain.PaymentStatusCancelled, 10, false)}, want: domain.OrderPaymentStatusRefunded},
		{name: "cancelled before confirmation", total: 100, ledger: []domain.Payment{payment(domain.PaymentStatusCancelled, 100, false)}, want: domain.OrderPaymentStatusPending},
		{name: "refund with pending retry", total: 100, ledger: []domain.Payment{payment(domain.PaymentStatusCancelled, 100, true), payment(domain.PaymentStatusPending, 100, false)}, want: domain.OrderPaymentStatusPending},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, derivePaymentStatus(decimal.NewFromInt(tc.total), tc.ledger))
		})
	}
}

func TestPaymentServiceAuthorization(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order := h.placeOrder(t, 12000, orderLineSpec{sale: "sale-a", quantity: 1})
	cmd := CreatePaymentCommand{OrderID: order.ID, Method: gofakeit.CreditCardType(), Status: domain.PaymentStatusPending, Amount: decimal.NewFromInt(12000)}

	for _, tc := range []struct {
		actor   domain.Actor
		wantErr error
	}{
		{actor: memberA, wantErr: ErrForbidden},
		{actor: memberB, wantErr: ErrForbidden},
		{actor: sellerB, wantErr: ErrForbidden},
		{actor: guestA, wantErr: ErrForbidden},
		{actor: nobody, wantErr: ErrUnauthenticated},
	} {
		_, err := h.payments.CreatePayment(ctx, tc.actor, cmd)
		requireKind(t, err, tc.wantErr)
	}

	payment, err := h.payments.CreatePayment(ctx, sellerA, cmd)
	require.NoError(t, err)

	for _, actor := range []domain.Actor{memberA, sellerA, adminActor} {
		got, err := h.payments.GetPayment(ctx, actor, order.ID, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.ID, got.ID)
	}
	for _, actor := range []domain.Actor{memberB, sellerB, guestA} {
		_, err := h.payments.GetPayment(ctx, actor, order.ID, payment.ID)
		requireKind(t, err, ErrForbidden)
		_, err = h.payments.ListPayments(ctx, actor, order.ID, domain.PageRequest{})
		requireKind(t, err, ErrForbidden)
	}

	err = h.payments.DeletePayment(ctx, memberA, order.ID, payment.ID)
	requireKind(t, err, ErrForbidden)
	_, err = h.payments.UpdatePayment(ctx, memberA, UpdatePaymentCommand{OrderID: order.ID, PaymentID: payment.ID, Amount: valuePtr(decimal.NewFromInt(1))})
	requireKind(t, err, ErrForbidden)
}

func TestPaymentServiceSettlesOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order := h.placeOrder(t, 100)
	h.events.reset()

	first, err := h.payments.CreatePayment(ctx, adminActor, CreatePaymentCommand{OrderID: order.ID, Method: "card", Status: domain.PaymentStatusPending, Amount: dec("40")})
	require.NoError(t, err)
	assert.Equal(t, []string{eventPaymentRecorded}, h.events.types())
	assertPaymentStatus(t, h, order.ID, domain.OrderPaymentStatusPending)

	confirmed := domain.PaymentStatusConfirmed
	h.clock.Advance(time.Minute)
	first, err = h.payments.UpdatePayment(ctx, adminActor, UpdatePaymentCommand{OrderID: order.ID, PaymentID: first.ID, Status: &confirmed})
	require.NoError(t, err)
	require.NotNil(t, first.ConfirmedAt)
	assert.Equal(t, testEpoch.Add(time.Minute), *first.ConfirmedAt)
	assertPaymentStatus(t, h, order.ID, domain.OrderPaymentStatusPartiallyPaid)

	second, err := h.payments.CreatePayment(ctx, adminActor, CreatePaymentCommand{OrderID: order.ID, Method: "bank", Status: domain.PaymentStatusConfirmed, Amount: dec("60.00")})
	require.NoError(t, err)
	assertPaymentStatus(t, h, order.ID, domain.OrderPaymentStatusPaid)

	cancelled := domain.PaymentStatusCancelled
	for _, id := range []string{first.ID, second.ID} {
		updated, err := h.payments.UpdatePayment(ctx, adminActor, UpdatePaymentCommand{OrderID: order.ID, PaymentID: id, Status: &cancelled})
		require.NoError(t, err)
		require.NotNil(t, updated.CancelledAt)
	}
	assertPaymentStatus(t, h, order.ID, domain.OrderPaymentStatusRefunded)

	require.NoError(t, h.payments.DeletePayment(ctx, adminActor, order.ID, first.ID))
	require.NoError(t, h.payments.DeletePayment(ctx, adminActor, order.ID, second.ID))
	assertPaymentStatus(t, h, order.ID, domain.OrderPaymentStatusPending)

	assert.Equal(t, []string{
		eventPaymentRecorded,
		eventPaymentUpdated, eventOrderPaymentState,
		eventPaymentRecorded, eventOrderPaymentState,
		eventPaymentUpdated, eventOrderPaymentState,
		eventPaymentUpdated, eventOrderPaymentState,
		eventPaymentDeleted,
		eventPaymentDeleted, eventOrderPaymentState,
	}, h.events.types())
}

func assertPaymentStatus(t *testing.T, h *harness, orderID string, want domain.OrderPaymentStatus) {
	t.Helper()
	order, err := h.orders.GetOrder(context.Background(), adminActor, orderID)
	require.NoError(t, err)
	assert.Equal(t, want, order.PaymentStatus)
}

func TestPaymentServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order := h.placeOrder(t, 12000, orderLineSpec{sale: "sale-a", quantity: 1})
	txn := " pi_123 "

	created, err := h.payments.CreatePayment(ctx, sellerA, CreatePaymentCommand{
		OrderID:       order.ID,
		Method:        "<b>Visa</b> card",
		Status:        domain.PaymentStatusPending,
		Amount:        dec("12000"),
		TransactionID: &txn,
	})
	require.NoError(t, err)
	assert.Equal(t, "Visa card", created.Method)
	require.NotNil(t, created.TransactionID)
	assert.Equal(t, "pi_123", *created.TransactionID)
	assert.Equal(t, int64(1), created.Version)

	h.clock.Advance(time.Minute)
	cancelledAt := testEpoch.Add(30 * time.Second)
	patched, err := h.payments.UpdatePayment(ctx, sellerA, UpdatePaymentCommand{
		OrderID:         order.ID,
		PaymentID:       created.ID,
		Amount:          valuePtr(dec("11000")),
		CancelledAt:     OptionalTime{Set: true, Value: &cancelledAt},
		ExpectedVersion: &created.Version,
	})
	require.NoError(t, err)
	assert.True(t, patched.Amount.Equal(dec("11000")))
	assert.Equal(t, created.Method, patched.Method)
	assert.Equal(t, created.Status, patched.Status)
	assert.Equal(t, created.TransactionID, patched.TransactionID)
	require.NotNil(t, patched.CancelledAt)
	assert.Equal(t, cancelledAt, *patched.CancelledAt)
	assert.Equal(t, int64(2), patched.Version)
	assert.Equal(t, testEpoch.Add(time.Minute), patched.UpdatedAt)

	cleared, err := h.payments.UpdatePayment(ctx, sellerA, UpdatePaymentCommand{
		OrderID:     order.ID,
		PaymentID:   created.ID,
		CancelledAt: OptionalTime{Set: true},
	})
	require.NoError(t, err)
	assert.Nil(t, cleared.CancelledAt)
	assert.True(t, cleared.Amount.Equal(dec("11000")))

	_, err = h.payments.UpdatePayment(ctx, sellerA, UpdatePaymentCommand{OrderID: order.ID, PaymentID: created.ID, Amount: valuePtr(dec("1")), ExpectedVersion: &created.Version})
	requireKind(t, err, ErrConflict)

	got, err := h.payments.GetPayment(ctx, memberA, order.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, cleared, got)

	page, err := h.payments.ListPayments(ctx, memberA, order.ID, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Records)
}

func TestPaymentServiceTransitions(t *testing.T) {
	ctx := context.Background()
	pending, confirmed, cancelled := domain.PaymentStatusPending, domain.PaymentStatusConfirmed, domain.PaymentStatusCancelled

	tests := []struct {
		name    string
		from    domain.PaymentStatus
		to      domain.PaymentStatus
		wantErr error
	}{
		{name: "pending to confirmed", from: pending, to: confirmed},
		{name: "pending to cancelled", from: pending, to: cancelled},
		{name: "confirmed to cancelled", from: confirmed, to: cancelled},
		{name: "confirmed re-confirmed", from: confirmed, to: confirmed},
		{name: "confirmed back to pending", from: confirmed, to: pending, wantErr: ErrInvalidState},
		{name: "cancelled is terminal", from: cancelled, to: confirmed, wantErr: ErrInvalidState},
		{name: "cancelled to pending", from: cancelled, to: pending, wantErr: ErrInvalidState},
		{name: "unknown status", from: pending, to: "refunded", wantErr: ErrInvalidArgument},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			order := h.placeOrder(t, 50)
			payment, err := h.payments.CreatePayment(ctx, adminActor, CreatePaymentCommand{OrderID: order.ID, Method: "card", Status: tc.from, Amount: dec("50")})
			require.NoError(t, err)

			target := tc.to
			updated, err := h.payments.UpdatePayment(ctx, adminActor, UpdatePaymentCommand{OrderID: order.ID, PaymentID: payment.ID, Status: &target})
			if tc.wantErr != nil {
				requireKind(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.to, updated.Status)
		})
	}
}

func TestPaymentServiceValidation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order := h.placeOrder(t, 50)

	for name, cmd := range map[string]CreatePaymentCommand{
		"blank method":    {OrderID: order.ID, Method: "<i></i> ", Status: domain.PaymentStatusPending},
		"unknown status":  {OrderID: order.ID, Method: "card", Status: "settled"},
		"negative amount": {OrderID: order.ID, Method: "card", Status: domain.PaymentStatusPending, Amount: dec("-1")},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := h.payments.CreatePayment(ctx, adminActor, cmd)
			requireKind(t, err, ErrInvalidArgument)
		})
	}

	_, err := h.payments.CreatePayment(ctx, adminActor, CreatePaymentCommand{OrderID: "missing", Method: "card", Status: domain.PaymentStatusPending})
	requireKind(t, err, ErrNotFound)
}

func TestPaymentServiceDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	order := h.placeOrder(t, 50, orderLineSpec{sale: "sale-a", quantity: 1})
	other := h.placeOrder(t, 50, orderLineSpec{sale: "sale-a", quantity: 1})
	payment, err := h.payments.CreatePayment(ctx, sellerA, CreatePaymentCommand{OrderID: order.ID, Method: "card", Status: domain.PaymentStatusPending, Amount: dec("50")})
	require.NoError(t, err)

	err = h.payments.DeletePayment(ctx, sellerA, other.ID, payment.ID)
	requireKind(t, err, ErrNotFound)
	_, err = h.payments.GetPayment(ctx, sellerA, other.ID, payment.ID)
	requireKind(t, err, ErrNotFound)

	require.NoError(t, h.payments.DeletePayment(ctx, sellerA, order.ID, payment.ID))
	err = h.payments.DeletePayment(ctx, sellerA, order.ID, payment.ID)
	requireKind(t, err, ErrNotFound)
	_, err = h.payments.GetPayment(ctx, memberA, order.ID, payment.ID)
	requireKind(t, err, ErrNotFound)
}

func TestPaymentServiceVerifier(t *testing.T) {
	ctx := context.Background()
	txn := "pi_456"

	t.Run("settled transaction", func(t *testing.T) {
		verifier := &stubVerifier{settled: true}
		h := newHarness(t, withVerifier(verifier))
		order := h.placeOrder(t, 50)
		_, err := h.payments.CreatePayment(ctx, adminActor, CreatePaymentCommand{OrderID: order.ID, Method: "card", Status: domain.PaymentStatusConfirmed, Amount: dec("50"), TransactionID: &txn})
		require.NoError(t, err)
		assert.Equal(t, []string{txn}, verifier.calls)
		assertPaymentStatus(t, h, order.ID, domain.OrderPaymentStatusPaid)
	})

	t.Run("unsettled transaction is rejected", func(t *testing.T) {
		verifier := &stubVerifier{settled: false}
		h := newHarness(t, withVerifier(verifier))
		order := h.placeOrder(t, 50)
		payment, err := h.payments.CreatePayment(ctx, adminActor, CreatePaymentCommand{OrderID: order.ID, Method: "card", Status: domain.PaymentStatusPending, Amount: dec("50"), TransactionID: &txn})
		require.NoError(t, err)
		assert.Empty(t, verifier.calls)

		confirmed := domain.PaymentStatusConfirmed
		_, err = h.payments.UpdatePayment(ctx, adminActor, UpdatePaymentCommand{OrderID: order.ID, PaymentID: payment.ID, Status: &confirmed})
		requireKind(t, err, ErrInvalidArgument)

		unchanged, err := h.payments.GetPayment(ctx, adminActor, order.ID, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusPending, unchanged.Status)
		assertPaymentStatus(t, h, order.ID, domain.OrderPaymentStatusPending)
	})

	t.Run("lookup failure", func(t *testing.T) {
		verifier := &stubVerifier{err: errors.New("psp timeout")}
		h := newHarness(t, withVerifier(verifier))
		order := h.placeOrder(t, 50)
		_, err := h.payments.CreatePayment(ctx, adminActor, CreatePaymentCommand{OrderID: order.ID, Method: "card", Status: domain.PaymentStatusConfirmed, Amount: dec("50"), TransactionID: &txn})
		requireKind(t, err, ErrUnavailable)
	})

	t.Run("confirmed without transaction", func(t *testing.T) {
		verifier := &stubVerifier{}
		h := newHarness(t, withVerifier(verifier))
		order := h.placeOrder(t, 50)
		_, err := h.payments.CreatePayment(ctx, adminActor, CreatePaymentCommand{OrderID: order.ID, Method: "cash", Status: domain.PaymentStatusConfirmed, Amount: dec("50")})
		require.NoError(t, err)
		assert.Empty(t, verifier.calls)
	})
}
