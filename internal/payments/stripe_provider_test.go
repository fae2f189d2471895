package payments

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stripe/stripe-go/v78"
)

type fakeIntents struct {
	intent *stripe.PaymentIntent
	err    error
	params *stripe.PaymentIntentParams
}

func (f *fakeIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

func newTestStripeProvider(t *testing.T, intents *fakeIntents) *StripeProvider {
	t.Helper()
	provider, err := NewStripeProvider(StripeProviderConfig{AccountID: "acct_123", intents: intents})
	if err != nil {
		t.Fatalf("new stripe provider: %v", err)
	}
	return provider
}

func TestStripeProviderLookupTransaction(t *testing.T) {
	tests := []struct {
		name    string
		intent  *stripe.PaymentIntent
		status  Status
		settled bool
	}{
		{
			name: "succeeded",
			intent: &stripe.PaymentIntent{
				ID: "pi_ok", Status: stripe.PaymentIntentStatusSucceeded, Amount: 1500, Currency: "usd",
				LatestCharge: &stripe.Charge{Captured: true, Created: 1700000000, Amount: 1500},
			},
			status:  StatusSucceeded,
			settled: true,
		},
		{
			name:   "processing",
			intent: &stripe.PaymentIntent{ID: "pi_wait", Status: stripe.PaymentIntentStatusProcessing},
			status: StatusPending,
		},
		{
			name:   "canceled",
			intent: &stripe.PaymentIntent{ID: "pi_cancel", Status: stripe.PaymentIntentStatusCanceled},
			status: StatusFailed,
		},
		{
			name: "fully refunded",
			intent: &stripe.PaymentIntent{
				ID: "pi_refund", Status: stripe.PaymentIntentStatusSucceeded,
				LatestCharge: &stripe.Charge{Captured: true, Amount: 900, AmountRefunded: 900, Currency: "krw"},
			},
			status: StatusRefunded,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			intents := &fakeIntents{intent: tc.intent}
			provider := newTestStripeProvider(t, intents)

			details, err := provider.LookupTransaction(context.Background(), tc.intent.ID)
			if err != nil {
				t.Fatalf("lookup: %v", err)
			}
			if details.Status != tc.status || details.Settled() != tc.settled {
				t.Fatalf("expected %s settled=%v, got %#v", tc.status, tc.settled, details)
			}
			if intents.params == nil || intents.params.StripeAccount == nil || *intents.params.StripeAccount != "acct_123" {
				t.Fatalf("expected connected account header on lookup")
			}
		})
	}
}

func TestStripeProviderNotFound(t *testing.T) {
	provider := newTestStripeProvider(t, &fakeIntents{err: &stripe.Error{HTTPStatusCode: http.StatusNotFound, Msg: "No such payment_intent"}})

	_, err := provider.LookupTransaction(context.Background(), "pi_missing")
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
}

func TestStripeProviderClaims(t *testing.T) {
	provider := newTestStripeProvider(t, &fakeIntents{})
	if !provider.Claims("pi_3N") || provider.Claims("ch_3N") || provider.Claims("txn-1") {
		t.Fatalf("unexpected claim results")
	}
}

func TestNewStripeProviderRequiresKey(t *testing.T) {
	if _, err := NewStripeProvider(StripeProviderConfig{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
