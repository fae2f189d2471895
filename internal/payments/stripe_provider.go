package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
	Logger    StripeLogger
	Timeout   time.Duration

	intents stripePaymentIntentAPI
}

// StripeProvider resolves PaymentIntents and Charges referenced by confirmed payments.
type StripeProvider struct {
	intents stripePaymentIntentAPI
	account string
	timeout time.Duration
	logger  StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	intents := cfg.intents
	if intents == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		intents = client.New(apiKey, cfg.Backends).PaymentIntents
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &StripeProvider{
		intents: intents,
		account: strings.TrimSpace(cfg.AccountID),
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Claims accepts PaymentIntent ids.
func (p *StripeProvider) Claims(transactionID string) bool {
	return strings.HasPrefix(strings.TrimSpace(transactionID), "pi_")
}

// LookupTransaction fetches the PaymentIntent with its latest charge expanded.
func (p *StripeProvider) LookupTransaction(ctx context.Context, transactionID string) (TransactionDetails, error) {
	if p == nil {
		return TransactionDetails{}, errors.New("stripe: provider is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}

	intent, err := p.intents.Get(transactionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return TransactionDetails{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, transactionID)
		}
		return TransactionDetails{}, fmt.Errorf("stripe: lookup payment intent: %w", err)
	}

	details := stripeTransactionDetails(intent)
	p.logger(ctx, "payments.stripe.intent.looked_up", map[string]any{
		"paymentIntent": details.ID,
		"status":        string(details.Status),
	})
	return details, nil
}

func stripeTransactionDetails(intent *stripe.PaymentIntent) TransactionDetails {
	if intent == nil {
		return TransactionDetails{}
	}

	details := TransactionDetails{
		ID:       intent.ID,
		Status:   StatusPending,
		Amount:   intent.Amount,
		Currency: strings.ToUpper(string(intent.Currency)),
	}
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		details.Status = StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		details.Status = StatusFailed
	}

	if charge := intent.LatestCharge; charge != nil {
		if charge.Captured {
			capturedAt := time.Unix(charge.Created, 0).UTC()
			details.CapturedAt = &capturedAt
		}
		if charge.Refunded || (charge.Amount > 0 && charge.AmountRefunded >= charge.Amount) {
			details.Status = StatusRefunded
		}
		if details.Currency == "" {
			details.Currency = strings.ToUpper(string(charge.Currency))
		}
	}
	return details
}
