package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the PSP-side state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

var (
	// ErrUnsupportedProvider is returned when no provider claims a transaction id.
	ErrUnsupportedProvider = errors.New("payments: unsupported provider")
	// ErrTransactionNotFound is returned when the PSP has no record of the transaction.
	ErrTransactionNotFound = errors.New("payments: transaction not found")
)

// TransactionDetails is the normalised PSP view of a transaction.
type TransactionDetails struct {
	Provider   string
	ID         string
	Status     Status
	Amount     int64
	Currency   string
	CapturedAt *time.Time
}

// Settled reports whether funds were captured and not returned.
func (d TransactionDetails) Settled() bool {
	return d.Status == StatusSucceeded
}

// Provider looks up transactions at one PSP.
type Provider interface {
	// Claims reports whether the transaction id belongs to this provider.
	Claims(transactionID string) bool
	LookupTransaction(ctx context.Context, transactionID string) (TransactionDetails, error)
}

// Manager routes transaction lookups to the provider that issued them. It implements the
// transaction verifier used when payments are confirmed.
type Manager struct {
	providers       map[string]Provider
	order           []string
	defaultProvider string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultProvider selects the provider for ids no provider claims.
func WithDefaultProvider(provider string) ManagerOption {
	return func(m *Manager) {
		m.defaultProvider = strings.ToLower(strings.TrimSpace(provider))
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers map[string]Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	m := &Manager{providers: make(map[string]Provider, len(providers))}
	for name, provider := range providers {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" || provider == nil {
			return nil, fmt.Errorf("payments: invalid provider registration for key %q", name)
		}
		m.providers[key] = provider
		m.order = append(m.order, key)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.defaultProvider != "" {
		if _, ok := m.providers[m.defaultProvider]; !ok {
			return nil, fmt.Errorf("payments: default provider %q is not registered", m.defaultProvider)
		}
	}
	return m, nil
}

func (m *Manager) resolve(transactionID string) (string, Provider, error) {
	if m == nil {
		return "", nil, errors.New("payments: manager is nil")
	}
	var claimed []string
	for _, name := range m.order {
		if m.providers[name].Claims(transactionID) {
			claimed = append(claimed, name)
		}
	}
	switch {
	case len(claimed) == 1:
		return claimed[0], m.providers[claimed[0]], nil
	case len(claimed) == 0 && m.defaultProvider != "":
		return m.defaultProvider, m.providers[m.defaultProvider], nil
	case len(claimed) == 0 && len(m.providers) == 1:
		return m.order[0], m.providers[m.order[0]], nil
	}
	return "", nil, fmt.Errorf("%w: transaction %q", ErrUnsupportedProvider, transactionID)
}

// Lookup fetches the transaction from the provider that issued it.
func (m *Manager) Lookup(ctx context.Context, transactionID string) (TransactionDetails, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return TransactionDetails{}, errors.New("payments: transaction id is required")
	}
	name, provider, err := m.resolve(transactionID)
	if err != nil {
		return TransactionDetails{}, err
	}
	details, err := provider.LookupTransaction(ctx, transactionID)
	if err != nil {
		return TransactionDetails{}, err
	}
	details.Provider = name
	return details, nil
}

// TransactionSettled reports whether the PSP captured the transaction. Unknown transactions are
// reported as unsettled rather than as an error.
func (m *Manager) TransactionSettled(ctx context.Context, transactionID string) (bool, error) {
	details, err := m.Lookup(ctx, transactionID)
	if errors.Is(err, ErrTransactionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return details.Settled(), nil
}
