package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/status"
)

type txKey struct{}

// TransactionFromContext returns the transaction RunInTx attached to ctx.
func TransactionFromContext(ctx context.Context) (*firestore.Transaction, bool) {
	tx, ok := ctx.Value(txKey{}).(*firestore.Transaction)
	return tx, ok && tx != nil
}

// UnitOfWork runs repository calls inside one Firestore transaction carried on the context.
type UnitOfWork struct {
	provider *Provider
	attempts int
	timeout  time.Duration
}

// NewUnitOfWork returns a UnitOfWork retrying contended transactions up to five times within 15s.
func NewUnitOfWork(provider *Provider) *UnitOfWork {
	return &UnitOfWork{provider: provider, attempts: 5, timeout: 15 * time.Second}
}

// RunInTx runs fn in a transaction, or directly when ctx already carries one. Firestore requires
// every read to precede the first write, so fn must load before it stores.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TransactionFromContext(ctx); ok {
		return fn(ctx)
	}
	client, err := u.provider.Client(ctx)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > u.timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	}, firestore.MaxAttempts(u.attempts))
	// Errors raised by fn itself carry no gRPC status and pass through untouched.
	if _, ok := status.FromError(err); err == nil || !ok {
		return err
	}
	return WrapError("transaction", err)
}
