package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/policy"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

const maxPaymentMethodLength = 64

var paymentStateTransitions = map[domain.PaymentStatus][]domain.PaymentStatus{
	domain.PaymentStatusPending:   {domain.PaymentStatusPending, domain.PaymentStatusConfirmed, domain.PaymentStatusCancelled},
	domain.PaymentStatusConfirmed: {domain.PaymentStatusConfirmed, domain.PaymentStatusCancelled},
	domain.PaymentStatusCancelled: {domain.PaymentStatusCancelled},
}

// PaymentTransactionVerifier checks a PSP transaction referenced by a confirmed payment.
type PaymentTransactionVerifier interface {
	TransactionSettled(ctx context.Context, transactionID string) (bool, error)
}

// PaymentServiceDeps bundles collaborators required to construct the payment ledger.
type PaymentServiceDeps struct {
	Orders      repositories.OrderRepository
	Payments    repositories.PaymentRepository
	Verifier    PaymentTransactionVerifier
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders   repositories.OrderRepository
	payments repositories.PaymentRepository
	verifier PaymentTransactionVerifier
	serviceDefaults
	events eventEmitter
}

// paymentChange captures what a mutation did to the ledger so events are emitted after commit.
type paymentChange struct {
	order         domain.Order
	previousState domain.OrderPaymentStatus
}

// NewPaymentService wires dependencies into the payment ledger.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("payment service: payment repository is required")
	}
	defaults := resolveDefaults(deps.UnitOfWork, deps.Clock, deps.IDGenerator, deps.Logger)
	return &paymentService{
		orders:          deps.Orders,
		payments:        deps.Payments,
		verifier:        deps.Verifier,
		serviceDefaults: defaults,
		events:          eventEmitter{publisher: deps.Events, logger: defaults.logger},
	}, nil
}

func (s *paymentService) CreatePayment(ctx context.Context, actor domain.Actor, cmd CreatePaymentCommand) (domain.Payment, error) {
	method, err := normalizePaymentMethod(cmd.Method)
	if err != nil {
		return domain.Payment{}, err
	}
	if !cmd.Status.Valid() {
		return domain.Payment{}, fmt.Errorf("%w: unknown payment status %q", ErrInvalidArgument, cmd.Status)
	}
	if cmd.Amount.IsNegative() {
		return domain.Payment{}, fmt.Errorf("%w: amount must not be negative", ErrInvalidArgument)
	}

	var (
		payment domain.Payment
		change  paymentChange
	)
	err = s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		order, err := loadLedgerOrder(ctx, s.orders, actor, cmd.OrderID, policy.OpLedgerWrite)
		if err != nil {
			return err
		}
		existing, err := s.payments.ListByOrder(ctx, order.ID)
		if err != nil {
			return mapRepositoryError(err, "payments")
		}

		now := s.clock()
		payment = domain.Payment{
			ID:            s.newID(),
			OrderID:       order.ID,
			Method:        method,
			Status:        cmd.Status,
			Amount:        cmd.Amount,
			TransactionID: normalizeTransactionID(cmd.TransactionID),
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		switch payment.Status {
		case domain.PaymentStatusConfirmed:
			payment.ConfirmedAt = &now
		case domain.PaymentStatusCancelled:
			payment.CancelledAt = &now
		}
		if err := s.verify(ctx, payment); err != nil {
			return err
		}

		if err := s.payments.Insert(ctx, payment); err != nil {
			return mapRepositoryError(err, "payment")
		}
		change, err = s.settle(ctx, order, append(existing, payment), now)
		return err
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.publish(ctx, actor, eventPaymentRecorded, payment, change)
	return payment, nil
}

// UpdatePayment applies a partial patch. Cancelled payments keep their status; confirmed payments may be
// re-confirmed with new details.
func (s *paymentService) UpdatePayment(ctx context.Context, actor domain.Actor, cmd UpdatePaymentCommand) (domain.Payment, error) {
	var method string
	if cmd.Method != nil {
		normalized, err := normalizePaymentMethod(*cmd.Method)
		if err != nil {
			return domain.Payment{}, err
		}
		method = normalized
	}
	if cmd.Status != nil && !cmd.Status.Valid() {
		return domain.Payment{}, fmt.Errorf("%w: unknown payment status %q", ErrInvalidArgument, *cmd.Status)
	}
	if cmd.Amount != nil && cmd.Amount.IsNegative() {
		return domain.Payment{}, fmt.Errorf("%w: amount must not be negative", ErrInvalidArgument)
	}

	var (
		payment domain.Payment
		change  paymentChange
	)
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		order, err := loadLedgerOrder(ctx, s.orders, actor, cmd.OrderID, policy.OpLedgerWrite)
		if err != nil {
			return err
		}
		payment, err = s.findPayment(ctx, order.ID, cmd.PaymentID)
		if err != nil {
			return err
		}
		if err := checkVersion("payment", cmd.ExpectedVersion, payment.Version); err != nil {
			return err
		}
		existing, err := s.payments.ListByOrder(ctx, order.ID)
		if err != nil {
			return mapRepositoryError(err, "payments")
		}

		now := s.clock()
		if cmd.Status != nil {
			if !slices.Contains(paymentStateTransitions[payment.Status], *cmd.Status) {
				return fmt.Errorf("%w: cannot move payment from %s to %s", ErrInvalidState, payment.Status, *cmd.Status)
			}
			if *cmd.Status != payment.Status {
				switch *cmd.Status {
				case domain.PaymentStatusConfirmed:
					payment.ConfirmedAt = &now
				case domain.PaymentStatusCancelled:
					payment.CancelledAt = &now
				}
			}
			payment.Status = *cmd.Status
		}
		if cmd.Method != nil {
			payment.Method = method
		}
		if cmd.Amount != nil {
			payment.Amount = *cmd.Amount
		}
		if cmd.TransactionID != nil {
			payment.TransactionID = normalizeTransactionID(cmd.TransactionID)
		}
		payment.CancelledAt = cmd.CancelledAt.apply(payment.CancelledAt)
		if err := s.verify(ctx, payment); err != nil {
			return err
		}

		payment.Version++
		payment.UpdatedAt = now
		if err := s.payments.Update(ctx, payment); err != nil {
			return mapRepositoryError(err, "payment")
		}
		ledger := lo.Map(existing, func(p domain.Payment, _ int) domain.Payment {
			if p.ID == payment.ID {
				return payment
			}
			return p
		})
		change, err = s.settle(ctx, order, ledger, now)
		return err
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.publish(ctx, actor, eventPaymentUpdated, payment, change)
	return payment, nil
}

func (s *paymentService) DeletePayment(ctx context.Context, actor domain.Actor, orderID, paymentID string) error {
	var (
		payment domain.Payment
		change  paymentChange
	)
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		order, err := loadLedgerOrder(ctx, s.orders, actor, orderID, policy.OpLedgerWrite)
		if err != nil {
			return err
		}
		payment, err = s.findPayment(ctx, order.ID, paymentID)
		if err != nil {
			return err
		}
		existing, err := s.payments.ListByOrder(ctx, order.ID)
		if err != nil {
			return mapRepositoryError(err, "payments")
		}
		if err := s.payments.Delete(ctx, payment.ID); err != nil {
			return mapRepositoryError(err, "payment")
		}
		remaining := lo.Filter(existing, func(p domain.Payment, _ int) bool { return p.ID != payment.ID })
		change, err = s.settle(ctx, order, remaining, s.clock())
		return err
	})
	if err != nil {
		return err
	}

	s.publish(ctx, actor, eventPaymentDeleted, payment, change)
	return nil
}

func (s *paymentService) GetPayment(ctx context.Context, actor domain.Actor, orderID, paymentID string) (domain.Payment, error) {
	order, err := loadLedgerOrder(ctx, s.orders, actor, orderID, policy.OpLedgerRead)
	if err != nil {
		return domain.Payment{}, err
	}
	return s.findPayment(ctx, order.ID, paymentID)
}

func (s *paymentService) ListPayments(ctx context.Context, actor domain.Actor, orderID string, page domain.PageRequest) (domain.Page[domain.Payment], error) {
	page, err := validatePage(page)
	if err != nil {
		return domain.Page[domain.Payment]{}, err
	}
	order, err := loadLedgerOrder(ctx, s.orders, actor, orderID, policy.OpLedgerRead)
	if err != nil {
		return domain.Page[domain.Payment]{}, err
	}
	result, err := s.payments.List(ctx, order.ID, page)
	if err != nil {
		return domain.Page[domain.Payment]{}, mapRepositoryError(err, "payments")
	}
	return result, nil
}

func (s *paymentService) findPayment(ctx context.Context, orderID, paymentID string) (domain.Payment, error) {
	payment, err := s.payments.FindByID(ctx, trimmed(paymentID))
	if err != nil {
		return domain.Payment{}, mapRepositoryError(err, "payment")
	}
	if payment.OrderID != orderID {
		return domain.Payment{}, fmt.Errorf("%w: payment", ErrNotFound)
	}
	return payment, nil
}

// verify asks the PSP whether a confirmed payment's transaction actually settled.
func (s *paymentService) verify(ctx context.Context, payment domain.Payment) error {
	if s.verifier == nil || payment.Status != domain.PaymentStatusConfirmed || payment.TransactionID == nil {
		return nil
	}
	settled, err := s.verifier.TransactionSettled(ctx, *payment.TransactionID)
	if err != nil {
		return fmt.Errorf("%w: verify transaction %s: %v", ErrUnavailable, *payment.TransactionID, err)
	}
	if !settled {
		return fmt.Errorf("%w: transaction %s is not settled", ErrInvalidArgument, *payment.TransactionID)
	}
	return nil
}

// settle recomputes the order's payment status from the full ledger and persists it when it moved.
func (s *paymentService) settle(ctx context.Context, order domain.Order, ledger []domain.Payment, now time.Time) (paymentChange, error) {
	change := paymentChange{order: order, previousState: order.PaymentStatus}
	next := derivePaymentStatus(order.TotalPrice, ledger)
	if next == order.PaymentStatus {
		return change, nil
	}
	order.PaymentStatus = next
	order.Version++
	order.UpdatedAt = now
	if err := s.orders.Update(ctx, order); err != nil {
		return paymentChange{}, mapRepositoryError(err, "order")
	}
	change.order = order
	return change, nil
}

func (s *paymentService) publish(ctx context.Context, actor domain.Actor, eventType string, payment domain.Payment, change paymentChange) {
	s.events.emit(ctx, actor, WorkflowEvent{
		Type:        eventType,
		AggregateID: payment.ID,
		OrderID:     payment.OrderID,
		OccurredAt:  s.clock(),
		Metadata: map[string]any{
			"status": string(payment.Status),
			"amount": payment.Amount.String(),
		},
	})
	if change.order.PaymentStatus == change.previousState {
		return
	}
	s.events.emit(ctx, actor, WorkflowEvent{
		Type:        eventOrderPaymentState,
		AggregateID: change.order.ID,
		OrderID:     change.order.ID,
		OccurredAt:  change.order.UpdatedAt,
		Metadata: map[string]any{
			"from": string(change.previousState),
			"to":   string(change.order.PaymentStatus),
		},
	})
}

// derivePaymentStatus folds the payment ledger of an order into its payment status.
func derivePaymentStatus(total decimal.Decimal, ledger []domain.Payment) domain.OrderPaymentStatus {
	if len(ledger) == 0 {
		return domain.OrderPaymentStatusPending
	}
	var (
		paid          = decimal.Zero
		anyConfirmed  bool
		allCancelled  = true
		everConfirmed bool
	)
	for _, payment := range ledger {
		switch payment.Status {
		case domain.PaymentStatusConfirmed:
			paid = paid.Add(payment.Amount)
			anyConfirmed = true
			allCancelled = false
		case domain.PaymentStatusCancelled:
			if payment.ConfirmedAt != nil {
				everConfirmed = true
			}
		default:
			allCancelled = false
		}
	}
	switch {
	case anyConfirmed && paid.GreaterThanOrEqual(total):
		return domain.OrderPaymentStatusPaid
	case paid.IsPositive():
		return domain.OrderPaymentStatusPartiallyPaid
	case allCancelled && everConfirmed:
		return domain.OrderPaymentStatusRefunded
	default:
		return domain.OrderPaymentStatusPending
	}
}

// loadLedgerOrder resolves the order a payment or delivery belongs to and checks ledger access.
func loadLedgerOrder(ctx context.Context, orders repositories.OrderRepository, actor domain.Actor, orderID string, op policy.Operation) (domain.Order, error) {
	if actor.IsZero() {
		return domain.Order{}, ErrUnauthenticated
	}
	order, err := orders.FindByID(ctx, trimmed(orderID))
	if err != nil {
		return domain.Order{}, mapRepositoryError(err, "order")
	}
	if err := authorize(actor, op, orderRefs(order)); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func normalizePaymentMethod(raw string) (string, error) {
	method := sanitizeText(raw)
	if method == "" {
		return "", fmt.Errorf("%w: payment method is required", ErrInvalidArgument)
	}
	if len([]rune(method)) > maxPaymentMethodLength {
		return "", fmt.Errorf("%w: payment method exceeds %d characters", ErrInvalidArgument, maxPaymentMethodLength)
	}
	return method, nil
}

func normalizeTransactionID(raw *string) *string {
	if raw == nil {
		return nil
	}
	id := trimmed(*raw)
	if id == "" {
		return nil
	}
	return &id
}
