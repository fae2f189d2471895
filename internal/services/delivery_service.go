package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/policy"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

// DeliveryServiceDeps bundles collaborators required to construct the delivery ledger.
type DeliveryServiceDeps struct {
	Orders      repositories.OrderRepository
	Deliveries  repositories.DeliveryRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type deliveryService struct {
	orders     repositories.OrderRepository
	deliveries repositories.DeliveryRepository
	serviceDefaults
	events eventEmitter
}

// NewDeliveryService wires dependencies into the delivery ledger.
func NewDeliveryService(deps DeliveryServiceDeps) (DeliveryService, error) {
	if deps.Orders == nil {
		return nil, errors.New("delivery service: order repository is required")
	}
	if deps.Deliveries == nil {
		return nil, errors.New("delivery service: delivery repository is required")
	}
	defaults := resolveDefaults(deps.UnitOfWork, deps.Clock, deps.IDGenerator, deps.Logger)
	return &deliveryService{
		orders:          deps.Orders,
		deliveries:      deps.Deliveries,
		serviceDefaults: defaults,
		events:          eventEmitter{publisher: deps.Events, logger: defaults.logger},
	}, nil
}

// CreateDelivery records a shipment. Status and stage are validated independently.
func (s *deliveryService) CreateDelivery(ctx context.Context, actor domain.Actor, cmd CreateDeliveryCommand) (domain.Delivery, error) {
	if err := validateDeliveryState(cmd.Status, cmd.Stage); err != nil {
		return domain.Delivery{}, err
	}

	var delivery domain.Delivery
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		order, err := loadLedgerOrder(ctx, s.orders, actor, cmd.OrderID, policy.OpLedgerWrite)
		if err != nil {
			return err
		}
		now := s.clock()
		delivery = domain.Delivery{
			ID:                   s.newID(),
			OrderID:              order.ID,
			Status:               cmd.Status,
			Stage:                cmd.Stage,
			ExpectedDeliveryDate: utcTime(cmd.ExpectedDeliveryDate),
			StartTime:            utcTime(cmd.StartTime),
			EndTime:              utcTime(cmd.EndTime),
			Version:              1,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		return mapRepositoryError(s.deliveries.Insert(ctx, delivery), "delivery")
	})
	if err != nil {
		return domain.Delivery{}, err
	}

	s.publish(ctx, actor, eventDeliveryRecorded, delivery)
	return delivery, nil
}

func (s *deliveryService) UpdateDelivery(ctx context.Context, actor domain.Actor, cmd UpdateDeliveryCommand) (domain.Delivery, error) {
	if cmd.Status != nil && !cmd.Status.Valid() {
		return domain.Delivery{}, fmt.Errorf("%w: unknown delivery status %q", ErrInvalidArgument, *cmd.Status)
	}
	if cmd.Stage != nil && !cmd.Stage.Valid() {
		return domain.Delivery{}, fmt.Errorf("%w: unknown delivery stage %q", ErrInvalidArgument, *cmd.Stage)
	}

	var delivery domain.Delivery
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		order, err := loadLedgerOrder(ctx, s.orders, actor, cmd.OrderID, policy.OpLedgerWrite)
		if err != nil {
			return err
		}
		delivery, err = s.findDelivery(ctx, order.ID, cmd.DeliveryID)
		if err != nil {
			return err
		}
		if err := checkVersion("delivery", cmd.ExpectedVersion, delivery.Version); err != nil {
			return err
		}

		if cmd.Status != nil {
			delivery.Status = *cmd.Status
		}
		if cmd.Stage != nil {
			delivery.Stage = *cmd.Stage
		}
		delivery.ExpectedDeliveryDate = cmd.ExpectedDeliveryDate.apply(delivery.ExpectedDeliveryDate)
		delivery.StartTime = cmd.StartTime.apply(delivery.StartTime)
		delivery.EndTime = cmd.EndTime.apply(delivery.EndTime)
		delivery.Version++
		delivery.UpdatedAt = s.clock()
		return mapRepositoryError(s.deliveries.Update(ctx, delivery), "delivery")
	})
	if err != nil {
		return domain.Delivery{}, err
	}

	s.publish(ctx, actor, eventDeliveryUpdated, delivery)
	return delivery, nil
}

func (s *deliveryService) DeleteDelivery(ctx context.Context, actor domain.Actor, orderID, deliveryID string) error {
	var delivery domain.Delivery
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		order, err := loadLedgerOrder(ctx, s.orders, actor, orderID, policy.OpLedgerWrite)
		if err != nil {
			return err
		}
		delivery, err = s.findDelivery(ctx, order.ID, deliveryID)
		if err != nil {
			return err
		}
		return mapRepositoryError(s.deliveries.Delete(ctx, delivery.ID), "delivery")
	})
	if err != nil {
		return err
	}

	s.publish(ctx, actor, eventDeliveryDeleted, delivery)
	return nil
}

func (s *deliveryService) GetDelivery(ctx context.Context, actor domain.Actor, orderID, deliveryID string) (domain.Delivery, error) {
	order, err := loadLedgerOrder(ctx, s.orders, actor, orderID, policy.OpLedgerRead)
	if err != nil {
		return domain.Delivery{}, err
	}
	return s.findDelivery(ctx, order.ID, deliveryID)
}

// ListDeliveries filters by exact status and stage. Unset sort parts fall back to created_at desc.
func (s *deliveryService) ListDeliveries(ctx context.Context, actor domain.Actor, query ListDeliveriesQuery) (domain.Page[domain.Delivery], error) {
	page, err := validatePage(query.Page)
	if err != nil {
		return domain.Page[domain.Delivery]{}, err
	}
	if query.Status != nil && !query.Status.Valid() {
		return domain.Page[domain.Delivery]{}, fmt.Errorf("%w: unknown delivery status %q", ErrInvalidArgument, *query.Status)
	}
	if query.Stage != nil && !query.Stage.Valid() {
		return domain.Page[domain.Delivery]{}, fmt.Errorf("%w: unknown delivery stage %q", ErrInvalidArgument, *query.Stage)
	}
	sort := query.Sort.Normalize()
	if !sort.Field.Valid() {
		return domain.Page[domain.Delivery]{}, fmt.Errorf("%w: cannot sort deliveries by %q", ErrInvalidArgument, sort.Field)
	}
	if sort.Direction != domain.SortAsc && sort.Direction != domain.SortDesc {
		return domain.Page[domain.Delivery]{}, fmt.Errorf("%w: unknown sort direction %q", ErrInvalidArgument, sort.Direction)
	}

	order, err := loadLedgerOrder(ctx, s.orders, actor, query.OrderID, policy.OpLedgerRead)
	if err != nil {
		return domain.Page[domain.Delivery]{}, err
	}
	result, err := s.deliveries.List(ctx, order.ID, repositories.DeliveryFilter{
		Status: query.Status,
		Stage:  query.Stage,
		Sort:   sort,
	}, page)
	if err != nil {
		return domain.Page[domain.Delivery]{}, mapRepositoryError(err, "deliveries")
	}
	return result, nil
}

func (s *deliveryService) findDelivery(ctx context.Context, orderID, deliveryID string) (domain.Delivery, error) {
	delivery, err := s.deliveries.FindByID(ctx, trimmed(deliveryID))
	if err != nil {
		return domain.Delivery{}, mapRepositoryError(err, "delivery")
	}
	if delivery.OrderID != orderID {
		return domain.Delivery{}, fmt.Errorf("%w: delivery", ErrNotFound)
	}
	return delivery, nil
}

func (s *deliveryService) publish(ctx context.Context, actor domain.Actor, eventType string, delivery domain.Delivery) {
	s.events.emit(ctx, actor, WorkflowEvent{
		Type:        eventType,
		AggregateID: delivery.ID,
		OrderID:     delivery.OrderID,
		OccurredAt:  s.clock(),
		Metadata: map[string]any{
			"status": string(delivery.Status),
			"stage":  string(delivery.Stage),
		},
	})
}

func validateDeliveryState(status domain.DeliveryStatus, stage domain.DeliveryStage) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown delivery status %q", ErrInvalidArgument, status)
	}
	if !stage.Valid() {
		return fmt.Errorf("%w: unknown delivery stage %q", ErrInvalidArgument, stage)
	}
	return nil
}

func utcTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	v := value.UTC()
	return &v
}
