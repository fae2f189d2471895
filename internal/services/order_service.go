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

const orderEventTotalMismatch = "order.total.mismatch"

var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusCompleted},
}

// Lines may only change while the order is open.
var openOrderStatuses = []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusProcessing}

// orderPlacer creates an order inside the caller's transaction without publishing events.
type orderPlacer interface {
	placeOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
}

// OrderServiceDeps bundles collaborators required to construct the order engine.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Items       repositories.OrderItemRepository
	Channels    repositories.ChannelRepository
	Catalog     CatalogService
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders   repositories.OrderRepository
	items    repositories.OrderItemRepository
	channels repositories.ChannelRepository
	catalog  CatalogService
	serviceDefaults
	events eventEmitter
}

var (
	_ OrderService = (*orderService)(nil)
	_ orderPlacer  = (*orderService)(nil)
)

// NewOrderService wires dependencies into the order engine.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Items == nil {
		return nil, errors.New("order service: order item repository is required")
	}
	if deps.Channels == nil {
		return nil, errors.New("order service: channel repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog service is required")
	}
	defaults := resolveDefaults(deps.UnitOfWork, deps.Clock, deps.IDGenerator, deps.Logger)
	return &orderService{
		orders:          deps.Orders,
		items:           deps.Items,
		channels:        deps.Channels,
		catalog:         deps.Catalog,
		serviceDefaults: defaults,
		events:          eventEmitter{publisher: deps.Events, logger: defaults.logger},
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, actor domain.Actor, cmd CreateOrderCommand) (domain.Order, error) {
	if actor.IsZero() {
		return domain.Order{}, ErrUnauthenticated
	}
	if err := authorize(actor, policy.OpOrderCreate, policy.Refs{MemberID: trimmed(cmd.MemberID)}); err != nil {
		return domain.Order{}, err
	}

	var order domain.Order
	if err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.placeOrder(ctx, cmd)
		return err
	}); err != nil {
		return domain.Order{}, err
	}

	s.events.emit(ctx, actor, WorkflowEvent{
		Type:        eventOrderCreated,
		AggregateID: order.ID,
		OrderID:     order.ID,
		OccurredAt:  order.CreatedAt,
		Metadata:    map[string]any{"code": order.Code},
	})
	return order, nil
}

func (s *orderService) placeOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	memberID := trimmed(cmd.MemberID)
	if memberID == "" {
		return domain.Order{}, fmt.Errorf("%w: member is required", ErrInvalidArgument)
	}
	code, err := normalizeOrderCode(cmd.Code)
	if err != nil {
		return domain.Order{}, err
	}
	if cmd.TotalPrice.IsNegative() {
		return domain.Order{}, fmt.Errorf("%w: total price must not be negative", ErrInvalidArgument)
	}
	for _, line := range cmd.Lines {
		if err := validateOrderLine(line.Quantity, line.Price, domain.OrderItemStatusPending); err != nil {
			return domain.Order{}, err
		}
	}

	channel, err := s.channels.FindChannel(ctx, trimmed(cmd.ChannelID))
	if err != nil {
		return domain.Order{}, mapRepositoryError(err, "channel")
	}
	if !channel.Active {
		return domain.Order{}, fmt.Errorf("%w: channel %s is not active", ErrNotFound, channel.ID)
	}
	var sectionID *string
	if cmd.SectionID != nil && trimmed(*cmd.SectionID) != "" {
		section, err := s.channels.FindSection(ctx, trimmed(*cmd.SectionID))
		if err != nil {
			return domain.Order{}, mapRepositoryError(err, "section")
		}
		if !section.Active || section.ChannelID != channel.ID {
			return domain.Order{}, fmt.Errorf("%w: section %s is not part of channel %s", ErrNotFound, section.ID, channel.ID)
		}
		sectionID = valuePtr(section.ID)
	}

	now := s.clock()
	order := domain.Order{
		ID:            s.newID(),
		Code:          code,
		MemberID:      memberID,
		ChannelID:     channel.ID,
		SectionID:     sectionID,
		CartID:        cmd.CartID,
		SellerIDs:     sellerIDs(nil, lo.Map(cmd.Lines, func(line OrderLine, _ int) string { return line.Snapshot.SellerID })...),
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.OrderPaymentStatusPending,
		TotalPrice:    cmd.TotalPrice,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orders.Insert(ctx, order); err != nil {
		return domain.Order{}, mapRepositoryError(err, "order code "+code)
	}

	items := make([]domain.OrderItem, 0, len(cmd.Lines))
	for _, line := range cmd.Lines {
		item := domain.OrderItem{
			ID:         s.newID(),
			OrderID:    order.ID,
			SnapshotID: line.Snapshot.SnapshotID,
			SaleID:     line.Snapshot.SaleID,
			SellerID:   line.Snapshot.SellerID,
			Quantity:   line.Quantity,
			Price:      line.Price,
			Status:     domain.OrderItemStatusPending,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.items.Insert(ctx, item); err != nil {
			return domain.Order{}, mapRepositoryError(err, "order item")
		}
		items = append(items, item)
	}
	if len(items) > 0 {
		s.reconcile(ctx, order, items)
	}
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (domain.Order, error) {
	return s.loadOrder(ctx, actor, orderID, policy.OpOrderRead)
}

// ListOrders scopes the listing to what the actor may see: members their own orders, sellers the
// orders they are linked to, admins everything.
func (s *orderService) ListOrders(ctx context.Context, actor domain.Actor, filter OrderListFilter, page domain.PageRequest) (domain.Page[domain.Order], error) {
	if actor.IsZero() {
		return domain.Page[domain.Order]{}, ErrUnauthenticated
	}
	page, err := validatePage(page)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	for _, status := range filter.Status {
		if !isOrderStatus(status) {
			return domain.Page[domain.Order]{}, fmt.Errorf("%w: unknown order status %q", ErrInvalidArgument, status)
		}
	}

	repoFilter := repositories.OrderListFilter{Status: slices.Clone(filter.Status)}
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleMember:
		repoFilter.MemberID = actor.ID
	case domain.RoleSeller:
		repoFilter.SellerID = actor.ID
	default:
		return domain.Page[domain.Order]{}, fmt.Errorf("%w: %s may not list orders", ErrForbidden, actor.Role)
	}

	result, err := s.orders.List(ctx, repoFilter, page)
	if err != nil {
		return domain.Page[domain.Order]{}, mapRepositoryError(err, "orders")
	}
	return result, nil
}

// TransitionStatus moves the order along pending -> processing -> completed or pending -> cancelled.
func (s *orderService) TransitionStatus(ctx context.Context, actor domain.Actor, cmd TransitionOrderCommand) (domain.Order, error) {
	if !isOrderStatus(cmd.Target) {
		return domain.Order{}, fmt.Errorf("%w: unknown order status %q", ErrInvalidArgument, cmd.Target)
	}
	op := policy.OpOrderTransition
	if cmd.Target == domain.OrderStatusCancelled {
		op = policy.OpOrderCancel
	}

	var (
		order    domain.Order
		previous domain.OrderStatus
	)
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.loadOrder(ctx, actor, cmd.OrderID, op)
		if err != nil {
			return err
		}
		if err := checkVersion("order", cmd.ExpectedVersion, order.Version); err != nil {
			return err
		}
		if !canTransition(order.Status, cmd.Target) {
			return fmt.Errorf("%w: cannot move order from %s to %s", ErrInvalidState, order.Status, cmd.Target)
		}

		now := s.clock()
		previous = order.Status
		order.Status = cmd.Target
		switch cmd.Target {
		case domain.OrderStatusCompleted:
			order.CompletedAt = &now
		case domain.OrderStatusCancelled:
			order.CancelledAt = &now
		}
		order.Version++
		order.UpdatedAt = now
		return mapRepositoryError(s.orders.Update(ctx, order), "order")
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.events.emit(ctx, actor, WorkflowEvent{
		Type:        eventOrderStatus,
		AggregateID: order.ID,
		OrderID:     order.ID,
		OccurredAt:  order.UpdatedAt,
		Metadata:    map[string]any{"from": string(previous), "to": string(order.Status)},
	})
	return order, nil
}

// ReconcileTotal compares the stored total with the line sum. Mismatches are reported, never corrected.
func (s *orderService) ReconcileTotal(ctx context.Context, actor domain.Actor, orderID string) (Reconciliation, error) {
	order, err := s.loadOrder(ctx, actor, orderID, policy.OpOrderRead)
	if err != nil {
		return Reconciliation{}, err
	}
	items, err := s.items.ListByOrder(ctx, order.ID)
	if err != nil {
		return Reconciliation{}, mapRepositoryError(err, "order items")
	}
	return s.reconcile(ctx, order, items), nil
}

func (s *orderService) AddItem(ctx context.Context, actor domain.Actor, cmd AddOrderItemCommand) (domain.OrderItem, error) {
	if actor.IsZero() {
		return domain.OrderItem{}, ErrUnauthenticated
	}
	status := domain.OrderItemStatusPending
	if cmd.Status != nil {
		status = *cmd.Status
	}
	if err := validateOrderLine(cmd.Quantity, cmd.Price, status); err != nil {
		return domain.OrderItem{}, err
	}

	var (
		item  domain.OrderItem
		order domain.Order
		lines []domain.OrderItem
	)
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.orders.FindByID(ctx, trimmed(cmd.OrderID))
		if err != nil {
			return mapRepositoryError(err, "order")
		}
		ref, err := s.catalog.ResolveSaleSnapshot(ctx, cmd.Reference)
		if err != nil {
			return err
		}
		if err := authorize(actor, policy.OpOrderWrite, orderRefs(order)); err != nil {
			return err
		}
		// Sellers only add lines from their own sales. Only an admin links a new seller to an order.
		if actor.Role == domain.RoleSeller && ref.SellerID != actor.ID {
			return fmt.Errorf("%w: sale %s belongs to another seller", ErrForbidden, ref.SaleID)
		}
		if !slices.Contains(openOrderStatuses, order.Status) {
			return fmt.Errorf("%w: order is %s", ErrInvalidState, order.Status)
		}
		lines, err = s.items.ListByOrder(ctx, order.ID)
		if err != nil {
			return mapRepositoryError(err, "order items")
		}

		now := s.clock()
		item = domain.OrderItem{
			ID:         s.newID(),
			OrderID:    order.ID,
			SnapshotID: ref.SnapshotID,
			SaleID:     ref.SaleID,
			SellerID:   ref.SellerID,
			Quantity:   cmd.Quantity,
			Price:      cmd.Price,
			Status:     status,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.items.Insert(ctx, item); err != nil {
			return mapRepositoryError(err, "order item")
		}
		lines = append(lines, item)

		if linked := sellerIDs(order.SellerIDs, ref.SellerID); len(linked) != len(order.SellerIDs) {
			order.SellerIDs = linked
			order.Version++
			order.UpdatedAt = now
			return mapRepositoryError(s.orders.Update(ctx, order), "order")
		}
		return nil
	})
	if err != nil {
		return domain.OrderItem{}, err
	}
	s.reconcile(ctx, order, lines)
	return item, nil
}

func (s *orderService) UpdateItem(ctx context.Context, actor domain.Actor, cmd UpdateOrderItemCommand) (domain.OrderItem, error) {
	var (
		item  domain.OrderItem
		order domain.Order
		lines []domain.OrderItem
	)
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.loadOrder(ctx, actor, cmd.OrderID, policy.OpOrderWrite)
		if err != nil {
			return err
		}
		item, err = s.items.FindByID(ctx, trimmed(cmd.ItemID))
		if err != nil {
			return mapRepositoryError(err, "order item")
		}
		if item.OrderID != order.ID {
			return fmt.Errorf("%w: order item", ErrNotFound)
		}
		if !slices.Contains(openOrderStatuses, order.Status) {
			return fmt.Errorf("%w: order is %s", ErrInvalidState, order.Status)
		}
		if err := checkVersion("order item", cmd.ExpectedVersion, item.Version); err != nil {
			return err
		}
		lines, err = s.items.ListByOrder(ctx, order.ID)
		if err != nil {
			return mapRepositoryError(err, "order items")
		}

		if cmd.Quantity != nil {
			item.Quantity = *cmd.Quantity
		}
		if cmd.Price != nil {
			item.Price = *cmd.Price
		}
		if cmd.Status != nil {
			item.Status = *cmd.Status
		}
		if err := validateOrderLine(item.Quantity, item.Price, item.Status); err != nil {
			return err
		}
		item.Version++
		item.UpdatedAt = s.clock()
		if err := s.items.Update(ctx, item); err != nil {
			return mapRepositoryError(err, "order item")
		}
		lines = lo.Map(lines, func(line domain.OrderItem, _ int) domain.OrderItem {
			if line.ID == item.ID {
				return item
			}
			return line
		})
		return nil
	})
	if err != nil {
		return domain.OrderItem{}, err
	}
	s.reconcile(ctx, order, lines)
	return item, nil
}

func (s *orderService) ListItems(ctx context.Context, actor domain.Actor, orderID string, page domain.PageRequest) (domain.Page[domain.OrderItem], error) {
	page, err := validatePage(page)
	if err != nil {
		return domain.Page[domain.OrderItem]{}, err
	}
	order, err := s.loadOrder(ctx, actor, orderID, policy.OpOrderRead)
	if err != nil {
		return domain.Page[domain.OrderItem]{}, err
	}
	result, err := s.items.List(ctx, order.ID, page)
	if err != nil {
		return domain.Page[domain.OrderItem]{}, mapRepositoryError(err, "order items")
	}
	return result, nil
}

func (s *orderService) loadOrder(ctx context.Context, actor domain.Actor, orderID string, op policy.Operation) (domain.Order, error) {
	if actor.IsZero() {
		return domain.Order{}, ErrUnauthenticated
	}
	order, err := s.orders.FindByID(ctx, trimmed(orderID))
	if err != nil {
		return domain.Order{}, mapRepositoryError(err, "order")
	}
	if err := authorize(actor, op, orderRefs(order)); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (s *orderService) reconcile(ctx context.Context, order domain.Order, items []domain.OrderItem) Reconciliation {
	sum := domain.SumOrderItems(items)
	result := Reconciliation{
		OrderID:    order.ID,
		TotalPrice: order.TotalPrice,
		LineTotal:  sum,
		Mismatch:   !sum.Equal(order.TotalPrice),
	}
	if result.Mismatch {
		s.logger(ctx, orderEventTotalMismatch, map[string]any{
			"order":      order.ID,
			"totalPrice": order.TotalPrice.String(),
			"lineTotal":  sum.String(),
		})
	}
	return result
}

func orderRefs(order domain.Order) policy.Refs {
	return policy.Refs{MemberID: order.MemberID, SellerIDs: order.SellerIDs}
}

func canTransition(current, target domain.OrderStatus) bool {
	return slices.Contains(orderStateTransitions[current], target)
}

func isOrderStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusCompleted, domain.OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// sellerIDs merges seller ids into the existing list, dropping blanks and duplicates.
func sellerIDs(existing []string, add ...string) []string {
	merged := append(slices.Clone(existing), add...)
	merged = lo.Filter(merged, func(id string, _ int) bool { return id != "" })
	merged = lo.Uniq(merged)
	if merged == nil {
		merged = []string{}
	}
	return merged
}

func validateOrderLine(quantity int, price decimal.Decimal, status domain.OrderItemStatus) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidArgument)
	}
	if price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidArgument)
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown order item status %q", ErrInvalidArgument, status)
	}
	return nil
}
