package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/policy"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

const defaultStaleCartBatch = 100

var sweeperActor = domain.Actor{ID: "cart-sweeper", Role: domain.RoleAdmin}

// CartServiceDeps bundles collaborators required to construct the cart engine.
type CartServiceDeps struct {
	Carts       repositories.CartRepository
	Items       repositories.CartItemRepository
	Options     repositories.CartItemOptionRepository
	Catalog     CatalogService
	Orders      OrderService
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      EventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts   repositories.CartRepository
	items   repositories.CartItemRepository
	options repositories.CartItemOptionRepository
	catalog CatalogService
	orders  orderPlacer
	serviceDefaults
	events eventEmitter
}

var _ CartService = (*cartService)(nil)

// NewCartService wires dependencies into the cart engine.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Items == nil {
		return nil, errors.New("cart service: cart item repository is required")
	}
	if deps.Options == nil {
		return nil, errors.New("cart service: cart item option repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("cart service: catalog service is required")
	}
	var placer orderPlacer
	if deps.Orders != nil {
		p, ok := deps.Orders.(orderPlacer)
		if !ok {
			return nil, errors.New("cart service: order service does not support checkout")
		}
		placer = p
	}

	defaults := resolveDefaults(deps.UnitOfWork, deps.Clock, deps.IDGenerator, deps.Logger)
	return &cartService{
		carts:           deps.Carts,
		items:           deps.Items,
		options:         deps.Options,
		catalog:         deps.Catalog,
		orders:          placer,
		serviceDefaults: defaults,
		events:          eventEmitter{publisher: deps.Events, logger: defaults.logger},
	}, nil
}

func (s *cartService) CreateCart(ctx context.Context, actor domain.Actor, cmd CreateCartCommand) (domain.Cart, error) {
	if actor.IsZero() {
		return domain.Cart{}, ErrUnauthenticated
	}
	guestID, memberID := trimmed(cmd.GuestID), trimmed(cmd.MemberID)
	switch {
	case guestID != "" && memberID != "":
		return domain.Cart{}, fmt.Errorf("%w: cart must have exactly one owner, got guest and member", ErrInvalidArgument)
	case guestID == "" && memberID == "":
		return domain.Cart{}, fmt.Errorf("%w: cart owner is required", ErrInvalidArgument)
	}
	if err := authorize(actor, policy.OpCartCreate, policy.Refs{GuestID: guestID, MemberID: memberID}); err != nil {
		return domain.Cart{}, err
	}

	now := s.clock()
	cart := domain.Cart{
		ID:        s.newID(),
		GuestID:   guestID,
		MemberID:  memberID,
		Status:    domain.CartStatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		return mapRepositoryError(s.carts.Insert(ctx, cart), "cart")
	}); err != nil {
		return domain.Cart{}, err
	}

	s.events.emit(ctx, actor, WorkflowEvent{Type: eventCartCreated, AggregateID: cart.ID, OccurredAt: now})
	return cart, nil
}

func (s *cartService) GetCart(ctx context.Context, actor domain.Actor, cartID string) (domain.Cart, error) {
	return s.loadCart(ctx, actor, cartID, policy.OpCartRead)
}

func (s *cartService) AbandonCart(ctx context.Context, actor domain.Actor, cartID string) (domain.Cart, error) {
	var cart domain.Cart
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cart, err = s.loadActiveCart(ctx, actor, cartID)
		if err != nil {
			return err
		}
		cart = s.abandon(cart)
		return mapRepositoryError(s.carts.Update(ctx, cart), "cart")
	})
	if err != nil {
		return domain.Cart{}, err
	}
	s.events.emit(ctx, actor, WorkflowEvent{Type: eventCartAbandoned, AggregateID: cart.ID, OccurredAt: cart.UpdatedAt})
	return cart, nil
}

// AbandonStaleCarts abandons active carts untouched for longer than OlderThan.
func (s *cartService) AbandonStaleCarts(ctx context.Context, cmd AbandonStaleCartsCommand) (int, error) {
	if cmd.OlderThan <= 0 {
		return 0, fmt.Errorf("%w: stale threshold must be positive", ErrInvalidArgument)
	}
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultStaleCartBatch
	}
	cutoff := s.clock().Add(-cmd.OlderThan)

	var abandoned []domain.Cart
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		abandoned = nil
		stale, err := s.carts.ListStale(ctx, cutoff, limit)
		if err != nil {
			return mapRepositoryError(err, "stale carts")
		}
		for _, cart := range stale {
			cart = s.abandon(cart)
			if err := s.carts.Update(ctx, cart); err != nil {
				return mapRepositoryError(err, "cart")
			}
			abandoned = append(abandoned, cart)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, cart := range abandoned {
		s.events.emit(ctx, sweeperActor, WorkflowEvent{
			Type:        eventCartAbandoned,
			AggregateID: cart.ID,
			OccurredAt:  cart.UpdatedAt,
			Metadata:    map[string]any{"reason": "stale"},
		})
	}
	if len(abandoned) > 0 {
		s.logger(ctx, "cart.sweep.completed", map[string]any{"abandoned": len(abandoned), "cutoff": cutoff})
	}
	return len(abandoned), nil
}

// CheckoutCart turns the pending lines of a member cart into a new order and closes the cart.
func (s *cartService) CheckoutCart(ctx context.Context, actor domain.Actor, cmd CheckoutCartCommand) (domain.Order, error) {
	if s.orders == nil {
		return domain.Order{}, fmt.Errorf("%w: checkout is not configured", ErrInvalidState)
	}

	var (
		order domain.Order
		cart  domain.Cart
	)
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		cart, err = s.loadActiveCart(ctx, actor, cmd.CartID)
		if err != nil {
			return err
		}
		if cart.MemberID == "" {
			return fmt.Errorf("%w: guest carts cannot be checked out", ErrInvalidState)
		}
		if err := authorize(actor, policy.OpOrderCreate, policy.Refs{MemberID: cart.MemberID}); err != nil {
			return err
		}

		items, err := s.items.ListByCart(ctx, cart.ID)
		if err != nil {
			return mapRepositoryError(err, "cart items")
		}
		pending := lo.Filter(items, func(item domain.CartItem, _ int) bool {
			return item.Status == domain.CartItemStatusPending
		})
		if len(pending) == 0 {
			return fmt.Errorf("%w: cart has no pending items", ErrInvalidState)
		}

		cartID := cart.ID
		order, err = s.orders.placeOrder(ctx, CreateOrderCommand{
			MemberID:   cart.MemberID,
			ChannelID:  cmd.ChannelID,
			SectionID:  cmd.SectionID,
			CartID:     &cartID,
			Code:       cmd.Code,
			TotalPrice: cmd.TotalPrice,
			Lines: lo.Map(pending, func(item domain.CartItem, _ int) OrderLine {
				return OrderLine{
					Snapshot: domain.SnapshotRef{SnapshotID: item.SnapshotID, SaleID: item.SaleID, SellerID: item.SellerID},
					Quantity: item.Quantity,
					Price:    item.UnitPrice,
				}
			}),
		})
		if err != nil {
			return err
		}

		now := s.clock()
		for _, item := range pending {
			item.Status = domain.CartItemStatusOrdered
			item.Version++
			item.UpdatedAt = now
			if err := s.items.Update(ctx, item); err != nil {
				return mapRepositoryError(err, "cart item")
			}
		}
		cart.Status = domain.CartStatusOrdered
		cart.OrderedAt = &now
		cart.UpdatedAt = now
		cart.Version++
		return mapRepositoryError(s.carts.Update(ctx, cart), "cart")
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.events.emit(ctx, actor, WorkflowEvent{Type: eventCartCheckedOut, AggregateID: cart.ID, OrderID: order.ID, OccurredAt: cart.UpdatedAt})
	s.events.emit(ctx, actor, WorkflowEvent{
		Type:        eventOrderCreated,
		AggregateID: order.ID,
		OrderID:     order.ID,
		OccurredAt:  order.CreatedAt,
		Metadata:    map[string]any{"code": order.Code, "cartId": cart.ID},
	})
	return order, nil
}

func (s *cartService) AddItem(ctx context.Context, actor domain.Actor, cmd AddCartItemCommand) (domain.CartItem, error) {
	status := domain.CartItemStatusPending
	if cmd.Status != nil {
		status = *cmd.Status
	}
	if err := validateCartLine(cmd.Quantity, cmd.UnitPrice.IsNegative(), status); err != nil {
		return domain.CartItem{}, err
	}

	var item domain.CartItem
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		cart, err := s.loadActiveCart(ctx, actor, cmd.CartID)
		if err != nil {
			return err
		}
		ref, err := s.catalog.ResolveSaleSnapshot(ctx, cmd.Reference)
		if err != nil {
			return err
		}
		now := s.clock()
		item = domain.CartItem{
			ID:         s.newID(),
			CartID:     cart.ID,
			SnapshotID: ref.SnapshotID,
			SaleID:     ref.SaleID,
			SellerID:   ref.SellerID,
			Quantity:   cmd.Quantity,
			UnitPrice:  cmd.UnitPrice,
			Status:     status,
			Version:    1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.items.Insert(ctx, item); err != nil {
			return mapRepositoryError(err, "cart item")
		}
		return s.touch(ctx, cart)
	})
	if err != nil {
		return domain.CartItem{}, err
	}
	return item, nil
}

func (s *cartService) UpdateItem(ctx context.Context, actor domain.Actor, cmd UpdateCartItemCommand) (domain.CartItem, error) {
	var item domain.CartItem
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		cart, loaded, err := s.loadPendingItem(ctx, actor, cmd.CartID, cmd.ItemID)
		if err != nil {
			return err
		}
		item = loaded
		if err := checkVersion("cart item", cmd.ExpectedVersion, item.Version); err != nil {
			return err
		}

		if cmd.Quantity != nil {
			item.Quantity = *cmd.Quantity
		}
		if cmd.UnitPrice != nil {
			item.UnitPrice = *cmd.UnitPrice
		}
		if cmd.Status != nil {
			item.Status = *cmd.Status
		}
		if err := validateCartLine(item.Quantity, item.UnitPrice.IsNegative(), item.Status); err != nil {
			return err
		}

		item.Version++
		item.UpdatedAt = s.clock()
		if err := s.items.Update(ctx, item); err != nil {
			return mapRepositoryError(err, "cart item")
		}
		return s.touch(ctx, cart)
	})
	if err != nil {
		return domain.CartItem{}, err
	}
	return item, nil
}

// RemoveItem soft-deletes a pending line. Removing an already removed line reports not found.
func (s *cartService) RemoveItem(ctx context.Context, actor domain.Actor, cartID, itemID string) error {
	return s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		cart, item, err := s.loadPendingItem(ctx, actor, cartID, itemID)
		if err != nil {
			return err
		}
		if err := s.items.SoftDelete(ctx, item.ID, s.clock()); err != nil {
			return mapRepositoryError(err, "cart item")
		}
		return s.touch(ctx, cart)
	})
}

func (s *cartService) ListItems(ctx context.Context, actor domain.Actor, cartID string, filter CartItemFilter, page domain.PageRequest) (domain.Page[domain.CartItem], error) {
	page, err := validatePage(page)
	if err != nil {
		return domain.Page[domain.CartItem]{}, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return domain.Page[domain.CartItem]{}, fmt.Errorf("%w: unknown cart item status %q", ErrInvalidArgument, *filter.Status)
	}
	cart, err := s.loadCart(ctx, actor, cartID, policy.OpCartRead)
	if err != nil {
		return domain.Page[domain.CartItem]{}, err
	}
	result, err := s.items.List(ctx, cart.ID, repositories.CartItemFilter{Status: filter.Status}, page)
	if err != nil {
		return domain.Page[domain.CartItem]{}, mapRepositoryError(err, "cart items")
	}
	return result, nil
}

func (s *cartService) AttachOption(ctx context.Context, actor domain.Actor, cmd AttachOptionCommand) (domain.CartItemOption, error) {
	var option domain.CartItemOption
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		cart, item, err := s.loadPendingItem(ctx, actor, cmd.CartID, cmd.ItemID)
		if err != nil {
			return err
		}
		ref, err := s.catalog.ResolveOption(ctx, cmd.OptionGroupID, cmd.OptionID)
		if err != nil {
			return err
		}
		now := s.clock()
		option = domain.CartItemOption{
			ID:            s.newID(),
			CartItemID:    item.ID,
			OptionGroupID: ref.GroupID,
			OptionID:      ref.OptionID,
			Version:       1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.options.Insert(ctx, option); err != nil {
			return mapRepositoryError(err, "cart item option")
		}
		return s.touch(ctx, cart)
	})
	if err != nil {
		return domain.CartItemOption{}, err
	}
	return option, nil
}

func (s *cartService) UpdateOption(ctx context.Context, actor domain.Actor, cmd UpdateOptionCommand) (domain.CartItemOption, error) {
	var option domain.CartItemOption
	err := s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		cart, loaded, err := s.loadOptionRecord(ctx, actor, cmd.CartID, cmd.ItemID, cmd.OptionRecordID)
		if err != nil {
			return err
		}
		option = loaded
		if err := checkVersion("cart item option", cmd.ExpectedVersion, option.Version); err != nil {
			return err
		}

		groupID, optionID := option.OptionGroupID, option.OptionID
		if cmd.OptionGroupID != nil {
			groupID = *cmd.OptionGroupID
		}
		if cmd.OptionID != nil {
			optionID = *cmd.OptionID
		}
		ref, err := s.catalog.ResolveOption(ctx, groupID, optionID)
		if err != nil {
			return err
		}

		option.OptionGroupID = ref.GroupID
		option.OptionID = ref.OptionID
		option.Version++
		option.UpdatedAt = s.clock()
		if err := s.options.Update(ctx, option); err != nil {
			return mapRepositoryError(err, "cart item option")
		}
		return s.touch(ctx, cart)
	})
	if err != nil {
		return domain.CartItemOption{}, err
	}
	return option, nil
}

func (s *cartService) RemoveOption(ctx context.Context, actor domain.Actor, cmd RemoveOptionCommand) error {
	return s.unitOfWork.RunInTx(ctx, func(ctx context.Context) error {
		cart, option, err := s.loadOptionRecord(ctx, actor, cmd.CartID, cmd.ItemID, cmd.OptionRecordID)
		if err != nil {
			return err
		}
		if err := s.options.SoftDelete(ctx, option.ID, s.clock()); err != nil {
			return mapRepositoryError(err, "cart item option")
		}
		return s.touch(ctx, cart)
	})
}

func (s *cartService) ListItemOptions(ctx context.Context, actor domain.Actor, query ListItemOptionsQuery) (domain.Page[domain.CartItemOption], error) {
	page, err := validatePage(query.Page)
	if err != nil {
		return domain.Page[domain.CartItemOption]{}, err
	}
	item, err := s.items.FindByID(ctx, query.ItemID)
	if err != nil {
		return domain.Page[domain.CartItemOption]{}, mapRepositoryError(err, "cart item")
	}
	if query.CartID != "" && item.CartID != query.CartID {
		return domain.Page[domain.CartItemOption]{}, fmt.Errorf("%w: cart item", ErrNotFound)
	}
	if _, err := s.loadCart(ctx, actor, item.CartID, policy.OpCartRead); err != nil {
		return domain.Page[domain.CartItemOption]{}, err
	}
	result, err := s.options.List(ctx, item.ID, repositories.CartItemOptionFilter{OptionGroupID: trimmed(query.OptionGroupID)}, page)
	if err != nil {
		return domain.Page[domain.CartItemOption]{}, mapRepositoryError(err, "cart item options")
	}
	return result, nil
}

func (s *cartService) loadCart(ctx context.Context, actor domain.Actor, cartID string, op policy.Operation) (domain.Cart, error) {
	if actor.IsZero() {
		return domain.Cart{}, ErrUnauthenticated
	}
	cart, err := s.carts.FindByID(ctx, trimmed(cartID))
	if err != nil {
		return domain.Cart{}, mapRepositoryError(err, "cart")
	}
	if err := authorize(actor, op, policy.Refs{GuestID: cart.GuestID, MemberID: cart.MemberID}); err != nil {
		return domain.Cart{}, err
	}
	return cart, nil
}

// loadActiveCart loads the cart for mutation. Ordered and abandoned carts reject every mutation.
func (s *cartService) loadActiveCart(ctx context.Context, actor domain.Actor, cartID string) (domain.Cart, error) {
	cart, err := s.loadCart(ctx, actor, cartID, policy.OpCartWrite)
	if err != nil {
		return domain.Cart{}, err
	}
	if cart.Status != domain.CartStatusActive {
		return domain.Cart{}, fmt.Errorf("%w: cart is %s", ErrInvalidState, cart.Status)
	}
	return cart, nil
}

// loadPendingItem resolves the line through its cart. An empty cartID means "the line's own cart".
func (s *cartService) loadPendingItem(ctx context.Context, actor domain.Actor, cartID, itemID string) (domain.Cart, domain.CartItem, error) {
	if actor.IsZero() {
		return domain.Cart{}, domain.CartItem{}, ErrUnauthenticated
	}
	item, err := s.items.FindByID(ctx, trimmed(itemID))
	if err != nil {
		return domain.Cart{}, domain.CartItem{}, mapRepositoryError(err, "cart item")
	}
	cartID = trimmed(cartID)
	if cartID != "" && item.CartID != cartID {
		return domain.Cart{}, domain.CartItem{}, fmt.Errorf("%w: cart item", ErrNotFound)
	}
	cart, err := s.loadActiveCart(ctx, actor, item.CartID)
	if err != nil {
		return domain.Cart{}, domain.CartItem{}, err
	}
	if item.Status != domain.CartItemStatusPending {
		return domain.Cart{}, domain.CartItem{}, fmt.Errorf("%w: cart item is %s", ErrInvalidState, item.Status)
	}
	return cart, item, nil
}

func (s *cartService) loadOptionRecord(ctx context.Context, actor domain.Actor, cartID, itemID, optionRecordID string) (domain.Cart, domain.CartItemOption, error) {
	cart, item, err := s.loadPendingItem(ctx, actor, cartID, itemID)
	if err != nil {
		return domain.Cart{}, domain.CartItemOption{}, err
	}
	option, err := s.options.FindByID(ctx, trimmed(optionRecordID))
	if err != nil {
		return domain.Cart{}, domain.CartItemOption{}, mapRepositoryError(err, "cart item option")
	}
	if option.CartItemID != item.ID {
		return domain.Cart{}, domain.CartItemOption{}, fmt.Errorf("%w: cart item option", ErrNotFound)
	}
	return cart, option, nil
}

// touch records cart activity so the stale sweep measures idleness from the last line change.
func (s *cartService) touch(ctx context.Context, cart domain.Cart) error {
	cart.UpdatedAt = s.clock()
	cart.Version++
	return mapRepositoryError(s.carts.Update(ctx, cart), "cart")
}

func (s *cartService) abandon(cart domain.Cart) domain.Cart {
	now := s.clock()
	cart.Status = domain.CartStatusAbandoned
	cart.AbandonedAt = &now
	cart.UpdatedAt = now
	cart.Version++
	return cart
}

func validateCartLine(quantity int, negativePrice bool, status domain.CartItemStatus) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidArgument)
	}
	if negativePrice {
		return fmt.Errorf("%w: unit price must not be negative", ErrInvalidArgument)
	}
	if !status.Valid() || status == domain.CartItemStatusRemoved {
		return fmt.Errorf("%w: cart item status %q is not assignable", ErrInvalidArgument, status)
	}
	return nil
}
