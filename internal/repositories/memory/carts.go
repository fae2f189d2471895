package memory

import (
	"context"
	"time"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

type cartRepository struct{ store *store }

func (r cartRepository) Insert(ctx context.Context, cart domain.Cart) error {
	return r.store.write(ctx, "carts.insert", func(s *state) error {
		return s.carts.insert(cart.ID, cart)
	})
}

func (r cartRepository) Update(ctx context.Context, cart domain.Cart) error {
	return r.store.write(ctx, "carts.update", func(s *state) error {
		return s.carts.put(cart.ID, cart)
	})
}

func (r cartRepository) FindByID(ctx context.Context, cartID string) (domain.Cart, error) {
	var cart domain.Cart
	err := r.store.read(ctx, "carts.get", func(s *state) error {
		var err error
		cart, err = s.carts.get("get", cartID)
		return err
	})
	return cart, err
}

func (r cartRepository) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Cart, error) {
	var carts []domain.Cart
	err := r.store.read(ctx, "carts.list_stale", func(s *state) error {
		carts = s.carts.filter(func(c domain.Cart) bool {
			return c.Status == domain.CartStatusActive && c.UpdatedAt.Before(updatedBefore)
		})
		return nil
	})
	if limit > 0 && len(carts) > limit {
		carts = carts[:limit]
	}
	return carts, err
}

type cartItemRepository struct{ store *store }

func (r cartItemRepository) Insert(ctx context.Context, item domain.CartItem) error {
	return r.store.write(ctx, "cartItems.insert", func(s *state) error {
		return s.cartItems.insert(item.ID, item)
	})
}

func (r cartItemRepository) Update(ctx context.Context, item domain.CartItem) error {
	return r.store.write(ctx, "cartItems.update", func(s *state) error {
		if _, err := liveCartItem(s, "update", item.ID); err != nil {
			return err
		}
		return s.cartItems.put(item.ID, item)
	})
}

func (r cartItemRepository) SoftDelete(ctx context.Context, itemID string, deletedAt time.Time) error {
	return r.store.write(ctx, "cartItems.delete", func(s *state) error {
		item, err := liveCartItem(s, "delete", itemID)
		if err != nil {
			return err
		}
		if domain.DeletePolicyFor(domain.EntityCartItem) == domain.DeleteHard {
			return s.cartItems.remove(itemID)
		}
		item.DeletedAt = &deletedAt
		item.Status = domain.CartItemStatusRemoved
		item.UpdatedAt = deletedAt
		item.Version++
		return s.cartItems.put(itemID, item)
	})
}

func (r cartItemRepository) FindByID(ctx context.Context, itemID string) (domain.CartItem, error) {
	var item domain.CartItem
	err := r.store.read(ctx, "cartItems.get", func(s *state) error {
		var err error
		item, err = liveCartItem(s, "get", itemID)
		return err
	})
	return item, err
}

func (r cartItemRepository) List(ctx context.Context, cartID string, filter repositories.CartItemFilter, page domain.PageRequest) (domain.Page[domain.CartItem], error) {
	var items []domain.CartItem
	err := r.store.read(ctx, "cartItems.list", func(s *state) error {
		items = s.cartItems.filter(func(item domain.CartItem) bool {
			if item.CartID != cartID || item.DeletedAt != nil {
				return false
			}
			return filter.Status == nil || item.Status == *filter.Status
		})
		return nil
	})
	if err != nil {
		return domain.Page[domain.CartItem]{}, err
	}
	window, total := domain.Window(items, page)
	return domain.NewPage(window, total, page), nil
}

func (r cartItemRepository) ListByCart(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	var items []domain.CartItem
	err := r.store.read(ctx, "cartItems.list", func(s *state) error {
		items = s.cartItems.filter(func(item domain.CartItem) bool {
			return item.CartID == cartID && item.DeletedAt == nil
		})
		return nil
	})
	return items, err
}

func liveCartItem(s *state, op, id string) (domain.CartItem, error) {
	item, err := s.cartItems.get(op, id)
	if err != nil {
		return item, err
	}
	if item.DeletedAt != nil {
		return domain.CartItem{}, notFound("cartItems."+op, id)
	}
	return item, nil
}

type cartItemOptionRepository struct{ store *store }

func (r cartItemOptionRepository) Insert(ctx context.Context, option domain.CartItemOption) error {
	return r.store.write(ctx, "cartItemOptions.insert", func(s *state) error {
		return s.cartItemOptions.insert(option.ID, option)
	})
}

func (r cartItemOptionRepository) Update(ctx context.Context, option domain.CartItemOption) error {
	return r.store.write(ctx, "cartItemOptions.update", func(s *state) error {
		if _, err := liveCartItemOption(s, "update", option.ID); err != nil {
			return err
		}
		return s.cartItemOptions.put(option.ID, option)
	})
}

func (r cartItemOptionRepository) SoftDelete(ctx context.Context, optionID string, deletedAt time.Time) error {
	return r.store.write(ctx, "cartItemOptions.delete", func(s *state) error {
		option, err := liveCartItemOption(s, "delete", optionID)
		if err != nil {
			return err
		}
		if domain.DeletePolicyFor(domain.EntityCartItemOption) == domain.DeleteHard {
			return s.cartItemOptions.remove(optionID)
		}
		option.DeletedAt = &deletedAt
		option.UpdatedAt = deletedAt
		option.Version++
		return s.cartItemOptions.put(optionID, option)
	})
}

func (r cartItemOptionRepository) FindByID(ctx context.Context, optionID string) (domain.CartItemOption, error) {
	var option domain.CartItemOption
	err := r.store.read(ctx, "cartItemOptions.get", func(s *state) error {
		var err error
		option, err = liveCartItemOption(s, "get", optionID)
		return err
	})
	return option, err
}

func (r cartItemOptionRepository) List(ctx context.Context, cartItemID string, filter repositories.CartItemOptionFilter, page domain.PageRequest) (domain.Page[domain.CartItemOption], error) {
	var options []domain.CartItemOption
	err := r.store.read(ctx, "cartItemOptions.list", func(s *state) error {
		options = s.cartItemOptions.filter(func(o domain.CartItemOption) bool {
			if o.CartItemID != cartItemID || o.DeletedAt != nil {
				return false
			}
			return filter.OptionGroupID == "" || o.OptionGroupID == filter.OptionGroupID
		})
		return nil
	})
	if err != nil {
		return domain.Page[domain.CartItemOption]{}, err
	}
	window, total := domain.Window(options, page)
	return domain.NewPage(window, total, page), nil
}

func liveCartItemOption(s *state, op, id string) (domain.CartItemOption, error) {
	option, err := s.cartItemOptions.get(op, id)
	if err != nil {
		return option, err
	}
	if option.DeletedAt != nil {
		return domain.CartItemOption{}, notFound("cartItemOptions."+op, id)
	}
	return option, nil
}
