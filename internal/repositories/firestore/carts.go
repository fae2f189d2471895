package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	pfirestore "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/firestore"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

// CartRepository persists cart headers within Firestore.
type CartRepository struct {
	base *pfirestore.Collection[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{base: pfirestore.NewCollection[cartDocument](provider, cartCollection)}, nil
}

func (r *CartRepository) Insert(ctx context.Context, cart domain.Cart) error {
	return r.base.Create(ctx, cart.ID, newCartDocument(cart))
}

func (r *CartRepository) Update(ctx context.Context, cart domain.Cart) error {
	return r.base.Set(ctx, cart.ID, newCartDocument(cart))
}

func (r *CartRepository) FindByID(ctx context.Context, cartID string) (domain.Cart, error) {
	doc, err := r.base.Get(ctx, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// ListStale returns active carts untouched since updatedBefore, oldest first.
func (r *CartRepository) ListStale(ctx context.Context, updatedBefore time.Time, limit int) ([]domain.Cart, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.Where("status", "==", string(domain.CartStatusActive)).
			Where("updatedAt", "<", updatedBefore.UTC()).
			OrderBy("updatedAt", firestore.Asc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	return convertAll(docs, infallible(cartDocument.toDomain))
}

// CartItemRepository persists cart lines. Soft-deleted lines keep their document with deletedAt set.
type CartItemRepository struct {
	base *pfirestore.Collection[cartItemDocument]
}

// NewCartItemRepository constructs a Firestore-backed cart item repository.
func NewCartItemRepository(provider *pfirestore.Provider) (*CartItemRepository, error) {
	if provider == nil {
		return nil, errors.New("cart item repository requires firestore provider")
	}
	return &CartItemRepository{base: pfirestore.NewCollection[cartItemDocument](provider, cartItemCollection)}, nil
}

func (r *CartItemRepository) Insert(ctx context.Context, item domain.CartItem) error {
	return r.base.Create(ctx, item.ID, newCartItemDocument(item))
}

func (r *CartItemRepository) Update(ctx context.Context, item domain.CartItem) error {
	return r.base.Set(ctx, item.ID, newCartItemDocument(item))
}

func (r *CartItemRepository) SoftDelete(ctx context.Context, itemID string, deletedAt time.Time) error {
	item, err := r.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	if domain.DeletePolicyFor(domain.EntityCartItem) == domain.DeleteHard {
		return r.base.Delete(ctx, itemID)
	}
	return r.base.Update(ctx, itemID, []firestore.Update{
		{Path: "deletedAt", Value: deletedAt.UTC()},
		{Path: "updatedAt", Value: deletedAt.UTC()},
		{Path: "status", Value: string(domain.CartItemStatusRemoved)},
		{Path: "version", Value: item.Version + 1},
	})
}

func (r *CartItemRepository) FindByID(ctx context.Context, itemID string) (domain.CartItem, error) {
	doc, err := r.base.Get(ctx, itemID)
	if err != nil {
		return domain.CartItem{}, err
	}
	if doc.Data.DeletedAt != nil {
		return domain.CartItem{}, softDeleted(cartItemCollection, itemID)
	}
	return doc.Data.toDomain(doc.ID)
}

func (r *CartItemRepository) List(ctx context.Context, cartID string, filter repositories.CartItemFilter, page domain.PageRequest) (domain.Page[domain.CartItem], error) {
	return listPage(ctx, r.base, func(q firestore.Query) firestore.Query {
		q = q.Where("cartId", "==", cartID).Where("deletedAt", "==", nil)
		if filter.Status != nil {
			q = q.Where("status", "==", string(*filter.Status))
		}
		return q
	}, page, fallible(cartItemDocument.toDomain))
}

func (r *CartItemRepository) ListByCart(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	return listAll(ctx, r.base, func(q firestore.Query) firestore.Query {
		return q.Where("cartId", "==", cartID).Where("deletedAt", "==", nil)
	}, fallible(cartItemDocument.toDomain))
}

// CartItemOptionRepository persists option choices attached to cart lines.
type CartItemOptionRepository struct {
	base *pfirestore.Collection[cartItemOptionDocument]
}

// NewCartItemOptionRepository constructs a Firestore-backed cart item option repository.
func NewCartItemOptionRepository(provider *pfirestore.Provider) (*CartItemOptionRepository, error) {
	if provider == nil {
		return nil, errors.New("cart item option repository requires firestore provider")
	}
	return &CartItemOptionRepository{base: pfirestore.NewCollection[cartItemOptionDocument](provider, cartItemOptionCollection)}, nil
}

func (r *CartItemOptionRepository) Insert(ctx context.Context, option domain.CartItemOption) error {
	return r.base.Create(ctx, option.ID, newCartItemOptionDocument(option))
}

func (r *CartItemOptionRepository) Update(ctx context.Context, option domain.CartItemOption) error {
	return r.base.Set(ctx, option.ID, newCartItemOptionDocument(option))
}

func (r *CartItemOptionRepository) SoftDelete(ctx context.Context, optionID string, deletedAt time.Time) error {
	option, err := r.FindByID(ctx, optionID)
	if err != nil {
		return err
	}
	if domain.DeletePolicyFor(domain.EntityCartItemOption) == domain.DeleteHard {
		return r.base.Delete(ctx, optionID)
	}
	return r.base.Update(ctx, optionID, []firestore.Update{
		{Path: "deletedAt", Value: deletedAt.UTC()},
		{Path: "updatedAt", Value: deletedAt.UTC()},
		{Path: "version", Value: option.Version + 1},
	})
}

func (r *CartItemOptionRepository) FindByID(ctx context.Context, optionID string) (domain.CartItemOption, error) {
	doc, err := r.base.Get(ctx, optionID)
	if err != nil {
		return domain.CartItemOption{}, err
	}
	if doc.Data.DeletedAt != nil {
		return domain.CartItemOption{}, softDeleted(cartItemOptionCollection, optionID)
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *CartItemOptionRepository) List(ctx context.Context, cartItemID string, filter repositories.CartItemOptionFilter, page domain.PageRequest) (domain.Page[domain.CartItemOption], error) {
	return listPage(ctx, r.base, func(q firestore.Query) firestore.Query {
		q = q.Where("cartItemId", "==", cartItemID).Where("deletedAt", "==", nil)
		if filter.OptionGroupID != "" {
			q = q.Where("optionGroupId", "==", filter.OptionGroupID)
		}
		return q
	}, page, infallible(cartItemOptionDocument.toDomain))
}
