package memory

import (
	"context"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

type catalogRepository struct{ store *store }

func (r catalogRepository) FindSale(ctx context.Context, saleID string) (domain.Sale, error) {
	return lookup(ctx, r.store, func(s *state) (domain.Sale, error) { return s.sales.get("get", saleID) })
}

func (r catalogRepository) FindSnapshot(ctx context.Context, snapshotID string) (domain.SaleSnapshot, error) {
	return lookup(ctx, r.store, func(s *state) (domain.SaleSnapshot, error) { return s.snapshots.get("get", snapshotID) })
}

func (r catalogRepository) FindOptionGroup(ctx context.Context, groupID string) (domain.OptionGroup, error) {
	return lookup(ctx, r.store, func(s *state) (domain.OptionGroup, error) { return s.optionGroups.get("get", groupID) })
}

func (r catalogRepository) FindOption(ctx context.Context, optionID string) (domain.Option, error) {
	return lookup(ctx, r.store, func(s *state) (domain.Option, error) { return s.options.get("get", optionID) })
}

type channelRepository struct{ store *store }

func (r channelRepository) FindChannel(ctx context.Context, channelID string) (domain.Channel, error) {
	return lookup(ctx, r.store, func(s *state) (domain.Channel, error) { return s.channels.get("get", channelID) })
}

func (r channelRepository) FindSection(ctx context.Context, sectionID string) (domain.Section, error) {
	return lookup(ctx, r.store, func(s *state) (domain.Section, error) { return s.sections.get("get", sectionID) })
}

func lookup[T any](ctx context.Context, st *store, fn func(*state) (T, error)) (T, error) {
	var out T
	err := st.read(ctx, "catalog.get", func(s *state) error {
		var err error
		out, err = fn(s)
		return err
	})
	return out, err
}

// SeedChannel stores or replaces a sales channel.
func (r *Registry) SeedChannel(channel domain.Channel) {
	seed(r.store, func(s *state) *table[channelRow] { return s.channels }, channel.ID, channel)
}

// SeedSection stores or replaces a channel section.
func (r *Registry) SeedSection(section domain.Section) {
	seed(r.store, func(s *state) *table[sectionRow] { return s.sections }, section.ID, section)
}

// SeedSale stores or replaces a sale listing.
func (r *Registry) SeedSale(sale domain.Sale) {
	seed(r.store, func(s *state) *table[saleRow] { return s.sales }, sale.ID, sale)
}

// SeedSnapshot stores or replaces a sale snapshot.
func (r *Registry) SeedSnapshot(snapshot domain.SaleSnapshot) {
	seed(r.store, func(s *state) *table[snapshotRow] { return s.snapshots }, snapshot.ID, snapshot)
}

// SeedOptionGroup stores or replaces an option group.
func (r *Registry) SeedOptionGroup(group domain.OptionGroup) {
	seed(r.store, func(s *state) *table[optionGroupRow] { return s.optionGroups }, group.ID, group)
}

// SeedOption stores or replaces an option.
func (r *Registry) SeedOption(option domain.Option) {
	seed(r.store, func(s *state) *table[optionRow] { return s.options }, option.ID, option)
}

func seed[T any](st *store, pick func(*state) *table[T], id string, value T) {
	_ = st.write(context.Background(), "seed", func(s *state) error {
		t := pick(s)
		if _, exists := t.rows[id]; exists {
			return t.put(id, value)
		}
		return t.insert(id, value)
	})
}
