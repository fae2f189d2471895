package firestore

import (
	"context"
	"errors"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	pfirestore "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/platform/firestore"
)

// CatalogRepository reads sales, snapshots and the option taxonomy maintained by the catalog service.
type CatalogRepository struct {
	sales        *pfirestore.Collection[saleDocument]
	snapshots    *pfirestore.Collection[saleSnapshotDocument]
	optionGroups *pfirestore.Collection[optionGroupDocument]
	options      *pfirestore.Collection[optionDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalog reader.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		sales:        pfirestore.NewCollection[saleDocument](provider, saleCollection),
		snapshots:    pfirestore.NewCollection[saleSnapshotDocument](provider, saleSnapshotCollection),
		optionGroups: pfirestore.NewCollection[optionGroupDocument](provider, optionGroupCollection),
		options:      pfirestore.NewCollection[optionDocument](provider, optionCollection),
	}, nil
}

func (r *CatalogRepository) FindSale(ctx context.Context, saleID string) (domain.Sale, error) {
	doc, err := r.sales.Get(ctx, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	return domain.Sale{
		ID:         doc.ID,
		SellerID:   doc.Data.SellerID,
		ChannelID:  doc.Data.ChannelID,
		Title:      doc.Data.Title,
		SnapshotID: doc.Data.SnapshotID,
		Active:     doc.Data.Active,
	}, nil
}

func (r *CatalogRepository) FindSnapshot(ctx context.Context, snapshotID string) (domain.SaleSnapshot, error) {
	doc, err := r.snapshots.Get(ctx, snapshotID)
	if err != nil {
		return domain.SaleSnapshot{}, err
	}
	price, err := decodeMoney("unitPrice", doc.Data.UnitPrice)
	if err != nil {
		return domain.SaleSnapshot{}, err
	}
	return domain.SaleSnapshot{
		ID:        doc.ID,
		SaleID:    doc.Data.SaleID,
		Title:     doc.Data.Title,
		UnitPrice: price,
		CreatedAt: doc.Data.CreatedAt,
	}, nil
}

func (r *CatalogRepository) FindOptionGroup(ctx context.Context, groupID string) (domain.OptionGroup, error) {
	doc, err := r.optionGroups.Get(ctx, groupID)
	if err != nil {
		return domain.OptionGroup{}, err
	}
	return domain.OptionGroup{ID: doc.ID, Name: doc.Data.Name, Active: doc.Data.Active}, nil
}

func (r *CatalogRepository) FindOption(ctx context.Context, optionID string) (domain.Option, error) {
	doc, err := r.options.Get(ctx, optionID)
	if err != nil {
		return domain.Option{}, err
	}
	return domain.Option{ID: doc.ID, GroupID: doc.Data.GroupID, Name: doc.Data.Name, Active: doc.Data.Active}, nil
}

// ChannelRepository reads sales channels and their sections.
type ChannelRepository struct {
	channels *pfirestore.Collection[channelDocument]
	sections *pfirestore.Collection[sectionDocument]
}

// NewChannelRepository constructs a Firestore-backed channel reader.
func NewChannelRepository(provider *pfirestore.Provider) (*ChannelRepository, error) {
	if provider == nil {
		return nil, errors.New("channel repository requires firestore provider")
	}
	return &ChannelRepository{
		channels: pfirestore.NewCollection[channelDocument](provider, channelCollection),
		sections: pfirestore.NewCollection[sectionDocument](provider, sectionCollection),
	}, nil
}

func (r *ChannelRepository) FindChannel(ctx context.Context, channelID string) (domain.Channel, error) {
	doc, err := r.channels.Get(ctx, channelID)
	if err != nil {
		return domain.Channel{}, err
	}
	return domain.Channel{ID: doc.ID, Code: doc.Data.Code, Name: doc.Data.Name, Active: doc.Data.Active}, nil
}

func (r *ChannelRepository) FindSection(ctx context.Context, sectionID string) (domain.Section, error) {
	doc, err := r.sections.Get(ctx, sectionID)
	if err != nil {
		return domain.Section{}, err
	}
	return domain.Section{ID: doc.ID, ChannelID: doc.Data.ChannelID, Name: doc.Data.Name, Active: doc.Data.Active}, nil
}
