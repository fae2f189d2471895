package services

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories"
)

// CatalogServiceDeps bundles collaborators required to construct the catalog resolver.
type CatalogServiceDeps struct {
	Catalog repositories.CatalogRepository
}

type catalogService struct {
	catalog repositories.CatalogRepository
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs the catalog reference resolver. Lookups are never cached.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog service: catalog repository is required")
	}
	return &catalogService{catalog: deps.Catalog}, nil
}

// ResolveSaleSnapshot accepts a sale id (resolving its current snapshot) or a snapshot id.
func (s *catalogService) ResolveSaleSnapshot(ctx context.Context, ref string) (domain.SnapshotRef, error) {
	ref = trimmed(ref)
	if ref == "" {
		return domain.SnapshotRef{}, fmt.Errorf("%w: snapshot reference is required", ErrInvalidArgument)
	}

	sale, err := s.catalog.FindSale(ctx, ref)
	switch {
	case err == nil:
		if !sale.Active {
			return domain.SnapshotRef{}, fmt.Errorf("%w: sale %s is not active", ErrNotFound, sale.ID)
		}
		snapshot, err := s.catalog.FindSnapshot(ctx, sale.SnapshotID)
		if err != nil {
			return domain.SnapshotRef{}, mapRepositoryError(err, "sale snapshot")
		}
		return snapshotRef(sale, snapshot), nil
	case !isNotFound(err):
		return domain.SnapshotRef{}, mapRepositoryError(err, "sale")
	}

	snapshot, err := s.catalog.FindSnapshot(ctx, ref)
	if err != nil {
		return domain.SnapshotRef{}, mapRepositoryError(err, "sale snapshot")
	}
	sale, err = s.catalog.FindSale(ctx, snapshot.SaleID)
	if err != nil {
		return domain.SnapshotRef{}, mapRepositoryError(err, "sale")
	}
	if !sale.Active {
		return domain.SnapshotRef{}, fmt.Errorf("%w: sale %s is not active", ErrNotFound, sale.ID)
	}
	return snapshotRef(sale, snapshot), nil
}

// ResolveOption verifies the option exists, is active and belongs to the group.
func (s *catalogService) ResolveOption(ctx context.Context, groupID, optionID string) (domain.OptionRef, error) {
	groupID, optionID = trimmed(groupID), trimmed(optionID)
	if groupID == "" || optionID == "" {
		return domain.OptionRef{}, fmt.Errorf("%w: option group and option are required", ErrInvalidArgument)
	}

	group, err := s.catalog.FindOptionGroup(ctx, groupID)
	if err != nil {
		return domain.OptionRef{}, mapRepositoryError(err, "option group")
	}
	if !group.Active {
		return domain.OptionRef{}, fmt.Errorf("%w: option group %s is not active", ErrNotFound, groupID)
	}
	option, err := s.catalog.FindOption(ctx, optionID)
	if err != nil {
		return domain.OptionRef{}, mapRepositoryError(err, "option")
	}
	if !option.Active || option.GroupID != group.ID {
		return domain.OptionRef{}, fmt.Errorf("%w: option %s is not available in group %s", ErrNotFound, optionID, groupID)
	}
	return domain.OptionRef{GroupID: group.ID, OptionID: option.ID, Name: option.Name}, nil
}

func snapshotRef(sale domain.Sale, snapshot domain.SaleSnapshot) domain.SnapshotRef {
	title := snapshot.Title
	if title == "" {
		title = sale.Title
	}
	return domain.SnapshotRef{
		SnapshotID: snapshot.ID,
		SaleID:     sale.ID,
		SellerID:   sale.SellerID,
		Title:      title,
		UnitPrice:  snapshot.UnitPrice,
	}
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
