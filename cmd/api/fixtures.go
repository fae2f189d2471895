package main

import (
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
	"github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/repositories/memory"
)

type fixtureSale struct {
	id       string
	sellerID string
	title    string
	price    int64
}

var fixtureSales = []fixtureSale{
	{id: "sale-desk-lamp", sellerID: "seller-demo", title: "Desk lamp", price: 12000},
	{id: "sale-notebook", sellerID: "seller-demo", title: "A5 notebook", price: 800},
	{id: "sale-mug", sellerID: "seller-kiln", title: "Stoneware mug", price: 2400},
}

// seedFixtures loads a small demo catalog for local runs against the memory store.
func seedFixtures(reg *memory.Registry, now time.Time) {
	reg.SeedChannel(domain.Channel{ID: "ch-main", Code: "MAIN", Name: "Main store", Active: true})
	reg.SeedSection(domain.Section{ID: "sec-stationery", ChannelID: "ch-main", Name: "Stationery", Active: true})

	for _, sale := range fixtureSales {
		snapshotID := "snap-" + sale.id
		reg.SeedSale(domain.Sale{
			ID:         sale.id,
			SellerID:   sale.sellerID,
			ChannelID:  "ch-main",
			Title:      sale.title,
			SnapshotID: snapshotID,
			Active:     true,
		})
		reg.SeedSnapshot(domain.SaleSnapshot{
			ID:        snapshotID,
			SaleID:    sale.id,
			Title:     sale.title,
			UnitPrice: decimal.NewFromInt(sale.price),
			CreatedAt: now,
		})
	}

	reg.SeedOptionGroup(domain.OptionGroup{ID: "grp-colour", Name: "Colour", Active: true})
	reg.SeedOption(domain.Option{ID: "opt-black", GroupID: "grp-colour", Name: "Black", Active: true})
	reg.SeedOption(domain.Option{ID: "opt-white", GroupID: "grp-colour", Name: "White", Active: true})
	reg.SeedOptionGroup(domain.OptionGroup{ID: "grp-wrap", Name: "Gift wrap", Active: true})
	reg.SeedOption(domain.Option{ID: "opt-wrap", GroupID: "grp-wrap", Name: "Wrapped", Active: true})
}
