package domain

import "github.com/shopspring/decimal"

// LineTotal returns price multiplied by quantity.
func LineTotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

// SumOrderItems totals price*quantity over the order lines, skipping cancelled lines.
func SumOrderItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.Status == OrderItemStatusCancelled {
			continue
		}
		total = total.Add(LineTotal(item.Price, item.Quantity))
	}
	return total
}
