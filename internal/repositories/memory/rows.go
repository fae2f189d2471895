package memory

import (
	"slices"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

type (
	cartRow           = domain.Cart
	cartItemRow       = domain.CartItem
	cartItemOptionRow = domain.CartItemOption
	orderRow          = domain.Order
	orderItemRow      = domain.OrderItem
	paymentRow        = domain.Payment
	deliveryRow       = domain.Delivery
	channelRow        = domain.Channel
	sectionRow        = domain.Section
	saleRow           = domain.Sale
	snapshotRow       = domain.SaleSnapshot
	optionGroupRow    = domain.OptionGroup
	optionRow         = domain.Option
)

func cloneOrder(order domain.Order) domain.Order {
	order.SellerIDs = slices.Clone(order.SellerIDs)
	return order
}
