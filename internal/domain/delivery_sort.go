package domain

import (
	"slices"
	"time"
)

// DefaultDeliverySort orders deliveries newest first.
var DefaultDeliverySort = DeliverySort{Field: DeliverySortCreatedAt, Direction: SortDesc}

// Normalize fills unset sort parts with the defaults.
func (s DeliverySort) Normalize() DeliverySort {
	if s.Field == "" {
		s.Field = DefaultDeliverySort.Field
	}
	if s.Direction == "" {
		s.Direction = DefaultDeliverySort.Direction
	}
	return s
}

// SortKey returns the timestamp a delivery is ordered by for the given field. Nil means unset.
func (d Delivery) SortKey(field DeliverySortField) *time.Time {
	switch field {
	case DeliverySortUpdatedAt:
		return &d.UpdatedAt
	case DeliverySortExpectedDeliveryDate:
		return d.ExpectedDeliveryDate
	case DeliverySortStartTime:
		return d.StartTime
	case DeliverySortEndTime:
		return d.EndTime
	default:
		return &d.CreatedAt
	}
}

// SortDeliveries orders deliveries in place. Unset timestamps sort last in both directions and ties fall back to id.
func SortDeliveries(items []Delivery, sort DeliverySort) {
	sort = sort.Normalize()
	slices.SortStableFunc(items, func(a, b Delivery) int {
		ka, kb := a.SortKey(sort.Field), b.SortKey(sort.Field)
		switch {
		case ka == nil && kb == nil:
		case ka == nil:
			return 1
		case kb == nil:
			return -1
		default:
			if c := ka.Compare(*kb); c != 0 {
				if sort.Direction == SortDesc {
					return -c
				}
				return c
			}
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
