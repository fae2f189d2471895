package domain

// DeletePolicy states how an entity is removed.
type DeletePolicy string

const (
	// DeleteSoft stamps a deletion marker and keeps the record for audit.
	DeleteSoft DeletePolicy = "soft"
	// DeleteHard removes the record from storage.
	DeleteHard DeletePolicy = "hard"
)

// EntityKind names the workflow entities that can be deleted.
type EntityKind string

const (
	EntityCartItem       EntityKind = "cart_item"
	EntityCartItemOption EntityKind = "cart_item_option"
	EntityPayment        EntityKind = "payment"
	EntityDelivery       EntityKind = "delivery"
)

var deletePolicies = map[EntityKind]DeletePolicy{
	EntityCartItem:       DeleteSoft,
	EntityCartItemOption: DeleteSoft,
	EntityPayment:        DeleteHard,
	EntityDelivery:       DeleteHard,
}

// DeletePolicyFor returns the delete policy of the entity kind. Unknown kinds are never deletable and
// report an empty policy.
func DeletePolicyFor(kind EntityKind) DeletePolicy {
	return deletePolicies[kind]
}
