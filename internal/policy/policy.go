// Package policy decides whether an actor may perform a workflow operation on a resource. Decisions are
// based on the actor's role and on the owner references of the resource, never on resource attributes.
package policy

import (
	"slices"
	"strings"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

// Operation names an action guarded by the policy.
type Operation string

const (
	OpCartCreate      Operation = "cart.create"
	OpCartRead        Operation = "cart.read"
	OpCartWrite       Operation = "cart.write"
	OpOrderCreate     Operation = "order.create"
	OpOrderRead       Operation = "order.read"
	OpOrderWrite      Operation = "order.write"
	OpOrderCancel     Operation = "order.cancel"
	OpOrderTransition Operation = "order.transition"
	OpLedgerRead      Operation = "ledger.read"
	OpLedgerWrite     Operation = "ledger.write"
)

// operationRoles maps each operation to the roles that may attempt it. Relationship checks still apply.
var operationRoles = map[Operation][]domain.Role{
	OpCartCreate:      {domain.RoleGuest, domain.RoleMember},
	OpCartRead:        {domain.RoleGuest, domain.RoleMember},
	OpCartWrite:       {domain.RoleGuest, domain.RoleMember},
	OpOrderCreate:     {domain.RoleMember},
	OpOrderRead:       {domain.RoleMember, domain.RoleSeller},
	OpOrderWrite:      {domain.RoleSeller},
	OpOrderCancel:     {domain.RoleMember, domain.RoleSeller},
	OpOrderTransition: {domain.RoleSeller},
	OpLedgerRead:      {domain.RoleMember, domain.RoleSeller},
	OpLedgerWrite:     {domain.RoleSeller},
}

// Refs lists the owner relationships of the resource being accessed.
type Refs struct {
	GuestID   string
	MemberID  string
	SellerIDs []string
}

// Allow reports whether actor may perform op on a resource with the given owner references.
// Admins are always allowed.
func Allow(actor domain.Actor, op Operation, refs Refs) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	id := strings.TrimSpace(actor.ID)
	if id == "" {
		return false
	}
	if !slices.Contains(operationRoles[op], actor.Role) {
		return false
	}

	switch actor.Role {
	case domain.RoleGuest:
		return refs.GuestID != "" && refs.GuestID == id
	case domain.RoleMember:
		return refs.MemberID != "" && refs.MemberID == id
	case domain.RoleSeller:
		return slices.Contains(refs.SellerIDs, id)
	default:
		return false
	}
}

// RolesFor returns the non-admin roles that may attempt the operation.
func RolesFor(op Operation) []domain.Role {
	return slices.Clone(operationRoles[op])
}
