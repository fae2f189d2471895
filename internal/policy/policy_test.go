package policy

import (
	"testing"

	domain "github.com/wrtnlabs/autobe-example-shopping-openai-gpt-4.1-mini-sub000/internal/domain"
)

func TestAllowMatrix(t *testing.T) {
	t.Parallel()

	admin := domain.Actor{ID: "a-1", Role: domain.RoleAdmin}
	member := domain.Actor{ID: "m-1", Role: domain.RoleMember}
	otherMember := domain.Actor{ID: "m-2", Role: domain.RoleMember}
	seller := domain.Actor{ID: "s-1", Role: domain.RoleSeller}
	otherSeller := domain.Actor{ID: "s-2", Role: domain.RoleSeller}
	guest := domain.Actor{ID: "g-1", Role: domain.RoleGuest}

	orderRefs := Refs{MemberID: "m-1", SellerIDs: []string{"s-1"}}
	guestCart := Refs{GuestID: "g-1"}
	memberCart := Refs{MemberID: "m-1"}

	tests := []struct {
		name  string
		actor domain.Actor
		op    Operation
		refs  Refs
		want  bool
	}{
		{name: "admin reads any order", actor: admin, op: OpOrderRead, refs: orderRefs, want: true},
		{name: "admin writes ledger", actor: admin, op: OpLedgerWrite, refs: Refs{}, want: true},
		{name: "placing member reads order", actor: member, op: OpOrderRead, refs: orderRefs, want: true},
		{name: "other member cannot read order", actor: otherMember, op: OpOrderRead, refs: orderRefs, want: false},
		{name: "linked seller reads order", actor: seller, op: OpOrderRead, refs: orderRefs, want: true},
		{name: "unlinked seller cannot read order", actor: otherSeller, op: OpOrderRead, refs: orderRefs, want: false},
		{name: "member reads ledger", actor: member, op: OpLedgerRead, refs: orderRefs, want: true},
		{name: "member cannot write ledger", actor: member, op: OpLedgerWrite, refs: orderRefs, want: false},
		{name: "linked seller writes ledger", actor: seller, op: OpLedgerWrite, refs: orderRefs, want: true},
		{name: "unlinked seller cannot write ledger", actor: otherSeller, op: OpLedgerWrite, refs: orderRefs, want: false},
		{name: "guest owns cart", actor: guest, op: OpCartWrite, refs: guestCart, want: true},
		{name: "guest cannot touch member cart", actor: guest, op: OpCartRead, refs: memberCart, want: false},
		{name: "guest never reads orders", actor: guest, op: OpOrderRead, refs: Refs{GuestID: "g-1"}, want: false},
		{name: "guest never reads ledger", actor: guest, op: OpLedgerRead, refs: Refs{GuestID: "g-1"}, want: false},
		{name: "member owns cart", actor: member, op: OpCartWrite, refs: memberCart, want: true},
		{name: "seller has no cart access", actor: seller, op: OpCartRead, refs: Refs{SellerIDs: []string{"s-1"}}, want: false},
		{name: "member creates own order", actor: member, op: OpOrderCreate, refs: Refs{MemberID: "m-1"}, want: true},
		{name: "member cannot create order for others", actor: member, op: OpOrderCreate, refs: Refs{MemberID: "m-2"}, want: false},
		{name: "seller cannot transition unlinked order", actor: otherSeller, op: OpOrderTransition, refs: orderRefs, want: false},
		{name: "member cannot transition", actor: member, op: OpOrderTransition, refs: orderRefs, want: false},
		{name: "member cancels own order", actor: member, op: OpOrderCancel, refs: orderRefs, want: true},
		{name: "placing member cannot edit order lines", actor: member, op: OpOrderWrite, refs: orderRefs, want: false},
		{name: "linked seller edits order lines", actor: seller, op: OpOrderWrite, refs: orderRefs, want: true},
		{name: "unlinked seller cannot edit order lines", actor: otherSeller, op: OpOrderWrite, refs: orderRefs, want: false},
		{name: "empty actor id denied", actor: domain.Actor{Role: domain.RoleMember}, op: OpCartRead, refs: Refs{}, want: false},
		{name: "unknown role denied", actor: domain.Actor{ID: "x", Role: "robot"}, op: OpOrderRead, refs: Refs{MemberID: "x"}, want: false},
		{name: "unknown operation denied", actor: member, op: Operation("made.up"), refs: memberCart, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Allow(tc.actor, tc.op, tc.refs); got != tc.want {
				t.Fatalf("Allow(%v, %s) = %v, want %v", tc.actor, tc.op, got, tc.want)
			}
		})
	}
}

func TestRolesForReturnsCopy(t *testing.T) {
	roles := RolesFor(OpOrderRead)
	if len(roles) == 0 {
		t.Fatalf("expected roles for order read")
	}
	roles[0] = domain.RoleGuest
	if RolesFor(OpOrderRead)[0] == domain.RoleGuest {
		t.Fatalf("RolesFor must not expose the internal table")
	}
}
