package domain

import (
	"strings"

	dErrors "donation-ledger/pkg/domain-errors"
)

// Role is the coarse permission class of an authenticated actor.
type Role string

const (
	RoleDonor      Role = "Donor"
	RoleOperator   Role = "Operator"
	RoleAccountant Role = "Accountant"
	RoleAuditor    Role = "Auditor"
	RoleAdmin      Role = "Admin"
)

var knownRoles = map[Role]struct{}{
	RoleDonor:      {},
	RoleOperator:   {},
	RoleAccountant: {},
	RoleAuditor:    {},
	RoleAdmin:      {},
}

// ParseRole accepts the canonical role names case-insensitively.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	for r := range knownRoles {
		if strings.EqualFold(string(r), s) {
			return r, nil
		}
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "unknown role: "+s)
}

func (r Role) IsValid() bool {
	_, ok := knownRoles[r]
	return ok
}

func (r Role) String() string { return string(r) }

// ActorID is the external identity of whoever invokes the ledger. Credentials
// live outside this service, so the id is opaque.
type ActorID string

func (id ActorID) String() string { return string(id) }

func (id ActorID) IsNil() bool { return id == "" }

// Actor is the authenticated caller handed to the lifecycle engine.
type Actor struct {
	ID   ActorID `json:"id"`
	Name string  `json:"name"`
	Role Role    `json:"role"`
}

// IsZero reports whether no actor was authenticated.
func (a Actor) IsZero() bool {
	return a.ID.IsNil()
}
