// Package access holds the closed set of roles and the capability table that
// every service consults before mutating anything.
package access

import (
	"clubhub/internal/apperr"
)

// Role is one of the three account roles.
type Role string

const (
	RoleStudent     Role = "student"
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleStudent, RoleCoordinator, RoleAdmin:
		return r, nil
	}
	return "", apperr.Validation("unknown role %q", s)
}

// Capability names an operation gated by role.
type Capability string

const (
	JoinClub       Capability = "join_club"
	RegisterEvent  Capability = "register_event"
	CreateEvent    Capability = "create_event"
	ManageEvent    Capability = "manage_event"
	ModerateEvent  Capability = "moderate_event"
	CreateClub     Capability = "create_club"
	ManageClub     Capability = "manage_club"
	DeleteClub     Capability = "delete_club"
	AllocateBudget Capability = "allocate_budget"
	RecordExpense  Capability = "record_expense"
	ViewBudget     Capability = "view_budget"
	ListBudgets    Capability = "list_budgets"
	ManageUsers    Capability = "manage_users"
	ViewStats      Capability = "view_stats"
)

// Capabilities granted per role. Coordinator capabilities over a club are
// further scoped to the clubs they coordinate; see Identity.Coordinates.
var capabilities = map[Role]map[Capability]bool{
	RoleStudent: {
		JoinClub:      true,
		RegisterEvent: true,
	},
	RoleCoordinator: {
		JoinClub:      true,
		RegisterEvent: true,
		CreateEvent:   true,
		ManageEvent:   true,
		ManageClub:    true,
		RecordExpense: true,
		ViewBudget:    true,
	},
	RoleAdmin: {
		JoinClub:       true,
		RegisterEvent:  true,
		CreateEvent:    true,
		ManageEvent:    true,
		ModerateEvent:  true,
		CreateClub:     true,
		ManageClub:     true,
		DeleteClub:     true,
		AllocateBudget: true,
		RecordExpense:  true,
		ViewBudget:     true,
		ListBudgets:    true,
		ManageUsers:    true,
		ViewStats:      true,
	},
}

// Can reports whether the role holds the capability.
func (r Role) Can(c Capability) bool {
	return capabilities[r][c]
}

// Identity is the authenticated caller as supplied by the identity provider.
type Identity struct {
	UserID string
	Role   Role
}

// Anonymous reports whether no caller was authenticated.
func (id Identity) Anonymous() bool { return id.UserID == "" }

// Require fails with Unauthorized unless the caller is authenticated and holds c.
func (id Identity) Require(c Capability) error {
	if id.Anonymous() {
		return apperr.Unauthorized("authentication required")
	}
	if !id.Role.Can(c) {
		return apperr.Unauthorized("role %s may not %s", id.Role, c)
	}
	return nil
}

// RequireSelf fails unless the caller holds c and acts for userID.
func (id Identity) RequireSelf(c Capability, userID string) error {
	if err := id.Require(c); err != nil {
		return err
	}
	if id.UserID != userID {
		return apperr.Unauthorized("cannot act on behalf of another user")
	}
	return nil
}

// RequireClub fails unless the caller holds c and is either an admin or the
// coordinator of the club identified by coordinatorID.
func (id Identity) RequireClub(c Capability, coordinatorID string) error {
	if err := id.Require(c); err != nil {
		return err
	}
	if id.Role == RoleAdmin || id.Coordinates(coordinatorID) {
		return nil
	}
	return apperr.Unauthorized("only the club coordinator or an administrator may do this")
}

// Coordinates reports whether the caller is the given club coordinator.
func (id Identity) Coordinates(coordinatorID string) bool {
	return id.Role == RoleCoordinator && id.UserID != "" && id.UserID == coordinatorID
}
