package workflow

import "strings"

// Role is the authorization role of an actor.
type Role string

const (
	RoleGuest      Role = "guest"
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole normalizes a role string. Unknown values map to RoleGuest.
func ParseRole(v string) Role {
	switch r := Role(strings.ToLower(strings.TrimSpace(v))); r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return r
	}
	return RoleGuest
}

// Authenticated is true for every role that belongs to a signed-in user.
func (r Role) Authenticated() bool {
	return r == RoleUser || r == RoleAdmin || r == RoleSuperAdmin
}

// Reviewer is true for the roles that may approve, reject and update.
func (r Role) Reviewer() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Actor is the identity a request is performed as.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Anonymous is the actor of requests without credentials.
var Anonymous = Actor{Role: RoleGuest}

func (a Actor) Authenticated() bool {
	return a.ID != "" && a.Role.Authenticated()
}

// Policy is the single source of truth for who may do what. It never mutates state.
type Policy struct{}

// CanPerform decides whether an actor with role, owning the item or not, may
// request action. Status validity is the transition table's concern.
func (Policy) CanPerform(role Role, isOwner bool, action Action) bool {
	if !role.Authenticated() {
		return false
	}
	switch action {
	case ActionSaveDraft, ActionSubmit, ActionWithdrawToDraft, ActionResubmit:
		return isOwner
	case ActionApprove, ActionReject:
		// separation of duties: nobody reviews their own item, whatever their role
		return role.Reviewer() && !isOwner
	case ActionUpdate:
		return role.Reviewer()
	case ActionDelete:
		return isOwner || role.Reviewer()
	}
	return false
}

// CanCreate reports whether the actor may create new items.
func (Policy) CanCreate(a Actor) bool {
	return a.Authenticated()
}

// CanReview reports whether the actor may see the review queue and audit log.
func (Policy) CanReview(a Actor) bool {
	return a.Authenticated() && a.Role.Reviewer()
}

// CanView reports whether the actor may read an item in its current state.
// Published items are public; everything else is visible to owner and reviewers.
func (p Policy) CanView(a Actor, m *Meta) bool {
	if m.IsPublished {
		return true
	}
	if !a.Authenticated() {
		return false
	}
	return m.OwnerID == a.ID || a.Role.Reviewer()
}

// CanManageRoles reports whether the actor may change other users' roles.
func (Policy) CanManageRoles(a Actor) bool {
	return a.Authenticated() && a.Role == RoleSuperAdmin
}

// Allowed lists the actions an actor could request on an item right now,
// combining the permission rules with the transition table.
func (p Policy) Allowed(a Actor, m *Meta) []Action {
	if !a.Authenticated() {
		return nil
	}
	owner := m.OwnerID == a.ID
	var out []Action
	for _, act := range Available(m.Status) {
		if p.CanPerform(a.Role, owner, act) {
			out = append(out, act)
		}
	}
	return out
}
