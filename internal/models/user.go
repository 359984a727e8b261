package models

import (
	"time"

	"github.com/fansite/contentflow/internal/workflow"
)

// User is a site member mapped from identity-provider claims. Role is owned
// by this service once the user exists; later logins do not overwrite it.
type User struct {
	ID        string        `bson:"_id,omitempty" json:"id"`
	Sub       string        `bson:"sub" json:"sub"` // OIDC subject
	Email     string        `bson:"email" json:"email"`
	Name      string        `bson:"name" json:"name"`
	Role      workflow.Role `bson:"role" json:"role"`
	CreatedAt time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// Actor returns the workflow identity of u.
func (u *User) Actor() workflow.Actor {
	return workflow.Actor{ID: u.Sub, Role: u.Role}
}
