// Package audit keeps the moderation log: who moved which item where, and
// the role changes made by super admins.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fansite/contentflow/internal/workflow"
)

// Entry is one logged operation.
type Entry struct {
	ID        string          `json:"id" bson:"_id"`
	Resource  string          `json:"resource" bson:"resource"` // content kind, or "user"
	TargetID  string          `json:"targetId" bson:"targetId"`
	Action    string          `json:"action" bson:"action"`
	From      workflow.Status `json:"from,omitempty" bson:"from,omitempty"`
	To        workflow.Status `json:"to,omitempty" bson:"to,omitempty"`
	ActorID   string          `json:"actorId" bson:"actorId"`
	ActorRole workflow.Role   `json:"actorRole" bson:"actorRole"`
	Version   int64           `json:"version,omitempty" bson:"version,omitempty"`
	Reason    string          `json:"reason,omitempty" bson:"reason,omitempty"`
	Detail    string          `json:"detail,omitempty" bson:"detail,omitempty"`
	At        time.Time       `json:"at" bson:"at"`
}

// ActionRoleChange is logged when a user's role is changed.
const ActionRoleChange = "role_change"

// Query narrows List. Zero values match everything.
type Query struct {
	TargetID string
	ActorID  string
	Resource string
	Limit    int
	Offset   int
}

func (q Query) matches(e *Entry) bool {
	return (q.TargetID == "" || e.TargetID == q.TargetID) &&
		(q.ActorID == "" || e.ActorID == q.ActorID) &&
		(q.Resource == "" || e.Resource == q.Resource)
}

// Repository stores entries. List returns newest first.
type Repository interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, q Query) ([]*Entry, error)
}

// Recorder writes entries and doubles as a workflow hook.
type Recorder struct {
	repo   Repository
	policy workflow.Policy
	now    func() time.Time
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// OnTransition logs a committed workflow change.
func (r *Recorder) OnTransition(ctx context.Context, ev workflow.Event) error {
	action := string(ev.Action)
	switch {
	case ev.Created:
		action = "create:" + action
	case ev.Removed:
		action = "delete"
	}
	return r.Record(ctx, &Entry{
		Resource:  ev.Kind,
		TargetID:  ev.ItemID,
		Action:    action,
		From:      ev.From,
		To:        ev.To,
		ActorID:   ev.Actor.ID,
		ActorRole: ev.Actor.Role,
		Version:   ev.Version,
		Reason:    ev.Reason,
		At:        ev.At,
	})
}

// RoleChanged logs a role change of the user sub.
func (r *Recorder) RoleChanged(ctx context.Context, by workflow.Actor, sub string, from, to workflow.Role) error {
	return r.Record(ctx, &Entry{
		Resource:  "user",
		TargetID:  sub,
		Action:    ActionRoleChange,
		ActorID:   by.ID,
		ActorRole: by.Role,
		Detail:    string(from) + " -> " + string(to),
	})
}

// Record fills the id and time when missing and stores e.
func (r *Recorder) Record(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = r.now()
	}
	// the entry describes a write that already happened
	return r.repo.Append(context.WithoutCancel(ctx), e)
}

// List returns entries for reviewers only.
func (r *Recorder) List(ctx context.Context, by workflow.Actor, q Query) ([]*Entry, error) {
	if !r.policy.CanReview(by) {
		return nil, workflow.Forbiddenf("the audit log is limited to reviewers")
	}
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}
	out, err := r.repo.List(ctx, q)
	if err != nil {
		return nil, workflow.Unavailable(err)
	}
	return out, nil
}
