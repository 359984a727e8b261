package workflow

import (
	"context"
	"time"

	"github.com/fansite/contentflow/pkg/logger"
)

// Event describes a committed change to an item.
type Event struct {
	Kind    string
	ItemID  string
	Action  Action
	From    Status // empty when the item was just created
	To      Status
	Created bool
	Removed bool
	Actor   Actor
	Version int64
	Reason  string
	At      time.Time
}

// Hook observes committed changes (audit trail, publish side effects).
// Hooks run after the write; their errors are logged and never undo it.
type Hook interface {
	OnTransition(ctx context.Context, ev Event) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, ev Event) error

func (f HookFunc) OnTransition(ctx context.Context, ev Event) error { return f(ctx, ev) }

// LogHook writes every committed change at debug level.
var LogHook = HookFunc(func(_ context.Context, ev Event) error {
	logger.Debugw("workflow: committed", "kind", ev.Kind, "item", ev.ItemID, "action", ev.Action,
		"actor", ev.Actor.ID, "role", ev.Actor.Role, "from", ev.From, "to", ev.To, "version", ev.Version)
	return nil
})
