package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fansite/contentflow/pkg/logger"
	"github.com/fansite/contentflow/pkg/metrics"
)

// EngineConfig wires an Engine for one content kind.
type EngineConfig[P any] struct {
	Kind      string
	Store     Store[P]
	Validator Validator[P] // optional
	Hooks     []Hook
	Policy    Policy

	Now   func() time.Time // defaults to time.Now().UTC()
	NewID func() string    // defaults to uuid.NewString
}

// Engine runs the moderation state machine for items with payload P.
// It holds no per-item state; every call is an independent unit of work and
// concurrent calls for the same item are arbitrated by the store's CAS.
type Engine[P any] struct {
	kind      string
	store     Store[P]
	validator Validator[P]
	hooks     []Hook
	policy    Policy
	now       func() time.Time
	newID     func() string
}

func NewEngine[P any](cfg EngineConfig[P]) *Engine[P] {
	e := &Engine[P]{
		kind:      cfg.Kind,
		store:     cfg.Store,
		validator: cfg.Validator,
		hooks:     cfg.Hooks,
		policy:    cfg.Policy,
		now:       cfg.Now,
		newID:     cfg.NewID,
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

func (e *Engine[P]) Kind() string { return e.kind }

// ApplyRequest is one action against an existing item.
type ApplyRequest[P any] struct {
	ID     string
	Action Action
	Actor  Actor
	// ExpectedVersion is the version the caller last read; 0 skips the early
	// check but the write is still conditional on the version loaded here.
	ExpectedVersion int64
	// Payload replaces the content fields for actions that carry one; nil keeps them.
	Payload *P
	// Reason is required for reject and ignored otherwise.
	Reason string
}

// Create stores a new item owned by actor, in Draft or, when submit is set,
// directly in Pending. The item starts at version 1.
func (e *Engine[P]) Create(ctx context.Context, actor Actor, payload P, submit bool) (*Item[P], error) {
	action := ActionSaveDraft
	status := StatusDraft
	if submit {
		action = ActionSubmit
		status = StatusPending
	}
	item, err := e.create(ctx, actor, payload, action, status)
	if err != nil {
		e.fail(action, err)
		return nil, err
	}
	return item, nil
}

func (e *Engine[P]) create(ctx context.Context, actor Actor, payload P, action Action, status Status) (*Item[P], error) {
	if !e.policy.CanCreate(actor) {
		return nil, Forbiddenf("authentication required to create %s", e.kind)
	}
	if err := e.validate(action, actor, &payload); err != nil {
		return nil, err
	}

	now := e.now()
	item := &Item[P]{
		Meta: Meta{
			ID:        e.newID(),
			Kind:      e.kind,
			OwnerID:   actor.ID,
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		},
		Payload: payload,
	}
	item.setStatus(status, "")
	if status == StatusPending {
		item.SubmittedAt = timePtr(now)
	}

	if err := e.store.Create(context.WithoutCancel(ctx), item); err != nil {
		return nil, Unavailable(err)
	}
	e.notify(ctx, Event{
		Kind: e.kind, ItemID: item.ID, Action: action, To: item.Status,
		Created: true, Actor: actor, Version: item.Version, At: now,
	})
	metrics.WorkflowTransitions.WithLabelValues(e.kind, "create").Inc()
	return item, nil
}

// Apply validates action against the permission policy and the transition
// table and, when both allow it, persists the resulting state. Failures are
// total: nothing is written unless the whole action succeeds.
func (e *Engine[P]) Apply(ctx context.Context, req ApplyRequest[P]) (*Item[P], error) {
	item, err := e.apply(ctx, req)
	if err != nil {
		e.fail(req.Action, err)
		return nil, err
	}
	metrics.WorkflowTransitions.WithLabelValues(e.kind, string(req.Action)).Inc()
	return item, nil
}

func (e *Engine[P]) apply(ctx context.Context, req ApplyRequest[P]) (*Item[P], error) {
	// checked before loading so anonymous callers learn nothing about existence
	if !req.Actor.Authenticated() {
		return nil, Forbiddenf("authentication required")
	}
	if !req.Action.Valid() {
		return nil, Validationf("unknown action %q", req.Action)
	}

	cur, err := e.load(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if req.ExpectedVersion != 0 && req.ExpectedVersion != cur.Version {
		return nil, versionConflict(cur.ID, req.ExpectedVersion, cur.Version)
	}

	owner := cur.OwnerID == req.Actor.ID
	if !e.policy.CanPerform(req.Actor.Role, owner, req.Action) {
		return nil, Forbiddenf("%s may not %s this %s", req.Actor.Role, req.Action, e.kind)
	}

	t, ok := Lookup(cur.Status, req.Action)
	if !ok {
		return nil, invalidTransition(cur.Status, req.Action)
	}

	// the transition is validated: from here on the action runs to completion
	// or fails atomically, independent of the caller going away
	ctx = context.WithoutCancel(ctx)

	if t.Removes {
		return e.remove(ctx, req, cur)
	}

	reason := strings.TrimSpace(req.Reason)
	if req.Action == ActionReject && reason == "" {
		return nil, Validationf("a rejection reason is required")
	}

	next := *cur
	// review actions leave the content alone, so only content actions are validated
	if req.Action.CarriesPayload() {
		if req.Payload != nil {
			next.Payload = *req.Payload
		}
		if err := e.validate(req.Action, req.Actor, &next.Payload); err != nil {
			return nil, err
		}
	}

	now := e.now()
	from := cur.Status
	next.setStatus(t.To, reason)
	next.Version = cur.Version + 1
	next.UpdatedAt = now
	e.stamp(&next.Meta, req.Action, req.Actor, from, now)

	if err := e.store.UpdateIfVersion(ctx, &next, cur.Version); err != nil {
		return nil, e.writeError(cur.ID, cur.Version, err)
	}
	e.notify(ctx, Event{
		Kind: e.kind, ItemID: next.ID, Action: req.Action, From: from, To: next.Status,
		Actor: req.Actor, Version: next.Version, Reason: next.RejectionReason, At: now,
	})
	return &next, nil
}

func (e *Engine[P]) remove(ctx context.Context, req ApplyRequest[P], cur *Item[P]) (*Item[P], error) {
	if err := e.store.DeleteIfVersion(ctx, cur.ID, cur.Version); err != nil {
		return nil, e.writeError(cur.ID, cur.Version, err)
	}
	now := e.now()
	e.notify(ctx, Event{
		Kind: e.kind, ItemID: cur.ID, Action: req.Action, From: cur.Status, To: cur.Status,
		Removed: true, Actor: req.Actor, Version: cur.Version, At: now,
	})
	tomb := *cur
	tomb.Deleted = true
	return &tomb, nil
}

// stamp records review bookkeeping for the transition.
func (e *Engine[P]) stamp(m *Meta, action Action, actor Actor, from Status, now time.Time) {
	switch action {
	case ActionSubmit, ActionResubmit:
		m.SubmittedAt = timePtr(now)
	case ActionApprove, ActionReject, ActionUpdate:
		m.ReviewerID = actor.ID
		m.ReviewedAt = timePtr(now)
	}
	switch {
	case m.Status == StatusApproved && from != StatusApproved:
		m.PublishedAt = timePtr(now)
	case m.Status != StatusApproved:
		m.PublishedAt = nil
	}
}

// Get returns the stored item.
func (e *Engine[P]) Get(ctx context.Context, id string) (*Item[P], error) {
	return e.load(ctx, id)
}

// List returns the items matching f.
func (e *Engine[P]) List(ctx context.Context, f Filter) ([]*Item[P], error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, Validationf("unknown status %q", f.Status)
	}
	items, err := e.store.List(ctx, f)
	if err != nil {
		return nil, Unavailable(err)
	}
	return items, nil
}

func (e *Engine[P]) load(ctx context.Context, id string) (*Item[P], error) {
	if strings.TrimSpace(id) == "" {
		return nil, Validationf("item id is required")
	}
	item, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NotFoundf("%s %s not found", e.kind, id)
		}
		return nil, Unavailable(err)
	}
	return item, nil
}

func (e *Engine[P]) validate(action Action, actor Actor, payload *P) error {
	if e.validator == nil {
		return nil
	}
	err := e.validator.Validate(action, actor, payload)
	if err == nil {
		return nil
	}
	if KindOf(err) == "" {
		return &Error{Kind: KindValidation, Message: err.Error(), Err: err}
	}
	return err
}

func (e *Engine[P]) writeError(id string, expected int64, err error) error {
	switch {
	case errors.Is(err, ErrVersionConflict):
		return versionConflict(id, expected, 0)
	case errors.Is(err, ErrNotFound):
		return NotFoundf("%s %s not found", e.kind, id)
	}
	return Unavailable(err)
}

func (e *Engine[P]) notify(ctx context.Context, ev Event) {
	for _, h := range e.hooks {
		if err := h.OnTransition(ctx, ev); err != nil {
			logger.Warnw("workflow: hook failed", "kind", ev.Kind, "item", ev.ItemID, "action", ev.Action, "err", err)
		}
	}
}

func (e *Engine[P]) fail(action Action, err error) {
	kind := KindOf(err)
	if kind == "" {
		kind = KindStorageUnavailable
	}
	metrics.WorkflowFailures.WithLabelValues(e.kind, string(action), string(kind)).Inc()
	if kind == KindStorageUnavailable {
		logger.Errorf("workflow: %s %s failed: %v", e.kind, action, err)
	}
}
