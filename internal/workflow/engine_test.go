package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fansite/contentflow/internal/content/repository"
	"github.com/fansite/contentflow/internal/workflow"
)

type doc struct {
	Title string `json:"title"`
}

var (
	owner      = workflow.Actor{ID: "u1", Role: workflow.RoleUser}
	ownerAdmin = workflow.Actor{ID: "u1", Role: workflow.RoleAdmin}
	otherUser  = workflow.Actor{ID: "u2", Role: workflow.RoleUser}
	admin      = workflow.Actor{ID: "a1", Role: workflow.RoleAdmin}
	superAdmin = workflow.Actor{ID: "s1", Role: workflow.RoleSuperAdmin}
)

type fixture struct {
	engine *workflow.Engine[doc]
	store  *repository.MemoryStore[doc]
	events []workflow.Event
	mu     sync.Mutex
}

func newFixture(t *testing.T, validator workflow.Validator[doc]) *fixture {
	t.Helper()
	f := &fixture{store: repository.NewMemoryStore[doc]()}
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var n int
	var clockMu sync.Mutex
	f.engine = workflow.NewEngine(workflow.EngineConfig[doc]{
		Kind:      "doc",
		Store:     f.store,
		Validator: validator,
		Hooks: []workflow.Hook{workflow.HookFunc(func(_ context.Context, ev workflow.Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.events = append(f.events, ev)
			return nil
		})},
		Now: func() time.Time {
			clockMu.Lock()
			defer clockMu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
		NewID: func() string {
			clockMu.Lock()
			defer clockMu.Unlock()
			n++
			return fmt.Sprintf("doc-%d", n)
		},
	})
	return f
}

// seed stores an item owned by u1 directly in the given status.
func (f *fixture) seed(t *testing.T, id string, status workflow.Status, version int64) *workflow.Item[doc] {
	t.Helper()
	it := &workflow.Item[doc]{
		Meta: workflow.Meta{
			ID:          id,
			Kind:        "doc",
			OwnerID:     owner.ID,
			Status:      status,
			IsPublished: status == workflow.StatusApproved,
			Version:     version,
			CreatedAt:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Payload: doc{Title: "seeded"},
	}
	if status == workflow.StatusRejected {
		it.RejectionReason = "seeded reason"
	}
	require.NoError(t, f.store.Create(context.Background(), it))
	return it
}

func (f *fixture) stored(t *testing.T, id string) *workflow.Item[doc] {
	t.Helper()
	it, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return it
}

func apply(f *fixture, id string, action workflow.Action, actor workflow.Actor, version int64) (*workflow.Item[doc], error) {
	req := workflow.ApplyRequest[doc]{ID: id, Action: action, Actor: actor, ExpectedVersion: version}
	if action == workflow.ActionReject {
		req.Reason = "not good enough"
	}
	return f.engine.Apply(context.Background(), req)
}

func TestApply_OutcomeMatchesPolicyAndTable(t *testing.T) {
	var policy workflow.Policy
	actors := []workflow.Actor{owner, ownerAdmin, otherUser, admin, superAdmin}
	f := newFixture(t, nil)

	n := 0
	for _, status := range workflow.Statuses {
		for _, action := range workflow.Actions {
			for _, actor := range actors {
				n++
				id := fmt.Sprintf("item-%d", n)
				f.seed(t, id, status, 3)

				got, err := apply(f, id, action, actor, 3)

				isOwner := actor.ID == owner.ID
				_, valid := workflow.Lookup(status, action)
				switch {
				case !policy.CanPerform(actor.Role, isOwner, action):
					require.ErrorIs(t, err, workflow.ErrForbidden, "%s %s by %+v", status, action, actor)
				case !valid:
					require.ErrorIs(t, err, workflow.ErrInvalidTransition, "%s %s by %+v", status, action, actor)
				default:
					require.NoError(t, err, "%s %s by %+v", status, action, actor)
					if action == workflow.ActionDelete {
						require.True(t, got.Deleted)
						_, gerr := f.store.Get(context.Background(), id)
						require.ErrorIs(t, gerr, workflow.ErrNotFound)
						continue
					}
					require.Equal(t, int64(4), got.Version)
					require.Equal(t, got.Status == workflow.StatusApproved, got.IsPublished)
					continue
				}
				// failures never write
				st := f.stored(t, id)
				require.Equal(t, int64(3), st.Version)
				require.Equal(t, status, st.Status)
			}
		}
	}
}

func TestApply_InvalidTransitionMessageNamesStatusAndAction(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "x", workflow.StatusDraft, 1)
	_, err := apply(f, "x", workflow.ActionApprove, admin, 1)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
	require.Contains(t, err.Error(), "approve")
	require.Contains(t, err.Error(), "draft")
}

func TestApply_StaleVersionFailsEveryTime(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "x", workflow.StatusPending, 2)
	for i := 0; i < 2; i++ {
		_, err := apply(f, "x", workflow.ActionApprove, admin, 1)
		require.ErrorIs(t, err, workflow.ErrVersionConflict)
		require.True(t, workflow.IsRetryable(err))
	}
	require.Equal(t, int64(2), f.stored(t, "x").Version)
}

func TestApply_UnauthenticatedLearnsNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "x", workflow.StatusApproved, 1)

	_, err := apply(f, "x", workflow.ActionDelete, workflow.Anonymous, 0)
	require.ErrorIs(t, err, workflow.ErrForbidden)
	_, err = apply(f, "missing", workflow.ActionDelete, workflow.Anonymous, 0)
	require.ErrorIs(t, err, workflow.ErrForbidden)

	_, err = apply(f, "missing", workflow.ActionDelete, owner, 0)
	require.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestApply_PublishedFlagFollowsStatus(t *testing.T) {
	f := newFixture(t, nil)
	it, err := f.engine.Create(context.Background(), owner, doc{Title: "t"}, false)
	require.NoError(t, err)
	require.False(t, it.IsPublished)

	steps := []struct {
		action    workflow.Action
		actor     workflow.Actor
		published bool
	}{
		{workflow.ActionSubmit, owner, false},
		{workflow.ActionApprove, admin, true},
		{workflow.ActionUpdate, admin, true},
		{workflow.ActionResubmit, owner, false},
		{workflow.ActionReject, admin, false},
		{workflow.ActionSaveDraft, owner, false},
		{workflow.ActionSubmit, owner, false},
		{workflow.ActionWithdrawToDraft, owner, false},
	}
	for _, s := range steps {
		it, err = apply(f, it.ID, s.action, s.actor, it.Version)
		require.NoError(t, err, s.action)
		require.Equal(t, s.published, it.IsPublished, s.action)
		require.Equal(t, s.published, it.PublishedAt != nil, s.action)
	}
}

func TestApply_RejectionReasonLifecycle(t *testing.T) {
	for _, action := range []workflow.Action{workflow.ActionSubmit, workflow.ActionSaveDraft} {
		t.Run(string(action), func(t *testing.T) {
			f := newFixture(t, nil)
			f.seed(t, "x", workflow.StatusPending, 1)
			it, err := f.engine.Apply(context.Background(), workflow.ApplyRequest[doc]{
				ID: "x", Action: workflow.ActionReject, Actor: admin, ExpectedVersion: 1, Reason: "  title too short ",
			})
			require.NoError(t, err)
			require.Equal(t, "title too short", it.RejectionReason)
			require.Equal(t, admin.ID, it.ReviewerID)
			require.NotNil(t, it.ReviewedAt)

			it, err = apply(f, "x", action, owner, it.Version)
			require.NoError(t, err)
			require.Empty(t, it.RejectionReason)
			require.Empty(t, f.stored(t, "x").RejectionReason)
		})
	}
}

func TestApply_RejectRequiresReason(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "x", workflow.StatusPending, 1)
	_, err := f.engine.Apply(context.Background(), workflow.ApplyRequest[doc]{
		ID: "x", Action: workflow.ActionReject, Actor: admin, ExpectedVersion: 1, Reason: "   ",
	})
	require.ErrorIs(t, err, workflow.ErrValidation)
	st := f.stored(t, "x")
	require.Equal(t, workflow.StatusPending, st.Status)
	require.Equal(t, int64(1), st.Version)
}

func TestApply_SelfReviewForbidden(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "x", workflow.StatusPending, 1)
	for _, a := range []workflow.Action{workflow.ActionApprove, workflow.ActionReject} {
		_, err := apply(f, "x", a, ownerAdmin, 1)
		require.ErrorIs(t, err, workflow.ErrForbidden, a)
	}
}

func TestApply_PayloadReplacedOnlyByContentActions(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "x", workflow.StatusDraft, 1)

	it, err := f.engine.Apply(context.Background(), workflow.ApplyRequest[doc]{
		ID: "x", Action: workflow.ActionSubmit, Actor: owner, Payload: &doc{Title: "edited"},
	})
	require.NoError(t, err)
	require.Equal(t, "edited", it.Payload.Title)
	require.NotNil(t, it.SubmittedAt)

	it, err = f.engine.Apply(context.Background(), workflow.ApplyRequest[doc]{
		ID: "x", Action: workflow.ActionApprove, Actor: admin, Payload: &doc{Title: "sneaky"},
	})
	require.NoError(t, err)
	require.Equal(t, "edited", it.Payload.Title)
}

func TestApply_ValidatorErrors(t *testing.T) {
	plain := errors.New("title missing")
	v := workflow.ValidatorFunc[doc](func(action workflow.Action, _ workflow.Actor, p *doc) error {
		if action == workflow.ActionSubmit && p.Title == "" {
			return plain
		}
		if p.Title == "forbidden" {
			return workflow.Validationf("title %q is not allowed", p.Title)
		}
		return nil
	})
	f := newFixture(t, v)
	f.seed(t, "x", workflow.StatusDraft, 1)

	_, err := f.engine.Apply(context.Background(), workflow.ApplyRequest[doc]{
		ID: "x", Action: workflow.ActionSubmit, Actor: owner, Payload: &doc{},
	})
	require.ErrorIs(t, err, workflow.ErrValidation)
	require.ErrorIs(t, err, plain)

	_, err = f.engine.Apply(context.Background(), workflow.ApplyRequest[doc]{
		ID: "x", Action: workflow.ActionSaveDraft, Actor: owner, Payload: &doc{Title: "forbidden"},
	})
	require.ErrorIs(t, err, workflow.ErrValidation)
	require.Equal(t, int64(1), f.stored(t, "x").Version)
}

func TestApply_ReviewActionsSkipValidator(t *testing.T) {
	var seen []workflow.Action
	v := workflow.ValidatorFunc[doc](func(action workflow.Action, _ workflow.Actor, _ *doc) error {
		seen = append(seen, action)
		return workflow.Forbiddenf("content rules do not apply to %s", action)
	})
	f := newFixture(t, v)
	f.seed(t, "x", workflow.StatusPending, 1)
	f.seed(t, "y", workflow.StatusPending, 1)

	it, err := apply(f, "x", workflow.ActionApprove, admin, 1)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusApproved, it.Status)

	_, err = f.engine.Apply(context.Background(), workflow.ApplyRequest[doc]{
		ID: "y", Action: workflow.ActionReject, Actor: admin, ExpectedVersion: 1, Reason: "blurry",
	})
	require.NoError(t, err)
	require.Empty(t, seen)

	// content actions still go through it
	_, err = apply(f, "x", workflow.ActionUpdate, admin, it.Version)
	require.ErrorIs(t, err, workflow.ErrForbidden)
	require.Equal(t, []workflow.Action{workflow.ActionUpdate}, seen)
}

func TestCreate(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.engine.Create(context.Background(), workflow.Anonymous, doc{Title: "t"}, false)
	require.ErrorIs(t, err, workflow.ErrForbidden)

	draft, err := f.engine.Create(context.Background(), owner, doc{Title: "t"}, false)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusDraft, draft.Status)
	require.Equal(t, int64(1), draft.Version)
	require.Equal(t, owner.ID, draft.OwnerID)
	require.Equal(t, "doc", draft.Kind)

	pending, err := f.engine.Create(context.Background(), owner, doc{Title: "t"}, true)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, pending.Status)
	require.Equal(t, int64(1), pending.Version)
	require.NotNil(t, pending.SubmittedAt)

	require.Len(t, f.events, 2)
	require.True(t, f.events[0].Created)
	require.Equal(t, workflow.ActionSubmit, f.events[1].Action)
}

func TestHooksSeeCommittedTransitions(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "x", workflow.StatusPending, 1)
	_, err := apply(f, "x", workflow.ActionReject, admin, 1)
	require.NoError(t, err)
	_, err = apply(f, "x", workflow.ActionDelete, owner, 2)
	require.NoError(t, err)

	require.Len(t, f.events, 2)
	ev := f.events[0]
	require.Equal(t, workflow.StatusPending, ev.From)
	require.Equal(t, workflow.StatusRejected, ev.To)
	require.Equal(t, "not good enough", ev.Reason)
	require.Equal(t, int64(2), ev.Version)
	require.True(t, f.events[1].Removed)
}

func TestHookFailureDoesNotUndoWrite(t *testing.T) {
	store := repository.NewMemoryStore[doc]()
	e := workflow.NewEngine(workflow.EngineConfig[doc]{
		Kind:  "doc",
		Store: store,
		Hooks: []workflow.Hook{workflow.HookFunc(func(context.Context, workflow.Event) error {
			return errors.New("audit sink down")
		})},
	})
	it, err := e.Create(context.Background(), owner, doc{Title: "t"}, false)
	require.NoError(t, err)
	_, err = store.Get(context.Background(), it.ID)
	require.NoError(t, err)
}

// A reviewer acting on a stale read must re-read first.
func TestApply_StaleApproveThenRetry(t *testing.T) {
	f := newFixture(t, nil)
	it, err := f.engine.Create(context.Background(), owner, doc{Title: "t"}, false)
	require.NoError(t, err)
	seen := it.Version

	it, err = apply(f, it.ID, workflow.ActionSubmit, owner, it.Version)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, it.Status)
	require.Equal(t, int64(2), it.Version)

	_, err = apply(f, it.ID, workflow.ActionApprove, admin, seen)
	require.ErrorIs(t, err, workflow.ErrVersionConflict)

	cur, err := f.engine.Get(context.Background(), it.ID)
	require.NoError(t, err)
	it, err = apply(f, it.ID, workflow.ActionApprove, admin, cur.Version)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusApproved, it.Status)
	require.True(t, it.IsPublished)
}

// Reject, a refused resubmit, then submit clears the reason.
func TestApply_RejectThenSubmit(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "x", workflow.StatusPending, 1)
	it, err := f.engine.Apply(context.Background(), workflow.ApplyRequest[doc]{
		ID: "x", Action: workflow.ActionReject, Actor: admin, ExpectedVersion: 1, Reason: "title too short",
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRejected, it.Status)
	require.Equal(t, "title too short", it.RejectionReason)

	_, err = apply(f, "x", workflow.ActionResubmit, owner, it.Version)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	it, err = apply(f, "x", workflow.ActionSubmit, owner, it.Version)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, it.Status)
	require.Empty(t, it.RejectionReason)
}

// The owner pulls an approved item back; update stays admin-only.
func TestApply_ResubmitApproved(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "x", workflow.StatusApproved, 1)
	it, err := apply(f, "x", workflow.ActionResubmit, owner, 1)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPending, it.Status)
	require.False(t, it.IsPublished)

	_, err = apply(f, "x", workflow.ActionUpdate, owner, it.Version)
	require.ErrorIs(t, err, workflow.ErrForbidden)
}

// Owner withdraw races reviewer approve from the same read.
func TestApply_ConcurrentWithdrawAndApprove(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(t, nil)
		f.seed(t, "x", workflow.StatusPending, 3)

		var wg sync.WaitGroup
		start := make(chan struct{})
		errs := make([]error, 2)
		results := make([]*workflow.Item[doc], 2)
		run := func(i int, action workflow.Action, actor workflow.Actor) {
			defer wg.Done()
			<-start
			results[i], errs[i] = apply(f, "x", action, actor, 3)
		}
		wg.Add(2)
		go run(0, workflow.ActionWithdrawToDraft, owner)
		go run(1, workflow.ActionApprove, admin)
		close(start)
		wg.Wait()

		winners := 0
		for i, err := range errs {
			if err == nil {
				winners++
				require.Equal(t, int64(4), results[i].Version)
				continue
			}
			require.ErrorIs(t, err, workflow.ErrVersionConflict)
		}
		require.Equal(t, 1, winners)

		st := f.stored(t, "x")
		require.Equal(t, int64(4), st.Version)
		require.Contains(t, []workflow.Status{workflow.StatusDraft, workflow.StatusApproved}, st.Status)
	}
}

func TestList(t *testing.T) {
	f := newFixture(t, nil)
	f.seed(t, "a", workflow.StatusPending, 1)
	f.seed(t, "b", workflow.StatusDraft, 1)

	items, err := f.engine.List(context.Background(), workflow.Filter{Status: workflow.StatusPending})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "a", items[0].ID)

	_, err = f.engine.List(context.Background(), workflow.Filter{Status: "archived"})
	require.ErrorIs(t, err, workflow.ErrValidation)
}
