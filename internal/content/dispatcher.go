package content

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/fansite/contentflow/internal/workflow"
)

// ActionRequest is an action as received from a client.
type ActionRequest struct {
	Kind   Kind
	ID     string // empty for create flows
	Action workflow.Action
	Actor  workflow.Actor
	// ExpectedVersion is the version the client last read; 0 when unknown.
	ExpectedVersion int64
	// Payload holds the full content fields for the actions that carry them.
	Payload json.RawMessage
	Reason  string
}

// Config wires a Dispatcher with one store per kind.
type Config struct {
	Articles  workflow.Store[Article]
	Videos    workflow.Store[Video]
	Galleries workflow.Store[PhotoGroup]
	Hooks     []workflow.Hook
	Now       func() time.Time
}

// Dispatcher is the boundary to the workflow: it routes requests to the engine
// of the requested kind and never writes anything itself.
type Dispatcher struct {
	services map[Kind]Service
	policy   workflow.Policy
}

// NewDispatcher builds the three kind engines from cfg.
func NewDispatcher(cfg Config) *Dispatcher {
	return NewDispatcherFor(
		NewService(KindArticle, workflow.NewEngine(workflow.EngineConfig[Article]{
			Kind: string(KindArticle), Store: cfg.Articles, Validator: ArticleValidator, Hooks: cfg.Hooks, Now: cfg.Now,
		})),
		NewService(KindVideo, workflow.NewEngine(workflow.EngineConfig[Video]{
			Kind: string(KindVideo), Store: cfg.Videos, Validator: VideoValidator, Hooks: cfg.Hooks, Now: cfg.Now,
		})),
		NewService(KindPhotoGroup, workflow.NewEngine(workflow.EngineConfig[PhotoGroup]{
			Kind: string(KindPhotoGroup), Store: cfg.Galleries, Validator: GalleryValidator, Hooks: cfg.Hooks, Now: cfg.Now,
		})),
	)
}

// NewDispatcherFor serves exactly the given services.
func NewDispatcherFor(services ...Service) *Dispatcher {
	d := &Dispatcher{services: make(map[Kind]Service, len(services))}
	for _, s := range services {
		d.services[s.Kind()] = s
	}
	return d
}

// Kinds returns the served kinds in display order.
func (d *Dispatcher) Kinds() []Kind {
	var out []Kind
	for _, k := range Kinds {
		if _, ok := d.services[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func (d *Dispatcher) service(k Kind) (Service, error) {
	s, ok := d.services[k]
	if !ok {
		return nil, workflow.NotFoundf("unknown content kind %q", k)
	}
	return s, nil
}

// Dispatch runs req. Without an id, saveDraft and submit create a new item
// owned by the actor (submit creates it directly in Pending).
func (d *Dispatcher) Dispatch(ctx context.Context, req ActionRequest) (workflow.Content, error) {
	if req.ID != "" {
		return d.ApplyAction(ctx, req)
	}
	switch req.Action {
	case workflow.ActionSaveDraft:
		return d.create(ctx, req.Kind, req.Payload, req.Actor, false)
	case workflow.ActionSubmit:
		return d.create(ctx, req.Kind, req.Payload, req.Actor, true)
	}
	if !req.Action.Valid() {
		return nil, workflow.Validationf("unknown action %q", req.Action)
	}
	return nil, workflow.Validationf("%s needs an item id", req.Action)
}

// CreateDraft creates a Draft item owned by actor.
func (d *Dispatcher) CreateDraft(ctx context.Context, kind Kind, payload json.RawMessage, actor workflow.Actor) (workflow.Content, error) {
	return d.create(ctx, kind, payload, actor, false)
}

func (d *Dispatcher) create(ctx context.Context, kind Kind, payload json.RawMessage, actor workflow.Actor, submit bool) (workflow.Content, error) {
	s, err := d.service(kind)
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, actor, payload, submit)
}

// ApplyAction runs an action against an existing item.
func (d *Dispatcher) ApplyAction(ctx context.Context, req ActionRequest) (workflow.Content, error) {
	s, err := d.service(req.Kind)
	if err != nil {
		return nil, err
	}
	return s.Apply(ctx, req)
}

// GetItem returns an item the actor may see. Unpublished items of other
// users are reported as not found.
func (d *Dispatcher) GetItem(ctx context.Context, kind Kind, id string, actor workflow.Actor) (workflow.Content, error) {
	s, err := d.service(kind)
	if err != nil {
		return nil, err
	}
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.policy.CanView(actor, item.Header()) {
		return nil, workflow.NotFoundf("%s %s not found", kind, id)
	}
	return item, nil
}

// ListItems lists items of kind. Reviewers and owners listing their own items
// see every status; everyone else only sees published items.
func (d *Dispatcher) ListItems(ctx context.Context, kind Kind, f workflow.Filter, actor workflow.Actor) ([]workflow.Content, error) {
	s, err := d.service(kind)
	if err != nil {
		return nil, err
	}
	own := actor.Authenticated() && f.OwnerID == actor.ID
	if !own && !d.policy.CanReview(actor) {
		switch f.Status {
		case "":
			f.Status = workflow.StatusApproved
		case workflow.StatusApproved:
		default:
			return nil, workflow.Forbiddenf("only published items of other users are listed")
		}
	}
	return s.List(ctx, f)
}

// ReviewQueue returns the Pending items of the given kinds (all kinds when
// none are given), oldest submission first.
func (d *Dispatcher) ReviewQueue(ctx context.Context, actor workflow.Actor, kinds ...Kind) ([]workflow.Content, error) {
	if !d.policy.CanReview(actor) {
		return nil, workflow.Forbiddenf("the review queue is limited to reviewers")
	}
	if len(kinds) == 0 {
		kinds = d.Kinds()
	}
	var out []workflow.Content
	for _, k := range kinds {
		s, err := d.service(k)
		if err != nil {
			return nil, err
		}
		items, err := s.List(ctx, workflow.Filter{Status: workflow.StatusPending})
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return submittedAt(out[i].Header()).Before(submittedAt(out[j].Header()))
	})
	return out, nil
}

func submittedAt(m *workflow.Meta) time.Time {
	if m.SubmittedAt != nil {
		return *m.SubmittedAt
	}
	return m.UpdatedAt
}
