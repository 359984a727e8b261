package content

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/fansite/contentflow/internal/workflow"
)

// Service is the workflow of one content kind with its payload type erased,
// so the Dispatcher can hold all kinds side by side.
type Service interface {
	Kind() Kind
	Create(ctx context.Context, actor workflow.Actor, payload json.RawMessage, submit bool) (workflow.Content, error)
	Apply(ctx context.Context, req ActionRequest) (workflow.Content, error)
	Get(ctx context.Context, id string) (workflow.Content, error)
	List(ctx context.Context, f workflow.Filter) ([]workflow.Content, error)
}

// NewService adapts an engine to Service. Payloads are decoded strictly:
// unknown fields, including a client-supplied status, are rejected.
func NewService[P any](kind Kind, engine *workflow.Engine[P]) Service {
	return &engineService[P]{kind: kind, engine: engine}
}

type engineService[P any] struct {
	kind   Kind
	engine *workflow.Engine[P]
}

func (s *engineService[P]) Kind() Kind { return s.kind }

func (s *engineService[P]) Create(ctx context.Context, actor workflow.Actor, payload json.RawMessage, submit bool) (workflow.Content, error) {
	p, err := s.decode(payload)
	if err != nil {
		return nil, err
	}
	var zero P
	if p == nil {
		p = &zero
	}
	item, err := s.engine.Create(ctx, actor, *p, submit)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *engineService[P]) Apply(ctx context.Context, req ActionRequest) (workflow.Content, error) {
	p, err := s.decode(req.Payload)
	if err != nil {
		return nil, err
	}
	item, err := s.engine.Apply(ctx, workflow.ApplyRequest[P]{
		ID:              req.ID,
		Action:          req.Action,
		Actor:           req.Actor,
		ExpectedVersion: req.ExpectedVersion,
		Payload:         p,
		Reason:          req.Reason,
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *engineService[P]) Get(ctx context.Context, id string) (workflow.Content, error) {
	item, err := s.engine.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *engineService[P]) List(ctx context.Context, f workflow.Filter) ([]workflow.Content, error) {
	items, err := s.engine.List(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]workflow.Content, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out, nil
}

// decode returns nil for an absent payload.
func (s *engineService[P]) decode(raw json.RawMessage) (*P, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var p P
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, workflow.Validationf("invalid %s payload: %v", s.kind, err)
	}
	return &p, nil
}
