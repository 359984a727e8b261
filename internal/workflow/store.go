package workflow

import "context"

// Store persists items of one content kind.
//
// UpdateIfVersion and DeleteIfVersion are the single point of mutual
// exclusion: they must succeed only when the stored version still equals
// expected, atomically, and return ErrVersionConflict otherwise. A missing
// item is reported as ErrNotFound by every method.
type Store[P any] interface {
	Create(ctx context.Context, item *Item[P]) error
	Get(ctx context.Context, id string) (*Item[P], error)
	UpdateIfVersion(ctx context.Context, item *Item[P], expected int64) error
	DeleteIfVersion(ctx context.Context, id string, expected int64) error
	// List returns matching items ordered by UpdatedAt, newest first.
	List(ctx context.Context, f Filter) ([]*Item[P], error)
}

// Validator applies kind-specific checks before a payload is persisted.
// It may normalize the payload in place (derived fields, trimmed values) and
// returns a validation *Error when the payload is not acceptable for action.
type Validator[P any] interface {
	Validate(action Action, actor Actor, payload *P) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc[P any] func(action Action, actor Actor, payload *P) error

func (f ValidatorFunc[P]) Validate(action Action, actor Actor, payload *P) error {
	return f(action, actor, payload)
}
