// Package tags is the tag lookup and creation collaborator used by the
// content editors.
package tags

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/fansite/contentflow/internal/workflow"
)

// Tag is a reusable label. Name is the display form, "<category>：<value>"
// when the tag belongs to a category.
type Tag struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Value     string    `json:"value" bson:"value"`
	Category  string    `json:"category,omitempty" bson:"category,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

const maxValueRunes = 150

// DisplayName joins category and value the way tags are shown on the site.
func DisplayName(category, value string) string {
	if category == "" {
		return value
	}
	return category + "：" + value
}

// Repository stores tags. Search is a case-insensitive substring match on
// Name; FindOrCreate is atomic on Name.
type Repository interface {
	Search(ctx context.Context, q string, limit int) ([]*Tag, error)
	FindOrCreate(ctx context.Context, t *Tag) (*Tag, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Suggest returns tags whose name contains q. There is no ranking beyond
// the repository's alphabetical order.
func (s *Service) Suggest(ctx context.Context, q string, limit int) ([]*Tag, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	out, err := s.repo.Search(ctx, strings.TrimSpace(q), limit)
	if err != nil {
		return nil, workflow.Unavailable(err)
	}
	return out, nil
}

// Ensure finds or creates one tag per value, in order, skipping blanks and
// duplicates.
func (s *Service) Ensure(ctx context.Context, actor workflow.Actor, category string, values ...string) ([]*Tag, error) {
	if !actor.Authenticated() {
		return nil, workflow.Forbiddenf("sign in to create tags")
	}
	category = strings.TrimSpace(category)
	seen := make(map[string]bool, len(values))
	out := make([]*Tag, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		if utf8.RuneCountInString(v) > maxValueRunes {
			return nil, workflow.Validationf("tag %q is longer than %d characters", v, maxValueRunes)
		}
		t, err := s.repo.FindOrCreate(ctx, &Tag{
			ID:        uuid.NewString(),
			Name:      DisplayName(category, v),
			Value:     v,
			Category:  category,
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return nil, workflow.Unavailable(err)
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, workflow.Validationf("at least one tag value is required")
	}
	return out, nil
}
