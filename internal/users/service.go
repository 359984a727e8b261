package users

import (
	"context"
	"fmt"

	"github.com/fansite/contentflow/internal/models"
	"github.com/fansite/contentflow/internal/workflow"
)

// Service encapsulates user-related business logic
type Service struct {
	repo   UserRepository
	policy workflow.Policy
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// UpsertFromClaims creates or updates a user using OIDC claims map. New users
// start with the role found in the claims.
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	if name == "" {
		name, _ = claims["preferred_username"].(string)
	}
	if sub == "" {
		return nil, nil
	}
	u := &models.User{
		Sub:   sub,
		Email: email,
		Name:  name,
		Role:  RoleFromClaims(claims),
	}
	return s.repo.UpsertBySub(ctx, u)
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	return s.repo.GetBySub(ctx, sub)
}

// ResolveActor maps verified claims to the actor a request runs as. The
// stored role wins over the token so role changes apply immediately.
func (s *Service) ResolveActor(ctx context.Context, claims map[string]interface{}) (workflow.Actor, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return workflow.Anonymous, nil
	}
	u, err := s.repo.GetBySub(ctx, sub)
	if err != nil {
		return workflow.Anonymous, fmt.Errorf("users: resolve %s: %w", sub, err)
	}
	if u != nil && u.Role.Authenticated() {
		return u.Actor(), nil
	}
	return workflow.Actor{ID: sub, Role: RoleFromClaims(claims)}, nil
}

// SetRole changes the role of sub on behalf of by.
func (s *Service) SetRole(ctx context.Context, by workflow.Actor, sub string, role workflow.Role) (*models.User, error) {
	if !s.policy.CanManageRoles(by) {
		return nil, workflow.Forbiddenf("only super admins manage roles")
	}
	if !role.Authenticated() {
		return nil, workflow.Validationf("unknown role %q", role)
	}
	if sub == by.ID {
		return nil, workflow.Validationf("you cannot change your own role")
	}
	u, err := s.repo.SetRole(ctx, sub, role)
	if err != nil {
		return nil, workflow.Unavailable(err)
	}
	if u == nil {
		return nil, workflow.NotFoundf("user %s not found", sub)
	}
	return u, nil
}

// List returns every user; reviewers only.
func (s *Service) List(ctx context.Context, by workflow.Actor) ([]*models.User, error) {
	if !s.policy.CanReview(by) {
		return nil, workflow.Forbiddenf("listing users is limited to reviewers")
	}
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, workflow.Unavailable(err)
	}
	return out, nil
}

// RoleFromClaims reads the role claim of service tokens, falling back to
// Keycloak realm roles and finally to RoleUser.
func RoleFromClaims(claims map[string]interface{}) workflow.Role {
	if v, ok := claims["role"].(string); ok {
		if r := workflow.ParseRole(v); r.Authenticated() {
			return r
		}
	}
	best := workflow.RoleUser
	if ra, ok := claims["realm_access"].(map[string]interface{}); ok {
		roles, _ := ra["roles"].([]interface{})
		for _, raw := range roles {
			name, _ := raw.(string)
			switch workflow.ParseRole(name) {
			case workflow.RoleSuperAdmin:
				return workflow.RoleSuperAdmin
			case workflow.RoleAdmin:
				best = workflow.RoleAdmin
			}
		}
	}
	return best
}
