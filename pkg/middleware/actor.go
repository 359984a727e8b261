package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fansite/contentflow/internal/workflow"
	"github.com/fansite/contentflow/pkg/logger"
)

// ActorKey holds the workflow.Actor of the request.
const ActorKey = "actor"

// ActorResolver maps verified claims to an actor.
type ActorResolver interface {
	ResolveActor(ctx context.Context, claims map[string]interface{}) (workflow.Actor, error)
}

// ActorMiddleware resolves the actor for requests that passed an auth
// middleware. Requests without claims run as workflow.Anonymous.
func ActorMiddleware(res ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			c.Set(ActorKey, workflow.Anonymous)
			c.Next()
			return
		}
		actor, err := res.ResolveActor(c.Request.Context(), claims)
		if err != nil {
			logger.Errorf("middleware: resolve actor: %v", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "user lookup failed", "kind": workflow.KindStorageUnavailable})
			return
		}
		c.Set(ActorKey, actor)
		c.Next()
	}
}

// ActorFrom returns the request's actor, or workflow.Anonymous.
func ActorFrom(c *gin.Context) workflow.Actor {
	if v, ok := c.Get(ActorKey); ok {
		if a, ok := v.(workflow.Actor); ok {
			return a
		}
	}
	return workflow.Anonymous
}

// RequireRole aborts with 403 unless the actor has one of roles.
func RequireRole(roles ...workflow.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		a := ActorFrom(c)
		if !a.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required", "kind": workflow.KindForbidden})
			return
		}
		for _, r := range roles {
			if a.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role", "kind": workflow.KindForbidden})
	}
}

// rateKey prefers the actor, then the token subject, then the client IP.
func rateKey(c *gin.Context) string {
	if a := ActorFrom(c); a.Authenticated() {
		return "sub:" + a.ID
	}
	if cm, ok := ClaimsFrom(c); ok {
		if sub, ok := cm["sub"].(string); ok && sub != "" {
			return "sub:" + sub
		}
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
