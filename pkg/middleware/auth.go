package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// RevocationChecker reports whether an otherwise valid token was revoked
// (e.g. by logout). May be nil.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, raw string) (bool, error)
}

// Context keys set by the auth middlewares.
const (
	ClaimsKey = "claims"
	TokenKey  = "token"
)

// ChainVerifier accepts a token when any of its verifiers does, trying
// them in order. Service tokens usually come first, OIDC ID tokens second.
type ChainVerifier []Verifier

func (cv ChainVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	errs := make([]error, 0, len(cv))
	for _, v := range cv {
		if v == nil {
			continue
		}
		tok, err := v.Verify(ctx, raw)
		if err == nil {
			return tok, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no token verifier configured")
	}
	return nil, errors.Join(errs...)
}

// AuthMiddleware returns a Gin middleware that requires a valid Bearer token.
func AuthMiddleware(ver Verifier, revoked RevocationChecker) gin.HandlerFunc {
	return authenticate(ver, revoked, true)
}

// OptionalAuthMiddleware verifies a Bearer token when one is sent and lets
// anonymous requests through. A bad token is still rejected.
func OptionalAuthMiddleware(ver Verifier, revoked RevocationChecker) gin.HandlerFunc {
	return authenticate(ver, revoked, false)
}

func authenticate(ver Verifier, revoked RevocationChecker, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
				return
			}
			c.Next()
			return
		}
		// Expect 'Bearer <token>'
		scheme, token, ok := strings.Cut(auth, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		if revoked != nil {
			gone, err := revoked.IsRevoked(c.Request.Context(), token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "token revocation check failed"})
				return
			}
			if gone {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
		}

		verified, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var claims map[string]interface{}
		if err := verified.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// ClaimsFrom returns the verified claims of the request, if any.
func ClaimsFrom(c *gin.Context) (map[string]interface{}, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]interface{})
	return m, ok
}
