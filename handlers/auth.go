package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fansite/contentflow/internal/config"
	"github.com/fansite/contentflow/internal/models"
	"github.com/fansite/contentflow/internal/oidc"
	"github.com/fansite/contentflow/internal/sessions"
	"github.com/fansite/contentflow/internal/tokens"
	"github.com/fansite/contentflow/internal/users"
	"github.com/fansite/contentflow/pkg/logger"
	"github.com/fansite/contentflow/pkg/middleware"
)

// LoginRequest selects one of three ways to prove identity: an ID token the
// client already holds, an authorization code, or a password grant (dev).
type LoginRequest struct {
	Mode        string `json:"mode" binding:"required"` // "id_token" | "auth_code" | "password"
	IDToken     string `json:"id_token"`
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
	Username    string `json:"username"`
	Password    string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// AuthHandler exchanges identity-provider proof for service tokens.
type AuthHandler struct {
	kc         config.KeycloakConfig
	idTokens   middleware.Verifier
	users      *users.Service
	sessions   *sessions.Service
	issuer     *tokens.Issuer
	blacklist  *sessions.Blacklist
	refreshTTL time.Duration
	client     *http.Client
}

// NewAuthHandler wires the auth endpoints. idTokens verifies ID tokens from
// the identity provider; bl may be nil when Redis is not configured.
func NewAuthHandler(cfg *config.Config, idTokens middleware.Verifier, u *users.Service, s *sessions.Service, iss *tokens.Issuer, bl *sessions.Blacklist) *AuthHandler {
	ttl := cfg.JWT.RefreshTokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &AuthHandler{
		kc:         cfg.Keycloak,
		idTokens:   idTokens,
		users:      u,
		sessions:   s,
		issuer:     iss,
		blacklist:  bl,
		refreshTTL: ttl,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg gin.IRouter) {
	a := rg.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
	a.GET("/me", h.Me)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	idToken := req.IDToken
	switch req.Mode {
	case "id_token":
		if idToken == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id_token required"})
			return
		}
	case "auth_code", "password":
		if h.kc.URL == "" || h.kc.Realm == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "identity provider not configured"})
			return
		}
		form := url.Values{"client_id": {h.kc.ClientID}}
		if req.Mode == "auth_code" {
			if req.Code == "" || req.RedirectURI == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "code and redirect_uri required for auth_code mode"})
				return
			}
			form.Set("grant_type", "authorization_code")
			form.Set("code", req.Code)
			form.Set("redirect_uri", req.RedirectURI)
		} else {
			form.Set("grant_type", "password")
			form.Set("scope", "openid")
			form.Set("username", req.Username)
			form.Set("password", req.Password)
		}
		tr, err := requestToken(ctx, h.client, tokenEndpoint(h.kc), h.kc.ClientID, h.kc.ClientSecret, form)
		if err != nil {
			logger.Warnf("auth: %s token exchange failed: %v", req.Mode, err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}
		idToken = tr.IDToken
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported mode"})
		return
	}

	claims, err := verifyClaims(ctx, h.idTokens, idToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid id token"})
		return
	}
	u, err := h.users.UpsertFromClaims(ctx, claims)
	if err != nil {
		logger.Errorf("auth: user upsert: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user upsert failed"})
		return
	}
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "id token has no subject"})
		return
	}
	refresh, err := h.sessions.CreateSession(ctx, u.Sub, h.refreshTTL)
	if err != nil {
		logger.Errorf("auth: create session: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to create session"})
		return
	}
	h.issue(c, u, refresh)
}

// Refresh rotates the refresh token and issues a new access token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	sess, next, err := h.sessions.Rotate(ctx, req.RefreshToken, h.refreshTTL)
	if errors.Is(err, sessions.ErrInvalidRefresh) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if err != nil {
		logger.Errorf("auth: rotate session: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		return
	}
	u, err := h.users.GetBySub(ctx, sess.Sub)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user lookup failed"})
		return
	}
	if u == nil {
		_ = h.sessions.DeleteRefresh(ctx, next)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user no longer exists"})
		return
	}
	h.issue(c, u, next)
}

// Logout removes the refresh session and blacklists the bearer token of the
// request, if any, for the rest of its lifetime.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	if raw := c.GetString(middleware.TokenKey); raw != "" {
		claims, _ := middleware.ClaimsFrom(c)
		if ttl := tokens.ExpiresIn(claims, time.Now()); ttl > 0 {
			if err := h.blacklist.Revoke(ctx, raw, ttl); err != nil {
				logger.Errorf("auth: blacklist access token: %v", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to blacklist access token"})
				return
			}
		}
	}
	if err := h.sessions.DeleteRefresh(ctx, req.RefreshToken); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to remove session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the caller's actor and, when known, the stored user.
func (h *AuthHandler) Me(c *gin.Context) {
	a := middleware.ActorFrom(c)
	if !a.Authenticated() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	u, err := h.users.GetBySub(c.Request.Context(), a.ID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "user lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actor": a, "user": u})
}

func (h *AuthHandler) issue(c *gin.Context, u *models.User, refresh string) {
	access, exp, err := h.issuer.GenerateAccessToken(u)
	if err != nil {
		logger.Errorf("auth: sign access token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create access token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  access,
		"refreshToken": refresh,
		"expiresIn":    int(time.Until(exp).Seconds()),
		"user":         u,
	})
}

func verifyClaims(ctx context.Context, v middleware.Verifier, raw string) (map[string]interface{}, error) {
	if v == nil {
		return nil, errors.New("no id token verifier configured")
	}
	tok, err := v.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		return nil, err
	}
	return claims, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

func tokenEndpoint(kc config.KeycloakConfig) string {
	return oidc.KeycloakIssuer(kc.URL, kc.Realm) + "/protocol/openid-connect/token"
}

// requestToken posts form to the token endpoint with client_secret_post and,
// when the provider rejects that, retries once with HTTP Basic client auth.
// A transient "Code not valid" answer is retried once as well.
func requestToken(ctx context.Context, client *http.Client, endpoint, clientID, clientSecret string, form url.Values) (*tokenResponse, error) {
	post := form
	if clientSecret != "" {
		post = url.Values{}
		for k, v := range form {
			post[k] = v
		}
		post.Set("client_secret", clientSecret)
	}
	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		status, body, err := postForm(ctx, client, endpoint, post, "", "")
		if err == nil && status == http.StatusUnauthorized && clientSecret != "" {
			logger.Warnf("auth: token endpoint refused client_secret_post, retrying with basic auth")
			status, body, err = postForm(ctx, client, endpoint, form, clientID, clientSecret)
		}
		if err != nil {
			lastErr = err
			continue
		}
		if status != http.StatusOK {
			lastErr = fmt.Errorf("token endpoint returned %d: %s", status, strings.TrimSpace(string(body)))
			if status == http.StatusBadRequest && strings.Contains(string(body), "Code not valid") && attempt == 1 {
				time.Sleep(150 * time.Millisecond)
				continue
			}
			return nil, lastErr
		}
		var tr tokenResponse
		if err := json.Unmarshal(body, &tr); err != nil {
			return nil, fmt.Errorf("decode token response: %w", err)
		}
		if tr.IDToken == "" {
			return nil, errors.New("token response has no id_token")
		}
		return &tr, nil
	}
	return nil, lastErr
}

func postForm(ctx context.Context, client *http.Client, endpoint string, form url.Values, user, pass string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, body, err
}
