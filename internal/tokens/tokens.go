// Package tokens issues and verifies the service's HS256 access tokens.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fansite/contentflow/internal/models"
	"github.com/fansite/contentflow/pkg/middleware"
)

const issuerName = "contentflow"

// Issuer signs access tokens carrying the user's subject and role.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateAccessToken creates a signed JWT access token for the user and
// returns it with its expiry.
func (i *Issuer) GenerateAccessToken(u *models.User) (string, time.Time, error) {
	if len(i.secret) == 0 {
		return "", time.Time{}, errors.New("tokens: no signing secret configured")
	}
	now := i.now()
	exp := now.Add(i.ttl)
	claims := jwt.MapClaims{
		"iss":   issuerName,
		"sub":   u.Sub,
		"name":  u.Name,
		"email": u.Email,
		"role":  string(u.Role),
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := jt.SignedString(i.secret)
	return s, exp, err
}

// Verifier checks tokens signed by an Issuer with the same secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify implements middleware.Verifier.
func (v *Verifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
	)
	if err != nil {
		return nil, fmt.Errorf("tokens: %w", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("tokens: unexpected claims type")
	}
	if _, ok := claims["exp"]; !ok {
		return nil, errors.New("tokens: token has no expiry")
	}
	return &claimsToken{claims: claims}, nil
}

type claimsToken struct {
	claims jwt.MapClaims
}

func (t *claimsToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ExpiresIn returns how long a token with the given claims remains valid,
// for sizing blacklist entries. Missing or past expiries yield 0.
func ExpiresIn(claims map[string]interface{}, now time.Time) time.Duration {
	exp, ok := claims["exp"].(float64)
	if !ok {
		return 0
	}
	d := time.Unix(int64(exp), 0).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
