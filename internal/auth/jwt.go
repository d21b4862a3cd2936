package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Claims carried by tenant identity tokens.
type Claims struct {
	TenantID string `json:"tenant_id"`
	OrgID    string `json:"org_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 identity tokens.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier returns nil for an empty secret, which disables JWT auth.
func NewTokenVerifier(secret string) *TokenVerifier {
	if secret == "" {
		return nil
	}
	return &TokenVerifier{secret: []byte(secret)}
}

func (v *TokenVerifier) Verify(raw string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid || claims.TenantID == "" {
		return Identity{}, fmt.Errorf("%w: missing tenant_id", ErrUnauthenticated)
	}
	return Identity{TenantID: claims.TenantID, OrgID: claims.OrgID}, nil
}

// Issue signs a token for id. Used by the operator tooling and tests.
func (v *TokenVerifier) Issue(id Identity, ttl time.Duration) (string, error) {
	if v == nil {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := Claims{
		TenantID: id.TenantID,
		OrgID:    id.OrgID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// LooksLikeJWT reports whether s has the three dot-separated segments of a
// compact JWS.
func LooksLikeJWT(s string) bool {
	return strings.Count(s, ".") == 2 && strings.HasPrefix(s, "eyJ")
}
