// Package auth verifies the HS256 access tokens issued by the identity
// service and carries the caller's identity through request contexts.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrMissingToken = errors.New("missing bearer token")
)

// Claims are the access-token claims. Anonymous tokens carry no subject.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Identity is the verified caller. UserID is empty for anonymous callers.
type Identity struct {
	UserID string
	Email  string
	Role   string
	Token  string
}

func (id Identity) Authenticated() bool {
	return id.UserID != ""
}

type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: secret must not be empty")
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Verify checks the signature and expiry of an access token.
func (v *Verifier) Verify(token string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, ErrInvalidToken
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.Subject, Email: claims.Email, Role: claims.Role, Token: token}, nil
}

// Issue signs a token for userID. It backs local development and tests.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := v.now()
	role := "authenticated"
	if userID == "" {
		role = "anon"
	}
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the caller identity, or an anonymous one.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(ctxKey{}).(Identity)
	return id
}
