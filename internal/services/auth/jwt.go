package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const clockLeeway = 30 * time.Second

// Tokens signs and verifies HS256 access tokens bound to a server-side session.
type Tokens struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

type sessionClaims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func NewTokens(secret, issuer string, accessTTL time.Duration) *Tokens {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}

	return &Tokens{
		secret:    []byte(secret),
		issuer:    strings.TrimSpace(issuer),
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

// Sign mints an access token for an existing session. The token never outlives the session.
func (t *Tokens) Sign(session SessionRecord) (string, time.Time, error) {
	if len(t.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("jwt secret is empty")
	}
	if session.UserID <= 0 || strings.TrimSpace(session.SID) == "" {
		return "", time.Time{}, ErrInvalidInput
	}

	now := t.now().UTC()
	expiresAt := now.Add(t.accessTTL)
	if !session.ExpiresAt.IsZero() && session.ExpiresAt.Before(expiresAt) {
		expiresAt = session.ExpiresAt.UTC()
	}
	if !expiresAt.After(now) {
		return "", time.Time{}, ErrUnauthorized
	}

	claims := sessionClaims{
		SessionID: session.SID,
		Role:      session.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   strconv.FormatInt(session.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, issuer and expiry. Any failure maps to ErrUnauthorized.
func (t *Tokens) Verify(raw string) (AccessClaims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(t.secret) == 0 {
		return AccessClaims{}, ErrUnauthorized
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockLeeway),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := &sessionClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...); err != nil {
		return AccessClaims{}, ErrUnauthorized
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 || strings.TrimSpace(claims.SessionID) == "" {
		return AccessClaims{}, ErrUnauthorized
	}

	return AccessClaims{
		UserID:    userID,
		SID:       claims.SessionID,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
