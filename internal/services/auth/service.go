package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	MinSessionTTL = 24 * time.Hour
	MaxSessionTTL = 90 * 24 * time.Hour
)

type SessionStore interface {
	GetSession(ctx context.Context, sid string) (SessionRecord, error)
}

// Service validates bearer tokens against server-side sessions written by the
// identity service. Sessions claiming to live longer than the configured
// session TTL are rejected.
type Service struct {
	tokens     *Tokens
	sessions   SessionStore
	sessionTTL time.Duration
	now        func() time.Time
}

func NewService(tokens *Tokens, sessions SessionStore, sessionTTL time.Duration) *Service {
	if sessionTTL < MinSessionTTL {
		sessionTTL = MinSessionTTL
	}
	if sessionTTL > MaxSessionTTL {
		sessionTTL = MaxSessionTTL
	}

	return &Service{
		tokens:     tokens,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

func (s *Service) ValidateAccessToken(ctx context.Context, accessToken string) (AccessClaims, error) {
	claims, err := s.tokens.Verify(accessToken)
	if err != nil {
		return AccessClaims{}, ErrUnauthorized
	}

	session, err := s.sessions.GetSession(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return AccessClaims{}, ErrUnauthorized
		}
		return AccessClaims{}, fmt.Errorf("get session: %w", err)
	}

	if session.UserID != claims.UserID || session.Role != claims.Role {
		return AccessClaims{}, ErrUnauthorized
	}
	now := s.now()
	if now.After(session.ExpiresAt) || session.ExpiresAt.After(now.Add(s.sessionTTL)) {
		return AccessClaims{}, ErrUnauthorized
	}

	return claims, nil
}
