package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const timeFormat = "2006-01-02 15:04:05"

type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Session struct {
	ID        string
	Email     string
	Token     string
	ExpiresAt time.Time
}

// SessionManager issues HS256 session tokens. With a redis client each
// session is also registered under keyTpl so logout can revoke it.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	redis  *redis.Client
	keyTpl string
}

func NewSessionManager(secret string, ttl time.Duration, redis *redis.Client, keyTpl string) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		redis:  redis,
		keyTpl: keyTpl,
	}
}

func (sm *SessionManager) key(id string) string {
	return fmt.Sprintf(sm.keyTpl, id)
}

func (sm *SessionManager) Issue(ctx context.Context, email string) (*Session, error) {
	now := time.Now().UTC()
	id := uuid.NewString()
	expiresAt := now.Add(sm.ttl)

	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	if sm.redis != nil {
		key := sm.key(id)
		pipe := sm.redis.Pipeline()
		pipe.HSet(ctx, key, map[string]interface{}{
			"email":            email,
			"created_dttm_utc": now.Format(timeFormat),
		})
		pipe.Expire(ctx, key, sm.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to register session: %w", err)
		}
	}

	return &Session{ID: id, Email: email, Token: token, ExpiresAt: expiresAt}, nil
}

// Validate checks signature and expiry, and that the session was not revoked.
func (sm *SessionManager) Validate(ctx context.Context, token string) (*Session, error) {
	var claims SessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return sm.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid session token", ErrUnauthorized)
	}
	if claims.Email == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: incomplete session token", ErrUnauthorized)
	}

	if sm.redis != nil {
		email, err := sm.redis.HGet(ctx, sm.key(claims.ID), "email").Result()
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: session revoked", ErrUnauthorized)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check session: %w", err)
		}
		if email != claims.Email {
			return nil, fmt.Errorf("%w: session mismatch", ErrUnauthorized)
		}
	}

	s := &Session{ID: claims.ID, Email: claims.Email, Token: token}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

func (sm *SessionManager) Revoke(ctx context.Context, s *Session) error {
	if sm.redis == nil || s == nil {
		return nil
	}
	if err := sm.redis.Del(ctx, sm.key(s.ID)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func (sm *SessionManager) Close() error {
	if sm.redis != nil {
		return sm.redis.Close()
	}
	return nil
}
