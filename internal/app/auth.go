// internal/app/auth.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
	"github.com/redis/go-redis/v9"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/allotter/internal/models"
)

var ErrUnauthorized = errors.New("unauthorized")

// IDTokenVerifier turns a Google ID token into the signed-in email.
type IDTokenVerifier interface {
	Verify(idToken string) (string, error)
}

type googleVerifier struct {
	clientID string
}

func (g googleVerifier) Verify(idToken string) (string, error) {
	v := googleAuthIDTokenVerifier.Verifier{}
	if err := v.VerifyIDToken(idToken, []string{g.clientID}); err != nil {
		return "", fmt.Errorf("%w: invalid Google ID token: %v", ErrUnauthorized, err)
	}

	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return "", fmt.Errorf("failed to decode ID token: %w", err)
	}
	return claimSet.Email, nil
}

type Auth struct {
	enabled      bool
	verifier     IDTokenVerifier
	sessions     *SessionManager
	cookieName   string
	cookieSecure bool
	devHeader    string
}

func NewAuth(config *Config) (*Auth, error) {
	if !config.Server.EnableAuth {
		logger.Info.Printf("Auth disabled, teacher email is read from %s", config.Auth.DevEmailHeader)
		return &Auth{enabled: false, devHeader: config.Auth.DevEmailHeader}, nil
	}

	var client *redis.Client
	if config.Auth.RedisURL != "" {
		opt, err := redis.ParseURL(config.Auth.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}

		client = redis.NewClient(opt)
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	sessions := NewSessionManager(config.Auth.JWTSecret, config.SessionTTL(), client, config.Auth.SessionKeyTpl)
	return newAuth(googleVerifier{clientID: config.Auth.GoogleClientID}, sessions, config), nil
}

func newAuth(verifier IDTokenVerifier, sessions *SessionManager, config *Config) *Auth {
	return &Auth{
		enabled:      true,
		verifier:     verifier,
		sessions:     sessions,
		cookieName:   config.Auth.CookieName,
		cookieSecure: config.Auth.CookieSecure,
		devHeader:    config.Auth.DevEmailHeader,
	}
}

func (a *Auth) Enabled() bool {
	return a.enabled
}

// LoginWithGoogle verifies the ID token and opens a session for its email.
func (a *Auth) LoginWithGoogle(ctx context.Context, idToken string) (*Session, error) {
	if !a.enabled {
		return nil, fmt.Errorf("google sign-in is disabled")
	}
	if idToken == "" {
		return nil, fmt.Errorf("%w: missing ID token", ErrUnauthorized)
	}

	email, err := a.verifier.Verify(idToken)
	if err != nil {
		return nil, err
	}
	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("%w: ID token carries no email", ErrUnauthorized)
	}

	return a.sessions.Issue(ctx, email)
}

// Authenticate resolves the teacher email of the request. The session token is
// taken from the session cookie or an Authorization: Bearer header.
func (a *Auth) Authenticate(r *http.Request) (string, error) {
	if !a.enabled {
		email := models.NormalizeEmail(r.Header.Get(a.devHeader))
		if email == "" {
			return "", fmt.Errorf("%w: missing %s header", ErrUnauthorized, a.devHeader)
		}
		return email, nil
	}

	s, err := a.session(r)
	if err != nil {
		return "", err
	}
	return s.Email, nil
}

func (a *Auth) Logout(r *http.Request) error {
	if !a.enabled {
		return nil
	}
	s, err := a.session(r)
	if err != nil {
		return err
	}
	return a.sessions.Revoke(r.Context(), s)
}

func (a *Auth) session(r *http.Request) (*Session, error) {
	token := ""
	if c, err := r.Cookie(a.cookieName); err == nil {
		token = c.Value
	}
	if token == "" {
		authHeader := r.Header.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		return nil, fmt.Errorf("%w: no session", ErrUnauthorized)
	}

	s, err := a.sessions.Validate(r.Context(), token)
	if err != nil {
		logger.Debug.Printf("Session rejected: %v", err)
		return nil, err
	}
	return s, nil
}

func (a *Auth) SessionCookie(s *Session) *http.Cookie {
	return &http.Cookie{
		Name:     a.cookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *Auth) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     a.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (a *Auth) Close() error {
	if a.sessions != nil {
		return a.sessions.Close()
	}
	return nil
}
