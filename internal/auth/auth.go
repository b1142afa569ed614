// Package auth issues and validates bearer tokens for the ticker API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"stockticker/internal/store"
)

var (
	// ErrInvalidCredentials means the username or password did not match.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidToken means the token is unknown or expired.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUserExists is returned by Register for a taken username.
	ErrUserExists = errors.New("username already exists")
)

// DefaultUsers are created on startup when missing.
var DefaultUsers = map[string]string{
	"admin": "admin123",
	"user":  "user123",
}

type tokenInfo struct {
	username string
	expires  time.Time
}

// Service authenticates users against a UserStore and tracks issued
// tokens in memory.
type Service struct {
	users  store.UserStore
	ttl    time.Duration
	cost   int
	now    func() time.Time
	logger *slog.Logger

	mu     sync.Mutex
	tokens map[string]tokenInfo
}

// NewService creates a Service issuing tokens valid for ttl.
func NewService(users store.UserStore, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:  users,
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		logger: logger,
		tokens: make(map[string]tokenInfo),
	}
}

// EnsureDefaultUsers creates each of DefaultUsers that does not exist yet.
func (s *Service) EnsureDefaultUsers(ctx context.Context) error {
	for name, pw := range DefaultUsers {
		if _, err := s.users.GetUser(ctx, name); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if _, err := s.create(ctx, name, pw); err != nil {
			return fmt.Errorf("creating default user %s: %w", name, err)
		}
		s.logger.Info("created default user", "username", name)
	}
	return nil
}

// Register creates a user and logs them in.
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	if _, err := s.create(ctx, username, password); err != nil {
		if errors.Is(err, store.ErrExists) {
			return "", ErrUserExists
		}
		return "", err
	}
	return s.issue(username), nil
}

// Login checks the credentials and returns a new token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.GetUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.issue(username), nil
}

// Validate returns the username a token was issued to. Expired tokens are
// evicted.
func (s *Service) Validate(token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.tokens[token]
	if !ok {
		return "", ErrInvalidToken
	}
	if !s.now().Before(info.expires) {
		delete(s.tokens, token)
		return "", ErrInvalidToken
	}
	return info.username, nil
}

// Revoke forgets a token.
func (s *Service) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

func (s *Service) create(ctx context.Context, username, password string) (store.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return store.User{}, fmt.Errorf("hashing password: %w", err)
	}
	return s.users.CreateUser(ctx, username, string(hash))
}

func (s *Service) issue(username string) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = tokenInfo{username: username, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return token
}

// ---------------------------------------------------------------------------
// HTTP middleware
// ---------------------------------------------------------------------------

type ctxKey struct{}

// Username returns the authenticated user stored by Middleware.
func Username(ctx context.Context) string {
	u, _ := ctx.Value(ctxKey{}).(string)
	return u
}

// TokenFromRequest reads a bearer token from the Authorization header, or
// from the token query parameter (browsers cannot set headers on websocket
// upgrades).
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests without a valid token by calling deny, and
// otherwise stores the username in the request context.
func (s *Service) Middleware(deny func(w http.ResponseWriter, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := s.Validate(TokenFromRequest(r))
			if err != nil {
				deny(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
		})
	}
}
