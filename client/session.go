package client

import (
	"context"
	"errors"
	"sync"

	"github.com/brokerconnect/service-booking/pkg/apperror"
)

// Session holds the bearer token and the last known user. It is explicit
// state owned by the caller; nothing is global.
type Session struct {
	mu      sync.RWMutex
	token   string
	user    *User
	onClose []func()
}

// NewSession creates a session from stored credentials. user may be nil.
func NewSession(token string, user *User) *Session {
	s := &Session{token: token}
	if user != nil {
		u := *user
		s.user = &u
	}
	return s
}

// Token returns the bearer token, or "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the cached user, or nil.
func (s *Session) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Login replaces the credentials.
func (s *Session) Login(token string, user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &user
}

// OnLogout registers fn to run when the session is cleared.
func (s *Session) OnLogout(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
}

// Logout clears the credentials and runs the teardown hooks.
func (s *Session) Logout() {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	hooks := append([]func(){}, s.onClose...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Init refreshes the user from GET /me. On a network failure the cached user
// is kept; a rejected token logs the session out.
func (s *Session) Init(ctx context.Context, c *Client) error {
	if s.Token() == "" {
		return ErrNoSession
	}

	u, err := c.Me(ctx)
	switch {
	case err == nil:
		s.mu.Lock()
		s.user = u
		s.mu.Unlock()
		return nil
	case IsNetworkError(err) && s.User() != nil:
		c.logger.Warn("session refresh failed, using cached user")
		return nil
	case errors.Is(err, apperror.ErrUnauthorized):
		s.Logout()
		return err
	default:
		return err
	}
}
