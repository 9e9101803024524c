package session

import (
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/hospital-app/hospital-client/models"
)

// Claim URIs the backend puts in its tokens
const (
	subjectClaim = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	roleClaim    = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

// Context resolves and holds the current session. The claims are decoded
// without signature verification: the backend verifies tokens on every
// request, the client only reads them to pick which screens to show.
// Safe for use from multiple goroutines.
type Context struct {
	Store *Store

	mu      sync.RWMutex
	current *models.Session
}

// New creates a session context backed by the given credential store
func New(store *Store) *Context {
	return &Context{Store: store}
}

// Restore loads a persisted credential, if any, and establishes a session
// from it. A missing or undecodable credential leaves the context logged out.
func (c *Context) Restore() *models.Session {
	credential, err := c.Store.Load()
	if err != nil || credential == "" {
		return nil
	}
	s, err := c.Establish(credential)
	if err != nil {
		zap.S().Warnw("discarding persisted credential",
			"error", err,
		)
		_ = c.Store.Clear()
		return nil
	}
	return s
}

// Establish decodes the credential claims, persists the credential and makes
// the resulting session current
func (c *Context) Establish(credential string) (*models.Session, error) {
	s, err := Decode(credential)
	if err != nil {
		return nil, err
	}
	if err := c.Store.Save(credential); err != nil {
		zap.S().Warnw("failed to persist credential",
			"error", err,
		)
	}
	c.mu.Lock()
	c.current = s
	c.mu.Unlock()
	return s, nil
}

// Current returns the active session, or nil when logged out
func (c *Context) Current() *models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Clear forgets the current session and the persisted credential. Safe to
// call when already logged out.
func (c *Context) Clear() error {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	return c.Store.Clear()
}

// Decode reads the subject and role claims out of a bearer credential
func Decode(credential string) (*models.Session, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	_, _, err := parser.ParseUnverified(credential, claims)
	if err != nil {
		return nil, fmt.Errorf("failed to decode credential: %w", err)
	}

	subject, ok := claims[subjectClaim].(string)
	if !ok || subject == "" {
		return nil, fmt.Errorf("credential has no subject claim")
	}
	role, ok := claims[roleClaim].(string)
	if !ok || role == "" {
		return nil, fmt.Errorf("credential has no role claim")
	}

	return &models.Session{
		SubjectID:  subject,
		Role:       models.Role(role),
		Credential: credential,
	}, nil
}
