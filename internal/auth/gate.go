package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/i474232898/agro-portal/internal/logger"
	"github.com/i474232898/agro-portal/internal/session"
)

// Listener receives the freshly resolved principal after every sign-in and
// sign-out.
type Listener func(Principal)

// Gate turns session tokens into principals. The role is looked up in the
// directory on every Resolve, so a revoked role takes effect on the next
// request without touching the session.
type Gate struct {
	dir      Directory
	sessions session.Store

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

func NewGate(dir Directory, sessions session.Store) *Gate {
	return &Gate{
		dir:       dir,
		sessions:  sessions,
		listeners: make(map[int]Listener),
	}
}

// Watch registers fn and returns a func that unregisters it.
func (g *Gate) Watch(fn Listener) func() {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

func (g *Gate) notify(p Principal) {
	g.mu.RLock()
	fns := make([]Listener, 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.RUnlock()

	for _, fn := range fns {
		fn(p)
	}
}

// SignIn checks credentials and opens a session. Bad credentials yield
// ErrInvalidCredentials; backend failures yield *ProviderError.
func (g *Gate) SignIn(ctx context.Context, email, password string) (session.Session, Principal, error) {
	user, err := g.dir.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return session.Session{}, Anonymous(), ErrInvalidCredentials
		}
		return session.Session{}, Anonymous(), &ProviderError{Op: "authenticate", Err: err}
	}

	role, err := g.dir.RoleOf(ctx, user.ID)
	if err != nil {
		return session.Session{}, Anonymous(), &ProviderError{Op: "role lookup", Err: err}
	}

	sess, err := g.sessions.Create(ctx, user.ID, user.Email)
	if err != nil {
		return session.Session{}, Anonymous(), &ProviderError{Op: "create session", Err: err}
	}

	p := newPrincipal(user.ID, user.Email, role)
	logger.Info("auth: %s signed in as %s", user.Email, role)
	g.notify(p)
	return sess, p, nil
}

// SignOut ends the session. Unknown tokens are not an error.
func (g *Gate) SignOut(ctx context.Context, token string) error {
	if token != "" {
		if err := g.sessions.Delete(ctx, token); err != nil && !errors.Is(err, session.ErrNotFound) {
			return &ProviderError{Op: "delete session", Err: err}
		}
	}
	g.notify(Anonymous())
	return nil
}

// Resolve returns the current principal for token. Any failure degrades to
// the least privileged answer: anonymous for a bad session, role user when the
// role table cannot be read.
func (g *Gate) Resolve(ctx context.Context, token string) Principal {
	if token == "" {
		return Anonymous()
	}

	sess, err := g.sessions.Get(ctx, token)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			logger.Warn("auth: session lookup failed: %v", err)
		}
		return Anonymous()
	}

	role, err := g.dir.RoleOf(ctx, sess.UserID)
	if err != nil {
		logger.Warn("auth: role lookup for %s failed: %v", sess.UserID, err)
		role = RoleUser
	}
	return newPrincipal(sess.UserID, sess.Email, role)
}

// ProvisionAdmin creates the user when missing and grants the admin role. An
// existing user keeps its password.
func (g *Gate) ProvisionAdmin(ctx context.Context, email, password string) (User, error) {
	user, err := g.dir.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		user, err = g.dir.CreateUser(ctx, email, password)
		if err != nil {
			if errors.Is(err, ErrEmailTaken) {
				return User{}, err
			}
			return User{}, &ProviderError{Op: "create user", Err: err}
		}
	case err != nil:
		return User{}, &ProviderError{Op: "find user", Err: err}
	}

	if err := g.dir.AssignRole(ctx, user.ID, RoleAdmin); err != nil {
		return User{}, &ProviderError{Op: "assign role", Err: err}
	}
	logger.Info("auth: %s provisioned as admin", user.Email)
	return user, nil
}

// Revoke drops a user's admin role.
func (g *Gate) Revoke(ctx context.Context, userID string) error {
	if err := g.dir.AssignRole(ctx, userID, RoleUser); err != nil {
		return &ProviderError{Op: "revoke role", Err: err}
	}
	return nil
}
