// Package session owns the "who is signed in" state.
//
// The Manager restores a persisted session on Start, follows the gateway's
// session-change notifications, and runs sign-in, sign-up and sign-out. The
// user only ever changes in response to a notification or a confirmed
// sign-out; sign-in results are not applied directly.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ytakahashi/todo-sync/internal/errs"
	"github.com/ytakahashi/todo-sync/internal/gateway"
	"github.com/ytakahashi/todo-sync/internal/models"
	"github.com/ytakahashi/todo-sync/internal/notify"
)

// State is the authentication state.
type State int

const (
	// StateUnknown lasts until the initial session check resolves.
	StateUnknown State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Manager tracks the current user.
type Manager struct {
	gw     gateway.Auth
	notify notify.Notifier
	log    logrus.FieldLogger

	// publish orders user transitions so subscribers see them in the
	// order they were applied. Held across mu, never inside it.
	publish sync.Mutex

	mu       sync.Mutex
	state    State
	user     *models.User
	changes  int
	inflight int
	sub      *gateway.Subscription

	users gateway.Feed[*models.User]
}

// NewManager creates a manager in the unknown state. Loading reports true
// until Start resolves the initial session.
func NewManager(gw gateway.Auth, n notify.Notifier, log logrus.FieldLogger) *Manager {
	return &Manager{gw: gw, notify: n, log: log}
}

// Start subscribes to session changes and resolves the initial session.
// A gateway failure resolves to anonymous; it is logged, never returned.
func (m *Manager) Start(ctx context.Context) *models.User {
	m.mu.Lock()
	if m.sub == nil {
		m.sub = m.gw.OnSessionChange(m.handleChange)
	}
	changes := m.changes
	m.mu.Unlock()

	var user *models.User
	session, err := m.gw.GetSession(ctx)
	if err != nil {
		m.log.WithError(err).Warn("failed to restore session")
	} else if session != nil && session.User.ID != "" {
		u := session.User
		user = &u
	}

	return m.setUser(user, changes)
}

// Close releases the session-change subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()
	sub.Unsubscribe()
}

func (m *Manager) handleChange(c models.SessionChange) {
	m.log.WithField("event", c.Event).Debug("session changed")

	m.mu.Lock()
	m.changes++
	m.mu.Unlock()

	if c.Session == nil || c.Session.User.ID == "" {
		m.setUser(nil, -1)
		return
	}
	u := c.Session.User
	m.setUser(&u, -1)
}

// setUser moves the state machine and publishes identity changes. When
// since is not negative the write only happens if no session change has
// arrived since the counter read that value. It returns the user in effect.
func (m *Manager) setUser(user *models.User, since int) *models.User {
	m.publish.Lock()
	defer m.publish.Unlock()

	m.mu.Lock()
	if since >= 0 && m.changes != since {
		// A newer session change already decided the user.
		current := cloneUser(m.user)
		m.mu.Unlock()
		return current
	}
	prev := m.user
	m.user = cloneUser(user)
	if user == nil {
		m.state = StateAnonymous
	} else {
		m.state = StateAuthenticated
	}
	m.mu.Unlock()

	if userID(prev) != userID(user) {
		m.log.WithFields(logrus.Fields{"user_id": userID(user), "previous_user_id": userID(prev)}).Info("user changed")
		m.users.Send(cloneUser(user))
	}
	return cloneUser(user)
}

// Subscribe registers fn for every change of the signed-in user. fn gets
// nil when the user signs out. Changes arrive in the order they were applied;
// fn must not sign in or out itself.
func (m *Manager) Subscribe(fn func(*models.User)) *gateway.Subscription {
	return m.users.Subscribe(fn)
}

// User returns a copy of the current user, or nil.
func (m *Manager) User() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneUser(m.user)
}

// State returns the authentication state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Loading is true until the initial session resolves and while any
// sign-in, sign-up or sign-out is in flight.
func (m *Manager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateUnknown || m.inflight > 0
}

func (m *Manager) begin() func() {
	m.mu.Lock()
	m.inflight++
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.inflight--
		m.mu.Unlock()
	}
}

func (m *Manager) fail(ctx context.Context, err *errs.Error) error {
	m.log.WithError(err).WithField("op", err.Op).Warn("auth operation failed")
	m.notify.Notify(ctx, notify.Failure(err))
	return err
}

func validateCredentials(op, email, password string) *errs.Error {
	if strings.TrimSpace(email) == "" {
		return errs.Validation(op, "email is required")
	}
	if password == "" {
		return errs.Validation(op, "password is required")
	}
	return nil
}

// SignIn authenticates with email and password. The user is set by the
// session-change notification that follows, not by this call.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	const op = "sign in"
	if err := validateCredentials(op, email, password); err != nil {
		return m.fail(ctx, err)
	}

	done := m.begin()
	defer done()

	if _, err := m.gw.SignInWithPassword(ctx, strings.TrimSpace(email), password); err != nil {
		return m.fail(ctx, errs.Auth(op, err))
	}

	m.notify.Notify(ctx, notify.Success("Welcome back!", "Successfully signed in"))
	return nil
}

// SignUp registers an account. The account needs email verification, so
// the user stays signed out.
func (m *Manager) SignUp(ctx context.Context, email, password string) error {
	const op = "sign up"
	if err := validateCredentials(op, email, password); err != nil {
		return m.fail(ctx, err)
	}

	done := m.begin()
	defer done()

	if _, err := m.gw.SignUp(ctx, strings.TrimSpace(email), password); err != nil {
		return m.fail(ctx, errs.Auth(op, err))
	}

	m.notify.Notify(ctx, notify.Success("Success!", "Please check your email for verification"))
	return nil
}

// SignOut ends the session. On success the user is cleared.
func (m *Manager) SignOut(ctx context.Context) error {
	const op = "sign out"
	done := m.begin()
	defer done()

	if err := m.gw.SignOut(ctx); err != nil {
		return m.fail(ctx, errs.Auth(op, err))
	}

	m.setUser(nil, -1)
	return nil
}

func userID(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
