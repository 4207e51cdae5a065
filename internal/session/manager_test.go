package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ytakahashi/todo-sync/internal/errs"
	"github.com/ytakahashi/todo-sync/internal/gateway"
	"github.com/ytakahashi/todo-sync/internal/logger"
	"github.com/ytakahashi/todo-sync/internal/models"
	"github.com/ytakahashi/todo-sync/internal/notify"
)

type recordingNotifier struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recordingNotifier) last(t *testing.T) notify.Notification {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		t.Fatal("expected a notification")
	}
	return r.items[len(r.items)-1]
}

func newManager(t *testing.T, gw gateway.Auth) (*Manager, *recordingNotifier) {
	t.Helper()
	rec := &recordingNotifier{}
	m := NewManager(gw, rec, logger.Discard())
	t.Cleanup(m.Close)
	return m, rec
}

func TestStartWithoutSession(t *testing.T) {
	m, _ := newManager(t, gateway.NewMock(gateway.MockOptions{}))

	if !m.Loading() || m.State() != StateUnknown {
		t.Fatalf("expected unknown and loading before start, got %s loading=%v", m.State(), m.Loading())
	}
	if u := m.Start(context.Background()); u != nil {
		t.Fatalf("expected no user, got %+v", u)
	}
	if m.Loading() || m.State() != StateAnonymous {
		t.Errorf("expected anonymous and idle, got %s loading=%v", m.State(), m.Loading())
	}
}

func TestStartRestoresPersistedSession(t *testing.T) {
	store := gateway.NewSessionFile(t.TempDir() + "/session.toml")
	if err := store.Save(models.Session{User: models.User{ID: "u1", Email: "a@b.c"}, AccessToken: "tok"}); err != nil {
		t.Fatal(err)
	}
	m, _ := newManager(t, gateway.NewMock(gateway.MockOptions{Sessions: store}))

	u := m.Start(context.Background())
	if u == nil || u.ID != "u1" {
		t.Fatalf("expected restored user u1, got %+v", u)
	}
	if m.State() != StateAuthenticated {
		t.Errorf("expected authenticated, got %s", m.State())
	}
}

func TestStartWithExpiredSession(t *testing.T) {
	store := gateway.NewSessionFile(t.TempDir() + "/session.toml")
	expired := models.Session{User: models.User{ID: "u1"}, AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Hour)}
	if err := store.Save(expired); err != nil {
		t.Fatal(err)
	}
	m, _ := newManager(t, gateway.NewMock(gateway.MockOptions{Sessions: store}))

	if u := m.Start(context.Background()); u != nil {
		t.Errorf("expected expired session to resolve to no user, got %+v", u)
	}
	if m.State() != StateAnonymous {
		t.Errorf("expected anonymous, got %s", m.State())
	}
}

type brokenAuth struct {
	*gateway.Mock
}

func (brokenAuth) GetSession(context.Context) (*models.Session, error) {
	return nil, gateway.ErrUnavailable
}

func TestStartGatewayFailureResolvesAnonymous(t *testing.T) {
	m, rec := newManager(t, brokenAuth{gateway.NewMock(gateway.MockOptions{})})

	if u := m.Start(context.Background()); u != nil {
		t.Fatalf("expected no user, got %+v", u)
	}
	if m.State() != StateAnonymous || m.Loading() {
		t.Errorf("expected anonymous and idle, got %s loading=%v", m.State(), m.Loading())
	}
	if len(rec.items) != 0 {
		t.Errorf("expected session restore failure to stay silent, got %+v", rec.items)
	}
}

func TestSignInFollowsSessionChange(t *testing.T) {
	m, rec := newManager(t, gateway.NewMock(gateway.MockOptions{}))
	m.Start(context.Background())

	var seen []*models.User
	sub := m.Subscribe(func(u *models.User) { seen = append(seen, u) })
	defer sub.Unsubscribe()

	if err := m.SignIn(context.Background(), " a@b.c ", "secret"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	u := m.User()
	if u == nil || u.ID != gateway.MockUserID || u.Email != "a@b.c" {
		t.Fatalf("unexpected user %+v", u)
	}
	if n := rec.last(t); n.Title != "Welcome back!" || n.Description != "Successfully signed in" {
		t.Errorf("unexpected notification %+v", n)
	}
	if len(seen) != 1 || seen[0].ID != gateway.MockUserID {
		t.Errorf("expected one user change, got %+v", seen)
	}

	// Same identity again does not publish another change.
	if err := m.SignIn(context.Background(), "a@b.c", "secret"); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 1 {
		t.Errorf("expected no change for the same user, got %d", len(seen))
	}
}

func TestSignInValidation(t *testing.T) {
	m, rec := newManager(t, gateway.NewMock(gateway.MockOptions{}))
	m.Start(context.Background())

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "empty email", email: "  ", password: "secret"},
		{name: "empty password", email: "a@b.c", password: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.SignIn(context.Background(), tt.email, tt.password)
			if !errors.Is(err, errs.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if n := rec.last(t); n.Variant != notify.VariantDestructive {
				t.Errorf("expected destructive notification, got %+v", n)
			}
			if m.User() != nil {
				t.Errorf("expected no user after failed sign in")
			}
		})
	}
}

func TestSignUp(t *testing.T) {
	m, rec := newManager(t, gateway.NewMock(gateway.MockOptions{}))
	m.Start(context.Background())

	if err := m.SignUp(context.Background(), "new@b.c", "longenough"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if n := rec.last(t); n.Title != "Success!" || n.Description != "Please check your email for verification" {
		t.Errorf("unexpected notification %+v", n)
	}
	if m.User() != nil {
		t.Errorf("expected sign up to leave the user signed out")
	}

	err := m.SignUp(context.Background(), "new@b.c", "short")
	if !errors.Is(err, errs.ErrAuth) || !errors.Is(err, gateway.ErrWeakPassword) {
		t.Fatalf("expected auth error wrapping weak password, got %v", err)
	}
	if n := rec.last(t); n.Variant != notify.VariantDestructive {
		t.Errorf("expected destructive notification, got %+v", n)
	}
}

func TestSignOut(t *testing.T) {
	m, _ := newManager(t, gateway.NewMock(gateway.MockOptions{}))
	m.Start(context.Background())
	if err := m.SignIn(context.Background(), "a@b.c", "secret"); err != nil {
		t.Fatal(err)
	}

	var seen []*models.User
	m.Subscribe(func(u *models.User) { seen = append(seen, u) })

	if err := m.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if m.User() != nil || m.State() != StateAnonymous {
		t.Errorf("expected anonymous after sign out, got %s %+v", m.State(), m.User())
	}
	if len(seen) != 1 || seen[0] != nil {
		t.Errorf("expected a single nil user change, got %+v", seen)
	}
}

func TestLoadingDuringSignIn(t *testing.T) {
	m, _ := newManager(t, gateway.NewMock(gateway.MockOptions{Latency: 50 * time.Millisecond}))
	m.Start(context.Background())

	done := make(chan error, 1)
	go func() { done <- m.SignIn(context.Background(), "a@b.c", "secret") }()

	deadline := time.Now().Add(time.Second)
	for !m.Loading() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !m.Loading() {
		t.Error("expected loading while sign in is in flight")
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if m.Loading() {
		t.Error("expected idle after sign in")
	}
}

func TestUserReturnsCopy(t *testing.T) {
	m, _ := newManager(t, gateway.NewMock(gateway.MockOptions{}))
	m.Start(context.Background())
	if err := m.SignIn(context.Background(), "a@b.c", "secret"); err != nil {
		t.Fatal(err)
	}
	m.User().Email = "changed"
	if m.User().Email != "a@b.c" {
		t.Error("expected User to return a copy")
	}
}

type failingSignOut struct {
	*gateway.Mock
}

func (failingSignOut) SignOut(context.Context) error {
	return gateway.ErrUnavailable
}

func TestSignOutFailureKeepsUser(t *testing.T) {
	m, rec := newManager(t, failingSignOut{gateway.NewMock(gateway.MockOptions{})})
	m.Start(context.Background())
	if err := m.SignIn(context.Background(), "a@b.c", "secret"); err != nil {
		t.Fatal(err)
	}

	err := m.SignOut(context.Background())
	if !errors.Is(err, errs.ErrAuth) || !errors.Is(err, gateway.ErrUnavailable) {
		t.Fatalf("expected auth error wrapping the transport failure, got %v", err)
	}
	if n := rec.last(t); n.Variant != notify.VariantDestructive {
		t.Errorf("expected destructive notification, got %+v", n)
	}
	if u := m.User(); u == nil || u.ID != gateway.MockUserID || m.State() != StateAuthenticated {
		t.Errorf("expected user kept after failed sign out, got %s %+v", m.State(), u)
	}
	if m.Loading() {
		t.Error("expected idle after failed sign out")
	}
}

func TestCloseStopsFollowingSessionChanges(t *testing.T) {
	gw := gateway.NewMock(gateway.MockOptions{})
	m, _ := newManager(t, gw)
	m.Start(context.Background())

	var seen []*models.User
	m.Subscribe(func(u *models.User) { seen = append(seen, u) })
	m.Close()

	if _, err := gw.SignInWithPassword(context.Background(), "a@b.c", "secret"); err != nil {
		t.Fatal(err)
	}
	if m.User() != nil || m.State() != StateAnonymous {
		t.Errorf("expected closed manager to ignore session changes, got %s %+v", m.State(), m.User())
	}
	if len(seen) != 0 {
		t.Errorf("expected no user changes after close, got %+v", seen)
	}
}

// slowSession holds the initial session check until release is closed, then
// reports no session.
type slowSession struct {
	*gateway.Mock
	entered chan struct{}
	release chan struct{}
}

func (s slowSession) GetSession(ctx context.Context) (*models.Session, error) {
	close(s.entered)
	<-s.release
	return nil, nil
}

func TestStartKeepsNewerSessionChange(t *testing.T) {
	mock := gateway.NewMock(gateway.MockOptions{})
	gw := slowSession{Mock: mock, entered: make(chan struct{}), release: make(chan struct{})}
	m, _ := newManager(t, gw)

	done := make(chan *models.User, 1)
	go func() { done <- m.Start(context.Background()) }()

	<-gw.entered
	if _, err := mock.SignInWithPassword(context.Background(), "a@b.c", "secret"); err != nil {
		t.Fatal(err)
	}
	close(gw.release)

	if u := <-done; u == nil || u.ID != gateway.MockUserID {
		t.Fatalf("expected the sign in to win over the older session check, got %+v", u)
	}
	if u := m.User(); u == nil || m.State() != StateAuthenticated {
		t.Errorf("expected authenticated, got %s %+v", m.State(), u)
	}
}

func TestSubscribersSeeFinalUser(t *testing.T) {
	m, _ := newManager(t, gateway.NewMock(gateway.MockOptions{}))
	m.Start(context.Background())

	var (
		mu   sync.Mutex
		last string
	)
	m.Subscribe(func(u *models.User) {
		mu.Lock()
		defer mu.Unlock()
		last = userID(u)
	})

	ctx := context.Background()
	for i := 0; i < 200; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.SignIn(ctx, "a@b.c", "secret")
		}()
		go func() {
			defer wg.Done()
			_ = m.SignOut(ctx)
		}()
		wg.Wait()

		mu.Lock()
		got := last
		mu.Unlock()
		if want := userID(m.User()); got != want {
			t.Fatalf("round %d: subscriber saw %q, manager holds %q", i, got, want)
		}
	}
}
