package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/ytakahashi/todo-sync/internal/models"
)

// MockUserID is the user every mock sign-in resolves to.
const MockUserID = "mock-user-id"

// MockOptions configures the in-memory gateway.
type MockOptions struct {
	// Latency is the artificial delay of sign-in and sign-up. Sign-out takes
	// 3/5 of it and table operations 1/5.
	Latency time.Duration
	// Seed preloads two projects and three todos for MockUserID.
	Seed bool
	// Sessions persists the mock session. Defaults to process memory.
	Sessions SessionStore
	// Now overrides the clock.
	Now func() time.Time
}

var _ Gateway = (*Mock)(nil)

// Mock is a network-free Gateway with the same contract as Firebase.
type Mock struct {
	opts MockOptions
	feed Feed[models.SessionChange]

	mu       sync.Mutex
	todos    map[string]models.Todo
	projects map[string]models.Project
	last     time.Time
}

// NewMock creates an in-memory gateway.
func NewMock(opts MockOptions) *Mock {
	if opts.Sessions == nil {
		opts.Sessions = &memorySessions{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Mock{
		opts:     opts,
		todos:    make(map[string]models.Todo),
		projects: make(map[string]models.Project),
	}
	if opts.Seed {
		m.seed()
	}
	return m
}

func (m *Mock) seed() {
	now := m.opts.Now()
	game := models.Project{ID: "1", Name: "Game App", Color: "#9D6EFF", UserID: MockUserID, CreatedAt: now.Add(-72 * time.Hour)}
	groceries := models.Project{ID: "2", Name: "Groceries", Color: "#FFD966", UserID: MockUserID, CreatedAt: now.Add(-71 * time.Hour)}
	m.projects[game.ID] = game
	m.projects[groceries.ID] = groceries

	tomorrow := civil.DateOf(now.Add(24 * time.Hour))
	for _, t := range []models.Todo{
		{ID: "1", Title: "Learn React", Description: "Study React hooks and context", CreatedAt: now, ProjectID: game.ID},
		{ID: "2", Title: "Create UI design", Description: "Design the main components", IsCompleted: true, CreatedAt: now.Add(-24 * time.Hour), ProjectID: game.ID},
		{ID: "3", Title: "Grocery Shopping", Description: "Buy milk, eggs, and bread", CreatedAt: now.Add(-48 * time.Hour), ProjectID: groceries.ID, DueDate: &tomorrow},
	} {
		t.UserID = MockUserID
		m.todos[t.ID] = t
	}
	m.last = now
}

// stamp returns a creation time strictly after every earlier one, so
// newest-first ordering is total.
func (m *Mock) stamp() time.Time {
	now := m.opts.Now()
	if !now.After(m.last) {
		now = m.last.Add(time.Nanosecond)
	}
	m.last = now
	return now
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (m *Mock) GetSession(ctx context.Context) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	session, err := m.opts.Sessions.Load()
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	if session.Expired(m.opts.Now()) {
		if err := m.opts.Sessions.Clear(); err != nil {
			return nil, err
		}
		m.feed.Send(models.SessionChange{Event: models.EventSessionExpired})
		return nil, nil
	}
	return session, nil
}

func (m *Mock) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	if err := sleep(ctx, m.opts.Latency); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	session := models.Session{
		User:        models.User{ID: MockUserID, Email: email},
		AccessToken: "mock-token-" + uuid.NewString(),
	}
	if err := m.opts.Sessions.Save(session); err != nil {
		return nil, fmt.Errorf("failed to persist mock session: %w", err)
	}
	m.feed.Send(models.SessionChange{Event: models.EventSignedIn, Session: &session})
	return &session, nil
}

func (m *Mock) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	if err := sleep(ctx, m.opts.Latency); err != nil {
		return nil, err
	}
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidCredentials
	}
	if len(password) < 6 {
		return nil, ErrWeakPassword
	}
	return &models.User{ID: MockUserID, Email: email}, nil
}

func (m *Mock) SignOut(ctx context.Context) error {
	if err := sleep(ctx, m.opts.Latency*3/5); err != nil {
		return err
	}
	if err := m.opts.Sessions.Clear(); err != nil {
		return fmt.Errorf("failed to clear mock session: %w", err)
	}
	m.feed.Send(models.SessionChange{Event: models.EventSignedOut})
	return nil
}

func (m *Mock) OnSessionChange(fn func(models.SessionChange)) *Subscription {
	return m.feed.Subscribe(fn)
}

func (m *Mock) tableDelay(ctx context.Context) error {
	return sleep(ctx, m.opts.Latency/5)
}

func sortTodos(todos []models.Todo) {
	sort.SliceStable(todos, func(i, j int) bool {
		if todos[i].CreatedAt.Equal(todos[j].CreatedAt) {
			return todos[i].ID > todos[j].ID
		}
		return todos[i].CreatedAt.After(todos[j].CreatedAt)
	})
}

func (m *Mock) userTodos(userID string) []models.Todo {
	todos := make([]models.Todo, 0)
	for _, t := range m.todos {
		if t.UserID == userID {
			todos = append(todos, t)
		}
	}
	sortTodos(todos)
	return todos
}

func (m *Mock) SelectTodos(ctx context.Context, userID string) ([]models.Todo, error) {
	if err := m.tableDelay(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userTodos(userID), nil
}

func (m *Mock) ownsProject(userID, projectID string) bool {
	p, ok := m.projects[projectID]
	return ok && p.UserID == userID
}

func (m *Mock) InsertTodo(ctx context.Context, userID string, draft models.TodoDraft) (models.Todo, error) {
	if err := m.tableDelay(ctx); err != nil {
		return models.Todo{}, err
	}
	draft = draft.Normalize()
	if draft.Title == "" {
		return models.Todo{}, fmt.Errorf("%w: title is required", ErrConstraint)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ownsProject(userID, draft.ProjectID) {
		return models.Todo{}, fmt.Errorf("%w: %s", ErrForeignKey, draft.ProjectID)
	}

	todo := models.Todo{
		ID:          uuid.NewString(),
		Title:       draft.Title,
		Description: draft.Description,
		IsCompleted: draft.IsCompleted,
		CreatedAt:   m.stamp(),
		UserID:      userID,
		ProjectID:   draft.ProjectID,
		DueDate:     draft.DueDate,
	}
	m.todos[todo.ID] = todo
	return todo, nil
}

func (m *Mock) UpdateTodoByID(ctx context.Context, userID, id string, update models.TodoUpdate) (models.Todo, error) {
	if err := m.tableDelay(ctx); err != nil {
		return models.Todo{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.todos[id]
	if !ok || existing.UserID != userID {
		return models.Todo{}, fmt.Errorf("%w: todo %s", ErrNotFound, id)
	}
	updated := update.Apply(existing)
	if updated.Title == "" {
		return models.Todo{}, fmt.Errorf("%w: title is required", ErrConstraint)
	}
	if updated.ProjectID != existing.ProjectID && !m.ownsProject(userID, updated.ProjectID) {
		return models.Todo{}, fmt.Errorf("%w: %s", ErrForeignKey, updated.ProjectID)
	}
	m.todos[id] = updated
	return updated, nil
}

func (m *Mock) DeleteTodoByID(ctx context.Context, userID, id string) error {
	if err := m.tableDelay(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.todos[id]
	if !ok || existing.UserID != userID {
		return fmt.Errorf("%w: todo %s", ErrNotFound, id)
	}
	delete(m.todos, id)
	return nil
}

func (m *Mock) SelectProjects(ctx context.Context, userID string) ([]models.Project, error) {
	if err := m.tableDelay(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	projects := make([]models.Project, 0)
	for _, p := range m.projects {
		if p.UserID == userID {
			projects = append(projects, p)
		}
	}
	sort.SliceStable(projects, func(i, j int) bool {
		if projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].ID > projects[j].ID
		}
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
	attachTodos(projects, m.userTodos(userID))
	return projects, nil
}

func (m *Mock) InsertProject(ctx context.Context, userID string, draft models.ProjectDraft) (models.Project, error) {
	if err := m.tableDelay(ctx); err != nil {
		return models.Project{}, err
	}
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return models.Project{}, fmt.Errorf("%w: name is required", ErrConstraint)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	project := models.Project{
		ID:        uuid.NewString(),
		Name:      name,
		Color:     draft.Color,
		UserID:    userID,
		CreatedAt: m.stamp(),
		Todos:     []models.Todo{},
	}
	m.projects[project.ID] = project
	return project, nil
}

func (m *Mock) DeleteProjectByID(ctx context.Context, userID, id string) error {
	if err := m.tableDelay(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ownsProject(userID, id) {
		return fmt.Errorf("%w: project %s", ErrNotFound, id)
	}
	delete(m.projects, id)
	for todoID, t := range m.todos {
		if t.ProjectID == id {
			delete(m.todos, todoID)
		}
	}
	return nil
}

func (m *Mock) Close() error {
	return nil
}
