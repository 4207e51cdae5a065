// Package todosync mirrors the signed-in user's todos and projects from the
// gateway and applies confirmed mutations to the local copy.
//
// Local collections only ever hold rows the gateway confirmed. They are
// cleared the moment the user changes, and every write is tagged with the
// generation it started in so a response for a previous user is dropped.
// Concurrent mutations are not serialized: the last response to arrive wins.
package todosync

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ytakahashi/todo-sync/internal/errs"
	"github.com/ytakahashi/todo-sync/internal/gateway"
	"github.com/ytakahashi/todo-sync/internal/models"
	"github.com/ytakahashi/todo-sync/internal/notify"
)

// UserSource reports the signed-in user and its changes.
type UserSource interface {
	User() *models.User
	Subscribe(fn func(*models.User)) *gateway.Subscription
}

var errNotSignedIn = errors.New("not signed in")

// Synchronizer holds the local todo and project collections.
type Synchronizer struct {
	gw     gateway.Tables
	users  UserSource
	notify notify.Notifier
	log    logrus.FieldLogger

	mu       sync.Mutex
	userID   string
	gen      uint64
	todos    []models.Todo
	projects []models.Project
	fetching int
	sub      *gateway.Subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a synchronizer with empty collections.
func New(gw gateway.Tables, users UserSource, n notify.Notifier, log logrus.FieldLogger) *Synchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		gw:     gw,
		users:  users,
		notify: n,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start follows user changes and loads the current user's collections in
// the background.
func (s *Synchronizer) Start() {
	s.mu.Lock()
	if s.sub != nil {
		s.mu.Unlock()
		return
	}
	s.sub = s.users.Subscribe(s.setUser)
	s.mu.Unlock()

	s.setUser(s.users.User())
}

// Close stops following user changes and waits for background loads.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	sub.Unsubscribe()
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until background loads started by user changes have finished.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

func (s *Synchronizer) setUser(u *models.User) {
	id := ""
	if u != nil {
		id = u.ID
	}

	s.mu.Lock()
	if id == s.userID {
		s.mu.Unlock()
		return
	}
	s.userID = id
	s.gen++
	s.todos = nil
	s.projects = nil
	s.mu.Unlock()

	s.log.WithField("user_id", id).Debug("collections reset")
	if id == "" {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// Failures are already notified and logged.
		_ = s.RefetchAll(s.ctx)
	}()
}

// scope returns the current user and generation. ok is false when nobody is
// signed in.
func (s *Synchronizer) scope() (userID string, gen uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.gen, s.userID != ""
}

func (s *Synchronizer) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

// apply runs fn under the lock if the generation is still gen.
func (s *Synchronizer) apply(gen uint64, op string, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		s.log.WithField("op", op).Debug("discarding response for a previous user")
		return false
	}
	fn()
	return true
}

func (s *Synchronizer) fail(ctx context.Context, err *errs.Error) *errs.Error {
	s.log.WithError(err).WithField("op", err.Op).Warn("operation failed")
	s.notify.Notify(ctx, notify.Failure(err))
	return err
}

func (s *Synchronizer) succeed(ctx context.Context, description string) {
	s.notify.Notify(ctx, notify.Success("Success!", description))
}

// mutationError classifies a gateway write failure.
func mutationError(op string, err error) *errs.Error {
	if errors.Is(err, gateway.ErrNotFound) {
		return errs.NotFound(op, err)
	}
	return errs.Mutation(op, err)
}

// RefetchAll replaces both collections with the gateway's. The two reads run
// concurrently and nothing is applied unless both succeed. With nobody
// signed in the collections stay empty and the gateway is not called.
func (s *Synchronizer) RefetchAll(ctx context.Context) error {
	const op = "refetch"
	userID, gen, ok := s.scope()
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.fetching++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.fetching--
		s.mu.Unlock()
	}()

	var (
		todos    []models.Todo
		projects []models.Project
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		todos, err = s.gw.SelectTodos(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = s.gw.SelectProjects(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		if s.ctx.Err() != nil || !s.current(gen) {
			// Shutting down or the user changed: nobody is waiting for this.
			s.log.WithError(err).WithField("op", op).Debug("dropping fetch failure for a previous user")
			return errs.Fetch(op, err)
		}
		return s.fail(ctx, errs.Fetch(op, err))
	}

	for i := range projects {
		projects[i].Todos = nil
	}
	if todos == nil {
		todos = []models.Todo{}
	}
	if projects == nil {
		projects = []models.Project{}
	}
	if s.apply(gen, op, func() {
		s.todos = todos
		s.projects = projects
	}) {
		s.log.WithFields(logrus.Fields{"user_id": userID, "todos": len(todos), "projects": len(projects)}).Debug("collections loaded")
	}
	return nil
}

// AddTodo inserts a todo and puts the confirmed row at the front.
func (s *Synchronizer) AddTodo(ctx context.Context, draft models.TodoDraft) (models.Todo, error) {
	const op = "add todo"
	draft = draft.Normalize()
	if draft.Title == "" {
		return models.Todo{}, s.fail(ctx, errs.Validation(op, "title is required"))
	}
	if draft.ProjectID == "" {
		return models.Todo{}, s.fail(ctx, errs.Validation(op, "project is required"))
	}
	userID, gen, ok := s.scope()
	if !ok {
		return models.Todo{}, s.fail(ctx, errs.Auth(op, errNotSignedIn))
	}

	todo, err := s.gw.InsertTodo(ctx, userID, draft)
	if err != nil {
		return models.Todo{}, s.fail(ctx, mutationError(op, err))
	}

	s.apply(gen, op, func() {
		s.todos = append([]models.Todo{todo}, s.todos...)
	})
	s.log.WithFields(logrus.Fields{"todo_id": todo.ID, "project_id": todo.ProjectID}).Info("todo added")
	s.succeed(ctx, "Todo added successfully")
	return todo, nil
}

// UpdateTodo applies a partial update and replaces the local row with the
// confirmed one.
func (s *Synchronizer) UpdateTodo(ctx context.Context, id string, update models.TodoUpdate) (models.Todo, error) {
	const op = "update todo"
	if strings.TrimSpace(id) == "" {
		return models.Todo{}, s.fail(ctx, errs.Validation(op, "todo id is required"))
	}
	if update.IsEmpty() {
		return models.Todo{}, s.fail(ctx, errs.Validation(op, "nothing to update"))
	}
	if update.Title != nil && strings.TrimSpace(*update.Title) == "" {
		return models.Todo{}, s.fail(ctx, errs.Validation(op, "title is required"))
	}
	if update.ProjectID != nil && strings.TrimSpace(*update.ProjectID) == "" {
		return models.Todo{}, s.fail(ctx, errs.Validation(op, "project is required"))
	}
	userID, gen, ok := s.scope()
	if !ok {
		return models.Todo{}, s.fail(ctx, errs.Auth(op, errNotSignedIn))
	}

	todo, err := s.gw.UpdateTodoByID(ctx, userID, id, update)
	if err != nil {
		return models.Todo{}, s.fail(ctx, mutationError(op, err))
	}

	s.apply(gen, op, func() {
		for i := range s.todos {
			if s.todos[i].ID == todo.ID {
				s.todos[i] = todo
				break
			}
		}
	})
	s.log.WithField("todo_id", todo.ID).Info("todo updated")
	s.succeed(ctx, "Todo updated successfully")
	return todo, nil
}

// ToggleComplete sets a todo's completion flag.
func (s *Synchronizer) ToggleComplete(ctx context.Context, id string, completed bool) (models.Todo, error) {
	return s.UpdateTodo(ctx, id, models.CompletedUpdate(completed))
}

// DeleteTodo removes a todo.
func (s *Synchronizer) DeleteTodo(ctx context.Context, id string) error {
	const op = "delete todo"
	if strings.TrimSpace(id) == "" {
		return s.fail(ctx, errs.Validation(op, "todo id is required"))
	}
	userID, gen, ok := s.scope()
	if !ok {
		return s.fail(ctx, errs.Auth(op, errNotSignedIn))
	}

	if err := s.gw.DeleteTodoByID(ctx, userID, id); err != nil {
		return s.fail(ctx, mutationError(op, err))
	}

	s.apply(gen, op, func() {
		s.todos = withoutTodo(s.todos, id)
	})
	s.log.WithField("todo_id", id).Info("todo deleted")
	s.succeed(ctx, "Todo deleted successfully")
	return nil
}

// AddProject creates a project and reloads both collections. If the reload
// fails the confirmed project is still added locally.
func (s *Synchronizer) AddProject(ctx context.Context, draft models.ProjectDraft) (models.Project, error) {
	const op = "add project"
	draft.Name = strings.TrimSpace(draft.Name)
	draft.Color = strings.TrimSpace(draft.Color)
	if draft.Name == "" {
		return models.Project{}, s.fail(ctx, errs.Validation(op, "project name is required"))
	}
	userID, gen, ok := s.scope()
	if !ok {
		return models.Project{}, s.fail(ctx, errs.Auth(op, errNotSignedIn))
	}

	project, err := s.gw.InsertProject(ctx, userID, draft)
	if err != nil {
		return models.Project{}, s.fail(ctx, mutationError(op, err))
	}
	project.Todos = nil
	s.log.WithField("project_id", project.ID).Info("project added")

	if err := s.RefetchAll(ctx); err != nil {
		s.log.WithError(err).WithField("project_id", project.ID).Warn("keeping created project after failed reload")
		s.apply(gen, op, func() {
			for _, p := range s.projects {
				if p.ID == project.ID {
					return
				}
			}
			s.projects = append([]models.Project{project}, s.projects...)
		})
	}

	s.succeed(ctx, "Project created successfully")
	return project, nil
}

// DeleteProject removes a project. The gateway deletes its todos with it, so
// they are dropped locally as well.
func (s *Synchronizer) DeleteProject(ctx context.Context, id string) error {
	const op = "delete project"
	if strings.TrimSpace(id) == "" {
		return s.fail(ctx, errs.Validation(op, "project id is required"))
	}
	userID, gen, ok := s.scope()
	if !ok {
		return s.fail(ctx, errs.Auth(op, errNotSignedIn))
	}

	if err := s.gw.DeleteProjectByID(ctx, userID, id); err != nil {
		return s.fail(ctx, mutationError(op, err))
	}

	s.apply(gen, op, func() {
		projects := make([]models.Project, 0, len(s.projects))
		live := make(map[string]bool, len(s.projects))
		for _, p := range s.projects {
			if p.ID == id {
				continue
			}
			projects = append(projects, p)
			live[p.ID] = true
		}
		todos := make([]models.Todo, 0, len(s.todos))
		for _, t := range s.todos {
			if live[t.ProjectID] {
				todos = append(todos, t)
			}
		}
		s.projects = projects
		s.todos = todos
	})
	s.log.WithField("project_id", id).Info("project deleted")
	s.succeed(ctx, "Project deleted successfully")
	return nil
}

// Loading reports whether a fetch is in flight.
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetching > 0
}

// Todos returns a copy of the todo collection, newest first.
func (s *Synchronizer) Todos() []models.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTodos(s.todos, func(models.Todo) bool { return true })
}

// Projects returns a copy of the project collection with each project's
// todos filled in from the todo collection.
func (s *Synchronizer) Projects() []models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	projects := make([]models.Project, len(s.projects))
	for i, p := range s.projects {
		projects[i] = s.view(p, true)
	}
	return projects
}

// Project returns one project with its todos.
func (s *Synchronizer) Project(id string) (models.Project, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.ID == id {
			return s.view(p, true), true
		}
	}
	return models.Project{}, false
}

// ProjectTodos returns the todos of one project, optionally hiding completed ones.
func (s *Synchronizer) ProjectTodos(id string, includeCompleted bool) []models.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneTodos(s.todos, func(t models.Todo) bool {
		return t.ProjectID == id && (includeCompleted || !t.IsCompleted)
	})
}

// view must be called with the lock held.
func (s *Synchronizer) view(p models.Project, includeCompleted bool) models.Project {
	p.Todos = cloneTodos(s.todos, func(t models.Todo) bool {
		return t.ProjectID == p.ID && (includeCompleted || !t.IsCompleted)
	})
	return p
}

func cloneTodos(todos []models.Todo, keep func(models.Todo) bool) []models.Todo {
	out := make([]models.Todo, 0, len(todos))
	for _, t := range todos {
		if !keep(t) {
			continue
		}
		if t.DueDate != nil {
			d := *t.DueDate
			t.DueDate = &d
		}
		out = append(out, t)
	}
	return out
}

func withoutTodo(todos []models.Todo, id string) []models.Todo {
	out := make([]models.Todo, 0, len(todos))
	for _, t := range todos {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}
