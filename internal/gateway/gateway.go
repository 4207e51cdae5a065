// Package gateway abstracts the hosted backend: session handling, password
// auth and table operations on the todos and projects collections.
//
// Two implementations share the Gateway contract: Firebase talks to Firestore
// and the Identity Toolkit, Mock keeps everything in memory. The choice is
// made once, when the gateway is constructed.
package gateway

import (
	"context"

	"github.com/ytakahashi/todo-sync/internal/models"
)

// Auth covers session retrieval and password authentication.
type Auth interface {
	// GetSession returns the persisted session, or nil when nobody is signed in.
	GetSession(ctx context.Context) (*models.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	// SignUp registers an account. The account needs email verification, so
	// no session is established.
	SignUp(ctx context.Context, email, password string) (*models.User, error)
	SignOut(ctx context.Context) error
	// OnSessionChange registers fn for every session change.
	OnSessionChange(fn func(models.SessionChange)) *Subscription
}

// Tables covers the todos and projects collections. Every call is scoped to
// userID; rows owned by someone else behave as missing.
type Tables interface {
	// SelectTodos returns the user's todos, newest first.
	SelectTodos(ctx context.Context, userID string) ([]models.Todo, error)
	InsertTodo(ctx context.Context, userID string, draft models.TodoDraft) (models.Todo, error)
	UpdateTodoByID(ctx context.Context, userID, id string, update models.TodoUpdate) (models.Todo, error)
	DeleteTodoByID(ctx context.Context, userID, id string) error

	// SelectProjects returns the user's projects, newest first, with their
	// todos attached.
	SelectProjects(ctx context.Context, userID string) ([]models.Project, error)
	InsertProject(ctx context.Context, userID string, draft models.ProjectDraft) (models.Project, error)
	// DeleteProjectByID deletes the project and every todo that belongs to it.
	DeleteProjectByID(ctx context.Context, userID, id string) error
}

// Gateway is the full backend contract.
type Gateway interface {
	Auth
	Tables
	Close() error
}

// attachTodos fills each project's todo view from the flat, ordered list.
func attachTodos(projects []models.Project, todos []models.Todo) {
	byProject := make(map[string][]models.Todo, len(projects))
	for _, t := range todos {
		byProject[t.ProjectID] = append(byProject[t.ProjectID], t)
	}
	for i := range projects {
		projects[i].Todos = byProject[projects[i].ID]
		if projects[i].Todos == nil {
			projects[i].Todos = []models.Todo{}
		}
	}
}
