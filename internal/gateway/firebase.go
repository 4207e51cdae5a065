package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ytakahashi/todo-sync/internal/models"
)

const (
	todosCollection    = "todos"
	projectsCollection = "projects"
)

var _ Gateway = (*Firebase)(nil)

// Firebase stores todos and projects in Firestore and authenticates with
// the Identity Toolkit using the project's public API key.
type Firebase struct {
	client   *firestore.Client
	auth     *identitytoolkit.Service
	sessions SessionStore
	feed     Feed[models.SessionChange]
	now      func() time.Time
}

// NewFirebase connects to the Firestore database of projectID and the
// Identity Toolkit for apiKey.
func NewFirebase(ctx context.Context, projectID, apiKey string, sessions SessionStore) (*Firebase, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	auth, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create Identity Toolkit client: %w", err)
	}

	if sessions == nil {
		sessions = &memorySessions{}
	}

	return &Firebase{
		client:   client,
		auth:     auth,
		sessions: sessions,
		now:      time.Now,
	}, nil
}

func (fb *Firebase) Close() error {
	return fb.client.Close()
}

type todoDoc struct {
	ID          string    `firestore:"id"`
	Title       string    `firestore:"title"`
	Description string    `firestore:"description,omitempty"`
	IsCompleted bool      `firestore:"is_completed"`
	CreatedAt   time.Time `firestore:"created_at"`
	UserID      string    `firestore:"user_id"`
	ProjectID   string    `firestore:"project_id"`
	DueDate     string    `firestore:"due_date,omitempty"`
}

type projectDoc struct {
	ID        string    `firestore:"id"`
	Name      string    `firestore:"name"`
	Color     string    `firestore:"color,omitempty"`
	UserID    string    `firestore:"user_id"`
	CreatedAt time.Time `firestore:"created_at"`
}

func todoToDoc(t models.Todo) todoDoc {
	doc := todoDoc{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		IsCompleted: t.IsCompleted,
		CreatedAt:   t.CreatedAt,
		UserID:      t.UserID,
		ProjectID:   t.ProjectID,
	}
	if t.DueDate != nil {
		doc.DueDate = t.DueDate.String()
	}
	return doc
}

func (d todoDoc) todo() (models.Todo, error) {
	t := models.Todo{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		IsCompleted: d.IsCompleted,
		CreatedAt:   d.CreatedAt,
		UserID:      d.UserID,
		ProjectID:   d.ProjectID,
	}
	if d.DueDate != "" {
		due, err := civil.ParseDate(d.DueDate)
		if err != nil {
			return models.Todo{}, fmt.Errorf("failed to parse due date of todo %s: %w", d.ID, err)
		}
		t.DueDate = &due
	}
	return t, nil
}

func (d projectDoc) project() models.Project {
	return models.Project{
		ID:        d.ID,
		Name:      d.Name,
		Color:     d.Color,
		UserID:    d.UserID,
		CreatedAt: d.CreatedAt,
	}
}

// firestoreError maps Firestore status codes onto the gateway sentinels.
func firestoreError(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, what, err)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForeignKey) || errors.Is(err, ErrConstraint) {
		return err
	}
	return fmt.Errorf("failed to %s: %w", what, err)
}

func (fb *Firebase) SelectTodos(ctx context.Context, userID string) ([]models.Todo, error) {
	iter := fb.client.Collection(todosCollection).
		Where("user_id", "==", userID).
		OrderBy("created_at", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	todos := make([]models.Todo, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, firestoreError(err, "iterate todos")
		}

		var d todoDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal todo: %w", err)
		}
		todo, err := d.todo()
		if err != nil {
			return nil, err
		}
		todos = append(todos, todo)
	}

	return todos, nil
}

// checkProject verifies inside tx that projectID exists and belongs to userID.
func (fb *Firebase) checkProject(tx *firestore.Transaction, userID, projectID string) error {
	if projectID == "" {
		return fmt.Errorf("%w: project_id is required", ErrForeignKey)
	}
	snap, err := tx.Get(fb.client.Collection(projectsCollection).Doc(projectID))
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%w: %s", ErrForeignKey, projectID)
	}
	if err != nil {
		return err
	}
	var p projectDoc
	if err := snap.DataTo(&p); err != nil {
		return fmt.Errorf("failed to unmarshal project: %w", err)
	}
	if p.UserID != userID {
		return fmt.Errorf("%w: %s", ErrForeignKey, projectID)
	}
	return nil
}

func (fb *Firebase) InsertTodo(ctx context.Context, userID string, draft models.TodoDraft) (models.Todo, error) {
	draft = draft.Normalize()
	if draft.Title == "" {
		return models.Todo{}, fmt.Errorf("%w: title is required", ErrConstraint)
	}

	todo := models.Todo{
		ID:          uuid.New().String(),
		Title:       draft.Title,
		Description: draft.Description,
		IsCompleted: draft.IsCompleted,
		CreatedAt:   fb.now().UTC(),
		UserID:      userID,
		ProjectID:   draft.ProjectID,
		DueDate:     draft.DueDate,
	}

	ref := fb.client.Collection(todosCollection).Doc(todo.ID)
	err := fb.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := fb.checkProject(tx, userID, draft.ProjectID); err != nil {
			return err
		}
		return tx.Create(ref, todoToDoc(todo))
	})
	if err != nil {
		return models.Todo{}, firestoreError(err, "create todo")
	}

	return todo, nil
}

// getOwnedTodo reads a todo inside tx; other users' rows read as missing.
func (fb *Firebase) getOwnedTodo(tx *firestore.Transaction, ref *firestore.DocumentRef, userID string) (models.Todo, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		return models.Todo{}, err
	}
	var d todoDoc
	if err := snap.DataTo(&d); err != nil {
		return models.Todo{}, fmt.Errorf("failed to unmarshal todo: %w", err)
	}
	if d.UserID != userID {
		return models.Todo{}, fmt.Errorf("%w: todo %s", ErrNotFound, ref.ID)
	}
	return d.todo()
}

func (fb *Firebase) UpdateTodoByID(ctx context.Context, userID, id string, update models.TodoUpdate) (models.Todo, error) {
	ref := fb.client.Collection(todosCollection).Doc(id)

	var updated models.Todo
	err := fb.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, err := fb.getOwnedTodo(tx, ref, userID)
		if err != nil {
			return err
		}
		updated = update.Apply(existing)
		if updated.Title == "" {
			return fmt.Errorf("%w: title is required", ErrConstraint)
		}
		if updated.ProjectID != existing.ProjectID {
			if err := fb.checkProject(tx, userID, updated.ProjectID); err != nil {
				return err
			}
		}
		return tx.Set(ref, todoToDoc(updated))
	})
	if err != nil {
		return models.Todo{}, firestoreError(err, "update todo %s", id)
	}

	return updated, nil
}

func (fb *Firebase) DeleteTodoByID(ctx context.Context, userID, id string) error {
	ref := fb.client.Collection(todosCollection).Doc(id)

	err := fb.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := fb.getOwnedTodo(tx, ref, userID); err != nil {
			return err
		}
		return tx.Delete(ref)
	})
	if err != nil {
		return firestoreError(err, "delete todo %s", id)
	}

	return nil
}

func (fb *Firebase) SelectProjects(ctx context.Context, userID string) ([]models.Project, error) {
	docs, err := fb.client.Collection(projectsCollection).
		Where("user_id", "==", userID).
		OrderBy("created_at", firestore.Desc).
		Documents(ctx).
		GetAll()
	if err != nil {
		return nil, firestoreError(err, "list projects")
	}

	projects := make([]models.Project, 0, len(docs))
	for _, doc := range docs {
		var d projectDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal project: %w", err)
		}
		projects = append(projects, d.project())
	}

	todos, err := fb.SelectTodos(ctx, userID)
	if err != nil {
		return nil, err
	}
	attachTodos(projects, todos)

	return projects, nil
}

func (fb *Firebase) InsertProject(ctx context.Context, userID string, draft models.ProjectDraft) (models.Project, error) {
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return models.Project{}, fmt.Errorf("%w: name is required", ErrConstraint)
	}

	d := projectDoc{
		ID:        uuid.New().String(),
		Name:      name,
		Color:     draft.Color,
		UserID:    userID,
		CreatedAt: fb.now().UTC(),
	}
	if _, err := fb.client.Collection(projectsCollection).Doc(d.ID).Create(ctx, d); err != nil {
		return models.Project{}, firestoreError(err, "create project")
	}

	project := d.project()
	project.Todos = []models.Todo{}
	return project, nil
}

// DeleteProjectByID removes the project and its todos with a BulkWriter.
func (fb *Firebase) DeleteProjectByID(ctx context.Context, userID, id string) error {
	ref := fb.client.Collection(projectsCollection).Doc(id)
	snap, err := ref.Get(ctx)
	if err != nil {
		return firestoreError(err, "get project %s", id)
	}
	var p projectDoc
	if err := snap.DataTo(&p); err != nil {
		return fmt.Errorf("failed to unmarshal project: %w", err)
	}
	if p.UserID != userID {
		return fmt.Errorf("%w: project %s", ErrNotFound, id)
	}

	todoDocs, err := fb.client.Collection(todosCollection).
		Where("user_id", "==", userID).
		Where("project_id", "==", id).
		Documents(ctx).
		GetAll()
	if err != nil {
		return firestoreError(err, "list todos of project %s", id)
	}

	bw := fb.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(todoDocs)+1)
	for _, doc := range todoDocs {
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return firestoreError(err, "delete todo %s", doc.Ref.ID)
		}
		jobs = append(jobs, job)
	}
	job, err := bw.Delete(ref, firestore.Exists)
	if err != nil {
		bw.End()
		return firestoreError(err, "delete project %s", id)
	}
	jobs = append(jobs, job)
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return firestoreError(err, "delete project %s", id)
		}
	}

	return nil
}
