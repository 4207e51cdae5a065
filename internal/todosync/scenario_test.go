package todosync

import (
	"context"
	"testing"

	"github.com/ytakahashi/todo-sync/internal/gateway"
	"github.com/ytakahashi/todo-sync/internal/logger"
	"github.com/ytakahashi/todo-sync/internal/models"
	"github.com/ytakahashi/todo-sync/internal/session"
)

func TestGroceriesScenario(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewMock(gateway.MockOptions{})
	rec := &recordingNotifier{}

	users := session.NewManager(gw, rec, logger.Discard())
	defer users.Close()
	if u := users.Start(ctx); u != nil {
		t.Fatalf("expected nobody signed in, got %+v", u)
	}

	s := New(gw, users, rec, logger.Discard())
	s.Start()
	defer s.Close()

	if err := users.SignIn(ctx, "shopper@example.com", "secret"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	s.Wait()
	if len(s.Todos()) != 0 || len(s.Projects()) != 0 {
		t.Fatalf("expected an empty store")
	}

	groceries, err := s.AddProject(ctx, models.ProjectDraft{Name: "Groceries", Color: "#FFD966"})
	if err != nil {
		t.Fatalf("add project: %v", err)
	}
	milk, err := s.AddTodo(ctx, models.TodoDraft{Title: "Buy milk", ProjectID: groceries.ID})
	if err != nil {
		t.Fatalf("add todo: %v", err)
	}

	p, ok := s.Project(groceries.ID)
	if !ok || p.Total() != 1 || p.Completed() != 0 || p.Todos[0].ID != milk.ID {
		t.Fatalf("expected Groceries with the open milk todo, got %+v", p)
	}

	if _, err := s.ToggleComplete(ctx, milk.ID, true); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if p, _ := s.Project(groceries.ID); p.Completed() != 1 {
		t.Errorf("expected Groceries progress 1/1, got %d/%d", p.Completed(), p.Total())
	}
	if todos := s.ProjectTodos(groceries.ID, false); len(todos) != 0 {
		t.Errorf("expected completed todo hidden, got %+v", todos)
	}

	if err := s.DeleteProject(ctx, groceries.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	if len(s.Todos()) != 0 || len(s.Projects()) != 0 {
		t.Errorf("expected project and its todos gone")
	}
	if err := s.RefetchAll(ctx); err != nil {
		t.Fatal(err)
	}
	if len(s.Todos()) != 0 {
		t.Errorf("expected the backend to have cascaded the delete")
	}

	if _, err := s.AddProject(ctx, models.ProjectDraft{Name: "Weekend"}); err != nil {
		t.Fatal(err)
	}
	if err := users.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if len(s.Todos()) != 0 || len(s.Projects()) != 0 {
		t.Errorf("expected collections cleared on sign out")
	}
}
