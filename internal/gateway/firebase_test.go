package gateway

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ytakahashi/todo-sync/internal/models"
)

func TestTodoDoc_RoundTrip(t *testing.T) {
	due := civil.Date{Year: 2026, Month: time.March, Day: 14}
	todo := models.Todo{
		ID:          "t1",
		Title:       "Buy milk",
		Description: "2 litres",
		IsCompleted: true,
		CreatedAt:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		UserID:      "u1",
		ProjectID:   "p1",
		DueDate:     &due,
	}

	doc := todoToDoc(todo)
	if doc.DueDate != "2026-03-14" {
		t.Errorf("expected due date stored as 2026-03-14, got %q", doc.DueDate)
	}

	back, err := doc.todo()
	if err != nil {
		t.Fatalf("failed to convert doc: %v", err)
	}
	if back.DueDate == nil || *back.DueDate != due {
		t.Errorf("expected due date %v, got %v", due, back.DueDate)
	}
	back.DueDate, todo.DueDate = nil, nil
	if back != todo {
		t.Errorf("expected %+v, got %+v", todo, back)
	}

	if _, err := (todoDoc{ID: "t2", DueDate: "someday"}).todo(); err == nil {
		t.Errorf("expected error for malformed due date")
	}
}

func TestAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"bad password", &googleapi.Error{Code: http.StatusBadRequest, Message: "INVALID_PASSWORD"}, ErrInvalidCredentials},
		{"unified credentials", &googleapi.Error{Code: http.StatusBadRequest, Message: "INVALID_LOGIN_CREDENTIALS"}, ErrInvalidCredentials},
		{"weak password", &googleapi.Error{Code: http.StatusBadRequest, Message: "WEAK_PASSWORD : Password should be at least 6 characters"}, ErrWeakPassword},
		{"email exists", &googleapi.Error{Code: http.StatusBadRequest, Message: "EMAIL_EXISTS"}, ErrEmailExists},
		{"expired token", &googleapi.Error{Code: http.StatusBadRequest, Message: "TOKEN_EXPIRED"}, ErrNoSession},
		{"server error", &googleapi.Error{Code: http.StatusServiceUnavailable, Message: "backend error"}, ErrUnavailable},
		{"transport", errors.New("dial tcp: connection refused"), ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := authError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFirestoreError(t *testing.T) {
	if err := firestoreError(status.Error(codes.NotFound, "no doc"), "delete todo %s", "t1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := firestoreError(status.Error(codes.Unavailable, "down"), "list todos"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	fk := errors.Join(ErrForeignKey)
	if err := firestoreError(fk, "create todo"); !errors.Is(err, ErrForeignKey) {
		t.Errorf("expected ErrForeignKey to pass through, got %v", err)
	}
}
