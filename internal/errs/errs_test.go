package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundIsMutation(t *testing.T) {
	err := NotFound("delete todo", errors.New("row missing"))

	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not-found error to match ErrNotFound")
	}
	if !errors.Is(err, ErrMutation) {
		t.Errorf("expected not-found error to match ErrMutation")
	}
	if errors.Is(err, ErrFetch) {
		t.Errorf("expected not-found error not to match ErrFetch")
	}
	if errors.Is(Mutation("x", nil), ErrNotFound) {
		t.Errorf("expected plain mutation error not to match ErrNotFound")
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", Validation("add todo", "title is required"))

	if KindOf(wrapped) != KindValidation {
		t.Errorf("expected validation kind, got %v", KindOf(wrapped))
	}
	if !errors.Is(wrapped, ErrValidation) {
		t.Errorf("expected wrapped error to match ErrValidation")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Errorf("expected unknown kind for unclassified error")
	}
}

func TestErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := Fetch("refetch", cause)

	if err.Error() != "refetch: connection refused" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to stay in the chain")
	}
	if err.Title() != "Failed to fetch todos" {
		t.Errorf("unexpected title %q", err.Title())
	}
	if err.Detail() != "connection refused" {
		t.Errorf("unexpected detail %q", err.Detail())
	}
}

func TestAsWrapsUnclassified(t *testing.T) {
	err := As("sign in", errors.New("boom"))
	if err.Kind != KindUnknown || err.Op != "sign in" {
		t.Errorf("expected unknown error for op 'sign in', got %+v", err)
	}

	auth := Auth("sign in", errors.New("bad password"))
	if As("other", auth) != auth {
		t.Errorf("expected As to return the classified error unchanged")
	}
}
