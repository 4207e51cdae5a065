package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithOutput(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("todo-sync", "debug", &buf)

	log.WithField("todo_id", "t1").Debug("todo added")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	if entry["message"] != "todo added" {
		t.Errorf("expected message 'todo added', got %v", entry["message"])
	}
	if entry["service"] != "todo-sync" {
		t.Errorf("expected service 'todo-sync', got %v", entry["service"])
	}
	if entry["todo_id"] != "t1" {
		t.Errorf("expected todo_id 't1', got %v", entry["todo_id"])
	}
	if _, ok := entry["ts"]; !ok {
		t.Errorf("expected ts field in %v", entry)
	}
}

func TestNewWithOutput_BadLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput("todo-sync", "loud", &buf)

	log.Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be filtered at info level, got %q", buf.String())
	}
}
