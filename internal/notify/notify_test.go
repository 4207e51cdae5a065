package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/ytakahashi/todo-sync/internal/errs"
	"github.com/ytakahashi/todo-sync/internal/logger"
)

func TestFailure(t *testing.T) {
	n := Failure(errs.Fetch("refetch", errors.New("connection refused")))
	if n.Title != "Failed to fetch todos" {
		t.Errorf("unexpected title %q", n.Title)
	}
	if n.Description != "connection refused" {
		t.Errorf("unexpected description %q", n.Description)
	}
	if n.Variant != VariantDestructive {
		t.Errorf("expected destructive variant, got %q", n.Variant)
	}

	plain := Failure(errors.New("boom"))
	if plain.Title != "Error" || plain.Description != "boom" {
		t.Errorf("unexpected notification for unclassified error: %+v", plain)
	}
}

func TestBuffer(t *testing.T) {
	buf := NewBuffer(2)
	ctx := context.Background()

	buf.Notify(ctx, Success("one", ""))
	buf.Notify(ctx, Success("two", ""))
	buf.Notify(ctx, Success("three", ""))

	items := buf.Drain()
	if len(items) != 2 || items[0].Title != "two" || items[1].Title != "three" {
		t.Errorf("expected the two newest notifications, got %+v", items)
	}
	if again := buf.Drain(); len(again) != 0 {
		t.Errorf("expected empty buffer after drain, got %+v", again)
	}
}

func TestMulti(t *testing.T) {
	a, b := NewBuffer(0), NewBuffer(0)
	Multi{a, nil, b}.Notify(context.Background(), Success("Success!", "Todo added successfully"))

	if len(a.Drain()) != 1 || len(b.Drain()) != 1 {
		t.Errorf("expected every notifier to receive the notification")
	}
}

func TestTerminal(t *testing.T) {
	var out bytes.Buffer
	NewTerminal(&out).Notify(context.Background(), Success("Welcome back!", "Successfully signed in"))

	text := out.String()
	if !strings.Contains(text, "Welcome back!") || !strings.Contains(text, "Successfully signed in") {
		t.Errorf("expected title and description in output, got %q", text)
	}
}

type fakePusher struct {
	requests []*messaging_api.PushMessageRequest
	keys     []string
	err      error
}

func (f *fakePusher) PushMessage(req *messaging_api.PushMessageRequest, key string) (*messaging_api.PushMessageResponse, error) {
	f.requests = append(f.requests, req)
	f.keys = append(f.keys, key)
	return &messaging_api.PushMessageResponse{}, f.err
}

func TestLine(t *testing.T) {
	pusher := &fakePusher{}
	NewLine(pusher, "U123", logger.Discard()).Notify(context.Background(), Failure(errs.Auth("sign in", errors.New("invalid login credentials"))))

	if len(pusher.requests) != 1 {
		t.Fatalf("expected one push, got %d", len(pusher.requests))
	}
	req := pusher.requests[0]
	if req.To != "U123" {
		t.Errorf("expected push to U123, got %q", req.To)
	}
	msg, ok := req.Messages[0].(*messaging_api.TextMessage)
	if !ok {
		t.Fatalf("expected text message, got %T", req.Messages[0])
	}
	if msg.Text != "⚠️ Error\ninvalid login credentials" {
		t.Errorf("unexpected text %q", msg.Text)
	}
	if len(pusher.keys[0]) != 36 {
		t.Errorf("expected a UUID retry key, got %q", pusher.keys[0])
	}

	pusher.err = errors.New("quota exceeded")
	NewLine(pusher, "U123", logger.Discard()).Notify(context.Background(), Success("ok", ""))
}
