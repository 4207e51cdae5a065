package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"github.com/sirupsen/logrus"

	"github.com/ytakahashi/todo-sync/internal/models"
	"github.com/ytakahashi/todo-sync/internal/notify"
	"github.com/ytakahashi/todo-sync/internal/todosync"
)

// LineReplier is the part of the LINE messaging API used to answer events.
type LineReplier interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
}

// WebhookHandler turns LINE chat messages into collection operations. Only
// the configured owner may use it; events from anyone else are ignored.
type WebhookHandler struct {
	bot    LineReplier
	secret string
	owner  string
	todos  *todosync.Synchronizer
	log    logrus.FieldLogger
}

func NewWebhookHandler(bot LineReplier, secret, owner string, todos *todosync.Synchronizer, log logrus.FieldLogger) *WebhookHandler {
	return &WebhookHandler{
		bot:    bot,
		secret: secret,
		owner:  owner,
		todos:  todos,
		log:    log,
	}
}

func getUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	default:
		return ""
	}
}

func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	cb, err := webhook.ParseRequest(h.secret, c.Request())
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.log.Warn("invalid webhook signature")
			return c.NoContent(http.StatusBadRequest)
		}
		h.log.WithError(err).Error("failed to parse webhook request")
		return c.NoContent(http.StatusInternalServerError)
	}

	ctx := c.Request().Context()
	for _, event := range cb.Events {
		switch e := event.(type) {
		case webhook.MessageEvent:
			message, ok := e.Message.(webhook.TextMessageContent)
			if !ok || !h.allowed(getUserID(e.Source)) {
				continue
			}
			if err := h.handleTextMessage(ctx, e.ReplyToken, message.Text); err != nil {
				h.log.WithError(err).Warn("failed to handle text message")
			}
		case webhook.PostbackEvent:
			if !h.allowed(getUserID(e.Source)) {
				continue
			}
			if err := h.handlePostback(ctx, e.ReplyToken, e.Postback.Data); err != nil {
				h.log.WithError(err).Warn("failed to handle postback")
			}
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) allowed(userID string) bool {
	if h.owner == "" || userID == h.owner {
		return true
	}
	h.log.WithField("line_user_id", userID).Info("ignoring event from unknown LINE user")
	return false
}

func (h *WebhookHandler) handleTextMessage(ctx context.Context, replyToken, text string) error {
	h.log.WithField("text", text).Debug("received text")

	command, arg, _ := strings.Cut(strings.TrimSpace(text), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(command) {
	case "list", "todos":
		return h.showTodoList(replyToken)
	case "projects":
		return h.showProjects(replyToken)
	case "add":
		return h.addTodo(ctx, replyToken, arg)
	case "project":
		return h.addProject(ctx, replyToken, arg)
	case "done":
		return h.completeByNumber(ctx, replyToken, arg)
	case "rm", "delete":
		return h.deleteByNumber(ctx, replyToken, arg)
	case "refresh":
		if err := h.todos.RefetchAll(ctx); err != nil {
			return h.replyError(replyToken, err)
		}
		return h.showTodoList(replyToken)
	case "help":
		return h.showHelp(replyToken)
	}

	// Unrecognized messages get no reply.
	return nil
}

func (h *WebhookHandler) handlePostback(ctx context.Context, replyToken, data string) error {
	action, id, ok := strings.Cut(data, ":")
	if !ok || id == "" {
		return nil
	}

	switch action {
	case "complete":
		todo, err := h.todos.ToggleComplete(ctx, id, true)
		if err != nil {
			return h.replyError(replyToken, err)
		}
		return h.replyMessage(replyToken, fmt.Sprintf("🎉 Completed \"%s\"", todo.Title))
	case "delete":
		if err := h.todos.DeleteTodo(ctx, id); err != nil {
			return h.replyError(replyToken, err)
		}
		return h.replyMessage(replyToken, "🗑️ Todo deleted")
	}
	return nil
}

// openTodos is the numbering used by list, done and rm.
func (h *WebhookHandler) openTodos() []models.Todo {
	var open []models.Todo
	for _, t := range h.todos.Todos() {
		if !t.IsCompleted {
			open = append(open, t)
		}
	}
	return open
}

func (h *WebhookHandler) byNumber(arg string) (models.Todo, bool) {
	n, err := strconv.Atoi(arg)
	open := h.openTodos()
	if err != nil || n < 1 || n > len(open) {
		return models.Todo{}, false
	}
	return open[n-1], true
}

// addTodo accepts "add <project>: <title>" or "add <title>", which files the
// todo under the newest project.
func (h *WebhookHandler) addTodo(ctx context.Context, replyToken, arg string) error {
	projects := h.todos.Projects()
	if len(projects) == 0 {
		return h.replyMessage(replyToken, "Create a project first.\nExample: project Groceries")
	}

	project := projects[0]
	title := arg
	if name, rest, ok := strings.Cut(arg, ":"); ok {
		found := false
		for _, p := range projects {
			if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
				project, found = p, true
				break
			}
		}
		if !found {
			return h.replyMessage(replyToken, fmt.Sprintf("No project named \"%s\".", strings.TrimSpace(name)))
		}
		title = rest
	}

	todo, err := h.todos.AddTodo(ctx, models.TodoDraft{Title: title, ProjectID: project.ID})
	if err != nil {
		return h.replyError(replyToken, err)
	}
	return h.replyMessage(replyToken, fmt.Sprintf("✅ Added \"%s\" to %s", todo.Title, project.Name))
}

func (h *WebhookHandler) addProject(ctx context.Context, replyToken, name string) error {
	project, err := h.todos.AddProject(ctx, models.ProjectDraft{Name: name})
	if err != nil {
		return h.replyError(replyToken, err)
	}
	return h.replyMessage(replyToken, fmt.Sprintf("📁 Created project \"%s\"", project.Name))
}

func (h *WebhookHandler) completeByNumber(ctx context.Context, replyToken, arg string) error {
	todo, ok := h.byNumber(arg)
	if !ok {
		return h.replyMessage(replyToken, "Give the number from the list.\nExample: done 1")
	}
	if _, err := h.todos.ToggleComplete(ctx, todo.ID, true); err != nil {
		return h.replyError(replyToken, err)
	}
	return h.replyMessage(replyToken, fmt.Sprintf("🎉 Completed \"%s\"", todo.Title))
}

func (h *WebhookHandler) deleteByNumber(ctx context.Context, replyToken, arg string) error {
	todo, ok := h.byNumber(arg)
	if !ok {
		return h.replyMessage(replyToken, "Give the number from the list.\nExample: rm 1")
	}
	if err := h.todos.DeleteTodo(ctx, todo.ID); err != nil {
		return h.replyError(replyToken, err)
	}
	return h.replyMessage(replyToken, fmt.Sprintf("🗑️ Deleted \"%s\"", todo.Title))
}

func (h *WebhookHandler) showTodoList(replyToken string) error {
	open := h.openTodos()
	if len(open) == 0 {
		return h.replyMessage(replyToken, "Nothing left to do.")
	}
	return h.reply(replyToken, h.createTodoListFlexMessage(open))
}

func (h *WebhookHandler) createTodoListFlexMessage(todos []models.Todo) *messaging_api.FlexMessage {
	names := make(map[string]string)
	for _, p := range h.todos.Projects() {
		names[p.ID] = p.Name
	}

	var contents []messaging_api.FlexComponentInterface
	for i, todo := range todos {
		detail := names[todo.ProjectID]
		if todo.DueDate != nil {
			detail = fmt.Sprintf("%s · due %s", detail, todo.DueDate)
		}

		box := &messaging_api.FlexBox{
			Layout: "vertical",
			Contents: []messaging_api.FlexComponentInterface{
				&messaging_api.FlexText{
					Text:   fmt.Sprintf("%d. %s", i+1, todo.Title),
					Weight: "bold",
					Size:   "md",
				},
				&messaging_api.FlexText{
					Text:  detail,
					Size:  "sm",
					Color: "#999999",
				},
				&messaging_api.FlexButton{
					Action: &messaging_api.PostbackAction{
						Label: "Done",
						Data:  fmt.Sprintf("complete:%s", todo.ID),
					},
					Style: "primary",
					Color: "#1DB446",
				},
			},
			Margin:  "md",
			Spacing: "sm",
		}
		if i > 0 {
			box.PaddingTop = "md"
		}
		contents = append(contents, box)
	}

	return &messaging_api.FlexMessage{
		AltText: fmt.Sprintf("%d open todos", len(todos)),
		Contents: &messaging_api.FlexBubble{
			Header: &messaging_api.FlexBox{
				Layout: "vertical",
				Contents: []messaging_api.FlexComponentInterface{
					&messaging_api.FlexText{
						Text:   "Todos",
						Weight: "bold",
						Size:   "xl",
					},
				},
				PaddingAll: "md",
			},
			Body: &messaging_api.FlexBox{
				Layout:   "vertical",
				Contents: contents,
				Spacing:  "md",
			},
		},
	}
}

func (h *WebhookHandler) showProjects(replyToken string) error {
	projects := h.todos.Projects()
	if len(projects) == 0 {
		return h.replyMessage(replyToken, "No projects yet.")
	}

	lines := make([]string, 0, len(projects))
	for _, p := range projects {
		lines = append(lines, fmt.Sprintf("• %s (%d/%d)", p.Name, p.Completed(), p.Total()))
	}
	return h.replyMessage(replyToken, fmt.Sprintf("📁 Projects (%d)\n\n%s", len(projects), strings.Join(lines, "\n")))
}

func (h *WebhookHandler) showHelp(replyToken string) error {
	helpText := `📝 Todo bot

list              open todos
projects          projects with progress
add <title>       add to the newest project
add <project>: <title>
project <name>    create a project
done <n>          complete todo n from the list
rm <n>            delete todo n from the list
refresh           reload from the server
help              this message`

	return h.replyMessage(replyToken, helpText)
}

func (h *WebhookHandler) replyError(replyToken string, err error) error {
	return h.replyMessage(replyToken, notify.Text(notify.Failure(err)))
}

func (h *WebhookHandler) replyMessage(replyToken, text string) error {
	return h.reply(replyToken, &messaging_api.TextMessage{Text: text})
}

func (h *WebhookHandler) reply(replyToken string, message messaging_api.MessageInterface) error {
	_, err := h.bot.ReplyMessage(
		&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages:   []messaging_api.MessageInterface{message},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to send reply message: %w", err)
	}
	return nil
}
