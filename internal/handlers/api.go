package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/ytakahashi/todo-sync/internal/errs"
	"github.com/ytakahashi/todo-sync/internal/models"
	"github.com/ytakahashi/todo-sync/internal/notify"
	"github.com/ytakahashi/todo-sync/internal/session"
	"github.com/ytakahashi/todo-sync/internal/todosync"
)

// APIHandler exposes the session and the collections as a JSON API.
type APIHandler struct {
	session *session.Manager
	todos   *todosync.Synchronizer
	notices *notify.Buffer
	metrics prometheus.Gatherer
	log     logrus.FieldLogger
}

func NewAPIHandler(sess *session.Manager, todos *todosync.Synchronizer, notices *notify.Buffer, metrics prometheus.Gatherer, log logrus.FieldLogger) *APIHandler {
	return &APIHandler{
		session: sess,
		todos:   todos,
		notices: notices,
		metrics: metrics,
		log:     log,
	}
}

// Register mounts the API routes on e.
func (h *APIHandler) Register(e *echo.Echo) {
	e.GET("/session", h.GetSession)
	e.POST("/session/signin", h.SignIn)
	e.POST("/session/signup", h.SignUp)
	e.POST("/session/signout", h.SignOut)

	e.GET("/todos", h.ListTodos)
	e.POST("/todos", h.CreateTodo)
	e.PATCH("/todos/:id", h.UpdateTodo)
	e.DELETE("/todos/:id", h.DeleteTodo)
	e.POST("/todos/:id/toggle", h.ToggleTodo)

	e.GET("/projects", h.ListProjects)
	e.GET("/projects/:id", h.GetProject)
	e.POST("/projects", h.CreateProject)
	e.DELETE("/projects/:id", h.DeleteProject)

	e.POST("/refetch", h.Refetch)
	e.GET("/notifications", h.Notifications)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.metrics, promhttp.HandlerOpts{})))
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User    *models.User `json:"user"`
	State   string       `json:"state"`
	Loading bool         `json:"loading"`
}

type toggleRequest struct {
	Completed bool `json:"completed"`
}

// statusOf maps a classified error to an HTTP status.
func statusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindAuth:
		return http.StatusUnauthorized
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindMutation:
		return http.StatusUnprocessableEntity
	case errs.KindFetch:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *APIHandler) fail(c echo.Context, err error) error {
	e := errs.As(c.Path(), err)
	status := statusOf(e)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.JSON(status, map[string]string{"error": e.Title(), "message": e.Detail()})
}

func (h *APIHandler) bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return errs.Validation(c.Path(), "malformed request body")
	}
	return nil
}

func (h *APIHandler) sessionState(c echo.Context, status int) error {
	return c.JSON(status, sessionResponse{
		User:    h.session.User(),
		State:   h.session.State().String(),
		Loading: h.session.Loading(),
	})
}

func (h *APIHandler) GetSession(c echo.Context) error {
	return h.sessionState(c, http.StatusOK)
}

func (h *APIHandler) SignIn(c echo.Context) error {
	var req credentials
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	if err := h.session.SignIn(c.Request().Context(), req.Email, req.Password); err != nil {
		return h.fail(c, err)
	}
	return h.sessionState(c, http.StatusOK)
}

func (h *APIHandler) SignUp(c echo.Context) error {
	var req credentials
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	if err := h.session.SignUp(c.Request().Context(), req.Email, req.Password); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "verification_sent"})
}

func (h *APIHandler) SignOut(c echo.Context) error {
	if err := h.session.SignOut(c.Request().Context()); err != nil {
		return h.fail(c, err)
	}
	return h.sessionState(c, http.StatusOK)
}

func (h *APIHandler) ListTodos(c echo.Context) error {
	projectID := c.QueryParam("project_id")
	if projectID == "" {
		return c.JSON(http.StatusOK, h.todos.Todos())
	}

	includeCompleted := true
	if v := c.QueryParam("include_completed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return h.fail(c, errs.Validation(c.Path(), "include_completed must be a boolean"))
		}
		includeCompleted = b
	}
	return c.JSON(http.StatusOK, h.todos.ProjectTodos(projectID, includeCompleted))
}

func (h *APIHandler) CreateTodo(c echo.Context) error {
	var draft models.TodoDraft
	if err := h.bind(c, &draft); err != nil {
		return h.fail(c, err)
	}
	todo, err := h.todos.AddTodo(c.Request().Context(), draft)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, todo)
}

func (h *APIHandler) UpdateTodo(c echo.Context) error {
	var update models.TodoUpdate
	if err := h.bind(c, &update); err != nil {
		return h.fail(c, err)
	}
	todo, err := h.todos.UpdateTodo(c.Request().Context(), c.Param("id"), update)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, todo)
}

func (h *APIHandler) ToggleTodo(c echo.Context) error {
	var req toggleRequest
	if err := h.bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	todo, err := h.todos.ToggleComplete(c.Request().Context(), c.Param("id"), req.Completed)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, todo)
}

func (h *APIHandler) DeleteTodo(c echo.Context) error {
	if err := h.todos.DeleteTodo(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *APIHandler) ListProjects(c echo.Context) error {
	return c.JSON(http.StatusOK, h.todos.Projects())
}

func (h *APIHandler) GetProject(c echo.Context) error {
	project, ok := h.todos.Project(c.Param("id"))
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Error", "message": "project not found"})
	}
	return c.JSON(http.StatusOK, project)
}

func (h *APIHandler) CreateProject(c echo.Context) error {
	var draft models.ProjectDraft
	if err := h.bind(c, &draft); err != nil {
		return h.fail(c, err)
	}
	project, err := h.todos.AddProject(c.Request().Context(), draft)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, project)
}

func (h *APIHandler) DeleteProject(c echo.Context) error {
	if err := h.todos.DeleteProject(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *APIHandler) Refetch(c echo.Context) error {
	if err := h.todos.RefetchAll(c.Request().Context()); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"todos":    h.todos.Todos(),
		"projects": h.todos.Projects(),
		"loading":  h.todos.Loading(),
	})
}

func (h *APIHandler) Notifications(c echo.Context) error {
	return c.JSON(http.StatusOK, h.notices.Drain())
}
