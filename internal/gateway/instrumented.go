package gateway

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ytakahashi/todo-sync/internal/models"
)

var _ Gateway = (*Instrumented)(nil)

// Instrumented records request counts and latencies of every gateway call.
type Instrumented struct {
	next     Gateway
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewInstrumented wraps next and registers its metrics on reg.
func NewInstrumented(next Gateway, reg prometheus.Registerer) *Instrumented {
	factory := promauto.With(reg)
	return &Instrumented{
		next: next,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todo_gateway_requests_total",
				Help: "Total number of gateway calls by operation and result",
			},
			[]string{"op", "result"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "todo_gateway_request_duration_seconds",
				Help:    "Duration of gateway calls in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.3, 1, 3},
			},
			[]string{"op"},
		),
	}
}

func (g *Instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	g.requests.WithLabelValues(op, result).Inc()
	g.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (g *Instrumented) GetSession(ctx context.Context) (*models.Session, error) {
	start := time.Now()
	s, err := g.next.GetSession(ctx)
	g.observe("get_session", start, err)
	return s, err
}

func (g *Instrumented) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	start := time.Now()
	s, err := g.next.SignInWithPassword(ctx, email, password)
	g.observe("sign_in", start, err)
	return s, err
}

func (g *Instrumented) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	start := time.Now()
	u, err := g.next.SignUp(ctx, email, password)
	g.observe("sign_up", start, err)
	return u, err
}

func (g *Instrumented) SignOut(ctx context.Context) error {
	start := time.Now()
	err := g.next.SignOut(ctx)
	g.observe("sign_out", start, err)
	return err
}

func (g *Instrumented) OnSessionChange(fn func(models.SessionChange)) *Subscription {
	return g.next.OnSessionChange(fn)
}

func (g *Instrumented) SelectTodos(ctx context.Context, userID string) ([]models.Todo, error) {
	start := time.Now()
	todos, err := g.next.SelectTodos(ctx, userID)
	g.observe("select_todos", start, err)
	return todos, err
}

func (g *Instrumented) InsertTodo(ctx context.Context, userID string, draft models.TodoDraft) (models.Todo, error) {
	start := time.Now()
	todo, err := g.next.InsertTodo(ctx, userID, draft)
	g.observe("insert_todo", start, err)
	return todo, err
}

func (g *Instrumented) UpdateTodoByID(ctx context.Context, userID, id string, update models.TodoUpdate) (models.Todo, error) {
	start := time.Now()
	todo, err := g.next.UpdateTodoByID(ctx, userID, id, update)
	g.observe("update_todo", start, err)
	return todo, err
}

func (g *Instrumented) DeleteTodoByID(ctx context.Context, userID, id string) error {
	start := time.Now()
	err := g.next.DeleteTodoByID(ctx, userID, id)
	g.observe("delete_todo", start, err)
	return err
}

func (g *Instrumented) SelectProjects(ctx context.Context, userID string) ([]models.Project, error) {
	start := time.Now()
	projects, err := g.next.SelectProjects(ctx, userID)
	g.observe("select_projects", start, err)
	return projects, err
}

func (g *Instrumented) InsertProject(ctx context.Context, userID string, draft models.ProjectDraft) (models.Project, error) {
	start := time.Now()
	project, err := g.next.InsertProject(ctx, userID, draft)
	g.observe("insert_project", start, err)
	return project, err
}

func (g *Instrumented) DeleteProjectByID(ctx context.Context, userID, id string) error {
	start := time.Now()
	err := g.next.DeleteProjectByID(ctx, userID, id)
	g.observe("delete_project", start, err)
	return err
}

func (g *Instrumented) Close() error {
	return g.next.Close()
}
