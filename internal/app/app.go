// Package app wires configuration, the gateway, notifications, the session
// manager and the collection synchronizer into one unit shared by the
// server and the CLI.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/ytakahashi/todo-sync/internal/config"
	"github.com/ytakahashi/todo-sync/internal/gateway"
	"github.com/ytakahashi/todo-sync/internal/logger"
	"github.com/ytakahashi/todo-sync/internal/models"
	"github.com/ytakahashi/todo-sync/internal/notify"
	"github.com/ytakahashi/todo-sync/internal/session"
	"github.com/ytakahashi/todo-sync/internal/todosync"
)

// Options adjusts how New builds the app.
type Options struct {
	// Service names the process in log entries.
	Service string
	// Log overrides the logger built from the config.
	Log *logrus.Entry
	// Terminal, when set, also renders notifications there.
	Terminal io.Writer
	// Gateway overrides the gateway chosen from the config.
	Gateway gateway.Gateway
}

// App is the assembled core.
type App struct {
	Config   *config.Config
	Log      *logrus.Entry
	Registry *prometheus.Registry
	Gateway  gateway.Gateway
	Notices  *notify.Buffer
	// Line is nil unless LINE credentials are configured.
	Line    *messaging_api.MessagingApiAPI
	Session *session.Manager
	Todos   *todosync.Synchronizer
}

// New builds the app. It does not touch the network beyond creating the
// gateway's clients.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if opts.Service == "" {
		opts.Service = "todo-sync"
	}
	log := opts.Log
	if log == nil {
		log = logger.New(opts.Service, cfg.LogLevel)
	}

	gw := opts.Gateway
	if gw == nil {
		var err error
		gw, err = newGateway(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
	}

	reg := prometheus.NewRegistry()
	instrumented := gateway.NewInstrumented(gw, reg)

	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: reg,
		Gateway:  instrumented,
		Notices:  notify.NewBuffer(0),
	}

	notifiers := notify.Multi{notify.NewLog(log.WithField("component", "notify")), a.Notices}
	if opts.Terminal != nil {
		notifiers = append(notifiers, notify.NewTerminal(opts.Terminal))
	}
	if cfg.LineEnabled() {
		bot, err := messaging_api.NewMessagingApiAPI(cfg.LineChannelToken)
		if err != nil {
			_ = instrumented.Close()
			return nil, fmt.Errorf("failed to create LINE bot client: %w", err)
		}
		a.Line = bot
		if cfg.LineUserID != "" {
			notifiers = append(notifiers, notify.NewLine(bot, cfg.LineUserID, log.WithField("component", "line")))
		}
	}

	a.Session = session.NewManager(instrumented, notifiers, log.WithField("component", "session"))
	a.Todos = todosync.New(instrumented, a.Session, notifiers, log.WithField("component", "todosync"))
	return a, nil
}

func newGateway(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (gateway.Gateway, error) {
	sessions := gateway.NewSessionFile(cfg.SessionFile)
	if cfg.UseMock() {
		log.WithFields(logrus.Fields{"latency": cfg.MockLatency, "seed": cfg.MockSeed}).Warn("backend not configured, using in-memory mock")
		return gateway.NewMock(gateway.MockOptions{
			Latency:  cfg.MockLatency,
			Seed:     cfg.MockSeed,
			Sessions: sessions,
		}), nil
	}

	fb, err := gateway.NewFirebase(ctx, cfg.BackendProject, cfg.BackendAPIKey, sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firebase gateway: %w", err)
	}
	log.WithField("project", cfg.BackendProject).Info("using Firebase backend")
	return fb, nil
}

// Start restores the session and starts following it.
func (a *App) Start(ctx context.Context) *models.User {
	user := a.Session.Start(ctx)
	a.Todos.Start()
	return user
}

// Close stops the synchronizer and the session manager and closes the gateway.
func (a *App) Close() error {
	a.Todos.Close()
	a.Session.Close()
	return a.Gateway.Close()
}
