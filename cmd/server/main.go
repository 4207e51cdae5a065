package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ytakahashi/todo-sync/internal/app"
	"github.com/ytakahashi/todo-sync/internal/config"
	"github.com/ytakahashi/todo-sync/internal/handlers"
	"github.com/ytakahashi/todo-sync/internal/logger"
)

func main() {
	log := logger.New("todo-sync-server", "info")

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found")
	}

	cfg, err := config.Load(os.Getenv("TODO_CONFIG"))
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{Service: "todo-sync-server"})
	if err != nil {
		log.WithError(err).Fatal("Failed to create app")
	}
	defer a.Close()
	log = a.Log

	if user := a.Start(ctx); user != nil {
		log.WithField("user_id", user.ID).Info("Restored session")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(handlers.RequestLogger(log.WithField("component", "http")))

	handlers.NewAPIHandler(a.Session, a.Todos, a.Notices, a.Registry, log.WithField("component", "api")).Register(e)

	if a.Line != nil {
		webhookHandler := handlers.NewWebhookHandler(a.Line, cfg.LineChannelSecret, cfg.LineUserID, a.Todos, log.WithField("component", "webhook"))
		e.POST("/webhook", webhookHandler.HandleWebhook)
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
}
