package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ytakahashi/todo-sync/internal/app"
	"github.com/ytakahashi/todo-sync/internal/config"
	"github.com/ytakahashi/todo-sync/internal/errs"
	"github.com/ytakahashi/todo-sync/internal/logger"
)

var Version = "dev"

var (
	configPath string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "todo",
		Short:         "Manage todos and projects from the terminal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a todo-sync.toml config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(signInCmd())
	rootCmd.AddCommand(signUpCmd())
	rootCmd.AddCommand(signOutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(doneCmd(true))
	rootCmd.AddCommand(doneCmd(false))
	rootCmd.AddCommand(removeCmd())
	rootCmd.AddCommand(projectCmd())

	if err := rootCmd.Execute(); err != nil {
		// Classified errors were already shown as a notification.
		if errs.KindOf(err) == errs.KindUnknown {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// withApp builds the app, restores the session, waits for the collections
// to load and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := "error"
	if verbose {
		level = "debug"
	}
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, app.Options{
		Service:  "todo-cli",
		Log:      logger.NewWithOutput("todo-cli", level, os.Stderr),
		Terminal: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	defer a.Close()

	a.Start(ctx)
	a.Todos.Wait()
	return fn(ctx, a)
}

func requireUser(a *app.App) error {
	if a.Session.User() == nil {
		return fmt.Errorf("not signed in, run: todo signin <email> -p <password>")
	}
	return nil
}
