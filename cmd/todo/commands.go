package main

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/ytakahashi/todo-sync/internal/app"
	"github.com/ytakahashi/todo-sync/internal/models"
)

func signInCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "signin <email>",
		Short: "Sign in with email and password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Session.SignIn(ctx, args[0], password)
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	return cmd
}

func signUpCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "signup <email>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Session.SignUp(ctx, args[0], password)
			})
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	return cmd
}

func signOutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Session.SignOut(ctx)
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				user := a.Session.User()
				if user == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "not signed in")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", user.Email, user.ID)
				return nil
			})
		},
	}
}

func listCmd() *cobra.Command {
	var (
		projectID string
		all       bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List todos grouped by project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := requireUser(a); err != nil {
					return err
				}
				for _, p := range a.Todos.Projects() {
					if projectID != "" && p.ID != projectID {
						continue
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderProject(p, a.Todos.ProjectTodos(p.ID, all)))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Only show this project")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include completed todos")
	return cmd
}

func parseDue(s string) (*civil.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("invalid due date %q, expected YYYY-MM-DD", s)
	}
	return &d, nil
}

func addCmd() *cobra.Command {
	var projectID, description, due string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a todo",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dueDate, err := parseDue(due)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := requireUser(a); err != nil {
					return err
				}
				pid := projectID
				if pid == "" {
					projects := a.Todos.Projects()
					if len(projects) == 0 {
						return fmt.Errorf("no projects yet, run: todo project add <name>")
					}
					pid = projects[0].ID
				}
				todo, err := a.Todos.AddTodo(ctx, models.TodoDraft{
					Title:       strings.Join(args, " "),
					Description: description,
					ProjectID:   pid,
					DueDate:     dueDate,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTodo(todo))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "Project id (defaults to the newest project)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description")
	cmd.Flags().StringVar(&due, "due", "", "Due date, YYYY-MM-DD")
	return cmd
}

func editCmd() *cobra.Command {
	var (
		title, description, projectID, due string
		noDue                              bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update models.TodoUpdate
			if cmd.Flags().Changed("title") {
				update.Title = &title
			}
			if cmd.Flags().Changed("description") {
				update.Description = &description
			}
			if cmd.Flags().Changed("project") {
				update.ProjectID = &projectID
			}
			dueDate, err := parseDue(due)
			if err != nil {
				return err
			}
			update.DueDate = dueDate
			update.ClearDueDate = noDue

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				todo, err := a.Todos.UpdateTodo(ctx, args[0], update)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTodo(todo))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVar(&projectID, "project", "", "Move to this project")
	cmd.Flags().StringVar(&due, "due", "", "New due date, YYYY-MM-DD")
	cmd.Flags().BoolVar(&noDue, "no-due", false, "Remove the due date")
	return cmd
}

func doneCmd(completed bool) *cobra.Command {
	use, short := "done <id>", "Mark a todo completed"
	if !completed {
		use, short = "undone <id>", "Mark a todo open again"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				todo, err := a.Todos.ToggleComplete(ctx, args[0], completed)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTodo(todo))
				return nil
			})
		},
	}
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a todo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Todos.DeleteTodo(ctx, args[0])
			})
		},
	}
}

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects with progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := requireUser(a); err != nil {
					return err
				}
				for _, p := range a.Todos.Projects() {
					fmt.Fprintln(cmd.OutOrStdout(), renderProjectLine(p))
				}
				return nil
			})
		},
	})

	var color string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				p, err := a.Todos.AddProject(ctx, models.ProjectDraft{Name: strings.Join(args, " "), Color: color})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderProjectLine(p))
				return nil
			})
		},
	}
	add.Flags().StringVar(&color, "color", "", "Hex color, e.g. #FFD966")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a project and its todos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Todos.DeleteProject(ctx, args[0])
			})
		},
	})

	return cmd
}
