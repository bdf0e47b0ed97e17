package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rreenactt/AI-Videos-Tool/internal/apiclient"
	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
	"github.com/rreenactt/AI-Videos-Tool/internal/session"
)

func newHomeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "home",
		Short: "List projects and media counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := a.client.Home(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading home: %w", err)
			}
			a.printf("projects: %d  images: %d  videos: %d\n", home.Counts.Projects, home.Counts.Images, home.Counts.Videos)
			for _, p := range home.Lists.Projects {
				a.printf("  %-40s %-8s %s\n", p.ID, p.Mode, p.Title)
			}
			return nil
		},
	}
}

func newNewCommand(a *app) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "new [title]",
		Short: "Create a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := apiclient.CreateProjectRequest{Mode: domain.NormalizeProjectMode(mode)}
			if len(args) == 1 {
				req.Title = args[0]
			}
			meta, err := a.client.CreateProject(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("creating project: %w", err)
			}
			a.printf("%s\n", meta.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(domain.ProjectModeStory), "Project mode (story or fusion)")
	return cmd
}

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Load a project and print its state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			printSnapshot(a.out, s.Snapshot())
			return nil
		},
	}
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.New(a.client, args[0], a.sessionOptions())
			if err != nil {
				return err
			}
			if err := s.DeleteProject(cmd.Context()); err != nil {
				s.Close()
				return fmt.Errorf("deleting project: %w", err)
			}
			a.printf("deleted %s\n", args[0])
			return nil
		},
	}
}

// openSession creates and loads a session. A failed load is returned as an
// error; the session is closed in that case.
func (a *app) openSession(ctx context.Context, projectID string) (*session.Session, error) {
	s, err := session.New(a.client, projectID, a.sessionOptions())
	if err != nil {
		return nil, err
	}
	if err := s.Load(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("loading project %s: %w", projectID, err)
	}
	return s, nil
}
