package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
	"github.com/rreenactt/AI-Videos-Tool/internal/session"
)

type runOptions struct {
	script   string
	title    string
	story    string
	minShots int
	style    string
	generate bool
	timeout  time.Duration
}

func newRunCommand(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run <project-id>",
		Short: "Edit a project, derive its storyboard and generate images",
		Long: `Run applies draft edits to a project and waits until they are saved.

Edits come from a YAML script (--script) and flags; flags win. When a story is
set the storyboard is derived again. With --generate an image job is submitted
and followed until it finishes. Regenerate steps from the script run last.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := &Script{}
			if opts.script != "" {
				loaded, err := loadScript(opts.script)
				if err != nil {
					return err
				}
				sc = loaded
			}
			flags := cmd.Flags()
			if flags.Changed("title") {
				sc.Title = &opts.title
			}
			if flags.Changed("story") {
				sc.Story = &opts.story
			}
			if flags.Changed("min-shots") {
				sc.MinShots = &opts.minShots
			}
			if flags.Changed("style") {
				sc.Style = opts.style
			}
			if flags.Changed("generate") {
				sc.Generate = opts.generate
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return a.run(ctx, args[0], sc)
		},
	}
	cmd.Flags().StringVar(&opts.script, "script", "", "YAML script with draft edits and steps")
	cmd.Flags().StringVar(&opts.title, "title", "", "Project title")
	cmd.Flags().StringVar(&opts.story, "story", "", "Narrative to derive the storyboard from")
	cmd.Flags().IntVar(&opts.minShots, "min-shots", domain.DefaultMinShots, "Minimum shots per scene")
	cmd.Flags().StringVar(&opts.style, "style", "", "Style key (anime, cinematic, watercolor, noir, storybook)")
	cmd.Flags().BoolVar(&opts.generate, "generate", false, "Generate images for the prompts")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "Give up after this long")
	return cmd
}

func (a *app) run(ctx context.Context, projectID string, sc *Script) error {
	s, err := a.openSession(ctx, projectID)
	if err != nil {
		return err
	}
	defer s.Close()

	if sc.Title != nil {
		s.SetTitle(*sc.Title)
	}
	if sc.Story != nil {
		s.SetNarrative(*sc.Story)
	}
	if sc.MinShots != nil {
		s.SetMinShots(*sc.MinShots)
	}
	if sc.Style != "" {
		key, err := domain.ParseStyleKey(sc.Style)
		if err != nil {
			return err
		}
		if err := s.SetStyle(key); err != nil {
			return err
		}
	}

	if sc.ShouldDerive() {
		if err := s.DeriveStoryboard(ctx); err != nil {
			return fmt.Errorf("deriving storyboard: %w", err)
		}
		a.printf("storyboard: %d prompts\n", len(s.Snapshot().Prompts))
	}
	if err := a.settle(ctx, s); err != nil {
		return err
	}

	if sc.Generate {
		if err := a.generate(ctx, s); err != nil {
			return err
		}
	}
	for _, step := range sc.Regenerate {
		if err := a.regenerate(ctx, s, step.Index-1, step.Prompt); err != nil {
			return err
		}
	}
	if err := a.settle(ctx, s); err != nil {
		return err
	}
	printSnapshot(a.out, s.Snapshot())
	return nil
}

// settle waits for autosave to catch up. A save failure surfaces as an error.
func (a *app) settle(ctx context.Context, s *session.Session) error {
	snap, err := waitFor(ctx, s, settled, nil)
	if err != nil {
		return fmt.Errorf("waiting for autosave: %w", err)
	}
	if snap.Dirty() {
		return fmt.Errorf("autosave failed: %s", snap.SaveError)
	}
	return nil
}

func (a *app) generate(ctx context.Context, s *session.Session) error {
	jobID, err := s.SubmitImages(ctx)
	if err != nil {
		return fmt.Errorf("submitting images: %w", err)
	}
	a.printf("job %s submitted\n", jobID)

	last := ""
	report := func(snap session.Snapshot) {
		if line := progressLine(snap.Progress); line != last {
			last = line
			a.printf("  %s\n", line)
		}
	}
	snap, err := waitFor(ctx, s, func(snap session.Snapshot) bool { return snap.JobID == "" }, report)
	if err != nil {
		return fmt.Errorf("waiting for job %s: %w", jobID, err)
	}
	switch snap.Progress.Status {
	case domain.JobStatusCompleted:
		a.printf("job %s completed: %d images\n", jobID, len(snap.Results))
		return nil
	case domain.JobStatusError:
		return errors.New(snap.Error)
	default:
		return fmt.Errorf("lost track of job %s", jobID)
	}
}

func (a *app) regenerate(ctx context.Context, s *session.Session, index int, prompt string) error {
	var (
		rec domain.ResultRecord
		err error
	)
	if prompt == "" {
		rec, err = s.Regenerate(ctx, index)
	} else {
		rec, err = s.RegenerateWithPrompt(ctx, index, prompt)
	}
	if err != nil {
		return fmt.Errorf("regenerating shot %d: %w", index+1, err)
	}
	a.printf("shot %d regenerated: %s\n", index+1, rec.Location())
	return nil
}
