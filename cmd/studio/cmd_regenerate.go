package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func newRegenerateCommand(a *app) *cobra.Command {
	var (
		prompt  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "regenerate <project-id> <shot>",
		Short: "Regenerate one shot, optionally with a new prompt",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			shot, err := strconv.Atoi(args[1])
			if err != nil || shot < 1 {
				return errInvalidShot(args[1])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			s, err := a.openSession(ctx, args[0])
			if err != nil {
				return err
			}
			defer s.Close()
			return a.regenerate(ctx, s, shot-1, prompt)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "Replacement prompt (defaults to the shot's current prompt)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Give up after this long")
	return cmd
}

type errInvalidShot string

func (e errInvalidShot) Error() string {
	return "invalid shot number " + strconv.Quote(string(e)) + ": shots are numbered from 1"
}
