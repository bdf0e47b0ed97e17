package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
	"github.com/rreenactt/AI-Videos-Tool/internal/session"
)

func printSnapshot(w io.Writer, snap session.Snapshot) {
	fmt.Fprintf(w, "project:   %s (%s, %s)\n", snap.ProjectID, snap.Mode, snap.LoadState)
	fmt.Fprintf(w, "title:     %s\n", snap.Draft.Title)
	fmt.Fprintf(w, "style:     %s\n", snap.Draft.Style)
	fmt.Fprintf(w, "min shots: %d\n", snap.Draft.MinShots)
	if snap.Draft.Narrative != "" {
		fmt.Fprintf(w, "narrative: %s\n", oneLine(snap.Draft.Narrative))
	}
	if snap.Dirty() {
		fmt.Fprintln(w, "draft:     unsaved changes")
	}
	fmt.Fprintf(w, "progress:  %s\n", progressLine(snap.Progress))
	if snap.JobID != "" {
		fmt.Fprintf(w, "job:       %s\n", snap.JobID)
	}
	if snap.Error != "" {
		fmt.Fprintf(w, "error:     %s\n", snap.Error)
	}
	for i, prompt := range snap.Prompts {
		loc := "-"
		if i < len(snap.Results) && snap.Results[i].HasImage() {
			loc = snap.Results[i].Location()
		}
		fmt.Fprintf(w, "  [%02d] %s\n       %s\n", i+1, oneLine(prompt), loc)
	}
}

func progressLine(p domain.ProgressState) string {
	line := fmt.Sprintf("%s %3.0f%%", p.Status, p.Progress)
	if p.Message != "" {
		line += " " + p.Message
	}
	return line
}

func oneLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 100 {
		return string(r[:97]) + "..."
	}
	return s
}

// waitFor blocks until cond holds for the latest snapshot. onChange sees every
// snapshot published while waiting.
func waitFor(ctx context.Context, s *session.Session, cond func(session.Snapshot) bool, onChange func(session.Snapshot)) (session.Snapshot, error) {
	ch, cancel := s.Subscribe()
	defer cancel()
	snap := s.Snapshot()
	for !cond(snap) {
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case next, ok := <-ch:
			if !ok {
				return snap, domain.ErrSessionClosed
			}
			snap = next
			if onChange != nil {
				onChange(snap)
			}
		}
	}
	return snap, nil
}

// settled reports whether autosave has caught up with the draft.
func settled(snap session.Snapshot) bool {
	return !snap.Dirty() || snap.SaveError != ""
}
