package session

import (
	"context"
	"slices"
	"strings"

	"github.com/rreenactt/AI-Videos-Tool/internal/apiclient"
	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

// DeriveStoryboard asks the backend to turn the draft narrative into cuts and
// prompts. Previous results are dropped as the request starts. A title
// suggested by the backend lands in the draft and goes through autosave.
func (s *Session) DeriveStoryboard(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if strings.TrimSpace(s.draft.Narrative) == "" {
		s.setErrorLocked(domain.ErrEmptyNarrative)
		s.publishLocked()
		s.mu.Unlock()
		return domain.ErrEmptyNarrative
	}
	if s.jobID != "" {
		s.mu.Unlock()
		return domain.ErrJobInFlight
	}
	if s.busy {
		s.mu.Unlock()
		return domain.ErrBusy
	}
	req := apiclient.StoryboardRequest{
		ProjectID: s.projectID,
		Story:     s.draft.Narrative,
		Title:     s.draft.Title,
		MinShots:  domain.NormalizeMinShots(s.draft.MinShots),
		StyleKey:  string(s.draft.Style),
	}
	s.busy = true
	s.errMsg = ""
	s.results = []domain.ResultRecord{}
	s.publishLocked()
	s.mu.Unlock()

	reqCtx, cancel := s.opContext(ctx)
	resp, err := s.api.DeriveStoryboard(reqCtx, req)
	cancel()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	s.busy = false
	if err != nil {
		s.setErrorLocked(err)
		s.publishLocked()
		s.mu.Unlock()
		return wrap("derive storyboard", err)
	}
	s.prompts = slices.Clone(resp.Prompts)
	if s.prompts == nil {
		s.prompts = []string{}
	}
	s.cuts = cloneCuts(resp.Cuts)
	titleChanged := false
	if t := strings.TrimSpace(resp.Title); t != "" && resp.Title != s.draft.Title {
		s.draft.Title = resp.Title
		titleChanged = true
	}
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Info().
		Str("project_id", s.projectID).
		Int("prompts", len(resp.Prompts)).
		Int("cuts", len(resp.Cuts)).
		Msg("session: storyboard derived")
	if titleChanged {
		s.debounce.Trigger()
	}
	return nil
}

// ResetResults clears the result collection and saves the empty list at once.
func (s *Session) ResetResults(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	s.results = []domain.ResultRecord{}
	s.markCollectionDirtyLocked()
	s.publishLocked()
	s.mu.Unlock()

	s.tracked(func() { s.flush(ctx, groupCollection) })
	return nil
}

// DeleteProject deletes the project on the backend and closes the session.
func (s *Session) DeleteProject(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	s.mu.Unlock()

	reqCtx, cancel := s.opContext(ctx)
	err := s.api.DeleteProject(reqCtx, s.projectID)
	cancel()
	if err != nil {
		s.mu.Lock()
		if !s.closed {
			s.setErrorLocked(err)
			s.publishLocked()
		}
		s.mu.Unlock()
		return wrap("delete project", err)
	}
	s.logger.Info().Str("project_id", s.projectID).Msg("session: project deleted")
	s.Close()
	return nil
}
