package session

import (
	"context"
	"slices"
	"strings"

	"github.com/rreenactt/AI-Videos-Tool/internal/apiclient"
	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

// Load fetches the project once and seeds the draft, the saved baseline and the
// results from it. If the stored state names a job, polling resumes. Calls after
// the first are no-ops. A failed load leaves the view in loaded-with-error, with
// defaults shown and autosave disabled.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if s.loadState != LoadNotLoaded {
		s.mu.Unlock()
		return nil
	}
	s.loadState = LoadLoading
	s.publishLocked()
	s.mu.Unlock()

	reqCtx, cancel := s.opContext(ctx)
	defer cancel()
	env, err := s.api.GetProject(reqCtx, s.projectID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	if err != nil {
		s.loadState = LoadFailed
		s.setErrorLocked(err)
		s.logger.Error().Err(err).Str("project_id", s.projectID).Msg("session: load failed")
		s.publishLocked()
		return wrap("load project "+s.projectID, err)
	}
	s.applyLoadedLocked(env)
	s.publishLocked()
	s.logger.Info().
		Str("project_id", s.projectID).
		Int("prompts", len(s.prompts)).
		Int("results", len(s.results)).
		Bool("resumed_job", s.jobID != "").
		Msg("session: project loaded")
	return nil
}

func (s *Session) applyLoadedLocked(env *apiclient.ProjectEnvelope) {
	state := env.State
	s.meta = env.Meta
	if s.meta.ID == "" {
		s.meta.ID = s.projectID
	}
	s.meta.Mode = domain.NormalizeProjectMode(string(env.Meta.Mode))

	draft := domain.Draft{
		Title:     state.TitleOr(env.Meta.Title),
		Narrative: state.Story,
		MinShots:  state.MinShotsOr(domain.DefaultMinShots),
		Style:     domain.NormalizeStyleKey(state.StyleKey),
	}
	s.draft = draft
	s.saved = draft

	s.prompts = slices.Clone(state.Prompts)
	if s.prompts == nil {
		s.prompts = []string{}
	}
	s.cuts = cloneCuts(state.Cuts)
	s.results = domain.NormalizeResults(state.SavedResults, s.prompts)
	s.progress = state.ImageProgress.Normalized()
	s.errMsg = ""
	s.loadState = LoadLoaded

	s.jobID = strings.TrimSpace(state.ImageJobID)
	s.busy = s.jobID != ""
	if s.jobID != "" {
		s.startPollLocked(s.jobID)
	}
}
