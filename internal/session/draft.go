package session

import (
	"context"
	"slices"

	"github.com/rreenactt/AI-Videos-Tool/internal/apiclient"
	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

// SetTitle edits the draft title. The change is saved after the debounce delay.
func (s *Session) SetTitle(title string) {
	s.editText(func(d *domain.Draft) { d.Title = title })
}

// SetNarrative edits the draft narrative. The change is saved after the debounce delay.
func (s *Session) SetNarrative(text string) {
	s.editText(func(d *domain.Draft) { d.Narrative = text })
}

// SetMinShots edits the minimum shots per scene, clamped to at least 1.
func (s *Session) SetMinShots(n int) {
	n = domain.NormalizeMinShots(n)
	s.editText(func(d *domain.Draft) { d.MinShots = n })
}

// SetMinShotsText accepts raw form input; anything non-numeric becomes 1.
func (s *Session) SetMinShotsText(raw string) {
	s.SetMinShots(domain.ParseMinShots(raw))
}

func (s *Session) editText(mutate func(*domain.Draft)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	before := s.draft
	mutate(&s.draft)
	changed := s.draft != before
	if changed {
		s.publishLocked()
	}
	s.mu.Unlock()
	if changed {
		s.debounce.Trigger()
	}
}

// SetStyle selects the visual style and saves it immediately, without debounce.
func (s *Session) SetStyle(key domain.StyleKey) error {
	key, err := domain.ParseStyleKey(string(key))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.draft.Style == key {
		return nil
	}
	s.draft.Style = key
	s.publishLocked()
	s.spawnLocked(func() { s.flush(context.Background(), groupStyle) })
	return nil
}

// markCollectionDirtyLocked records a change to prompts or results that must be
// persisted with the next collection save.
func (s *Session) markCollectionDirtyLocked() {
	s.collectionVersion++
}

// flush saves the divergent fields of group g. When a save of the same group is
// already in flight the request is deferred and re-evaluated once it resolves,
// so at most one save per group is outstanding and the newest values always win.
func (s *Session) flush(ctx context.Context, g saveGroup) {
	for {
		s.mu.Lock()
		if s.closed || s.loadState != LoadLoaded {
			s.mu.Unlock()
			return
		}
		st := &s.groups[g]
		if st.inFlight {
			st.deferred = true
			s.mu.Unlock()
			return
		}
		patch, version := s.pendingPatchLocked(g)
		if patch.IsEmpty() {
			s.mu.Unlock()
			return
		}
		st.inFlight = true
		s.mu.Unlock()

		reqCtx, cancel := s.opContext(ctx)
		env, err := s.api.PatchProject(reqCtx, s.projectID, patch)
		cancel()

		s.mu.Lock()
		st.inFlight = false
		rerun := st.deferred
		st.deferred = false
		if s.closed {
			s.mu.Unlock()
			return
		}
		if err != nil {
			s.logger.Warn().Err(err).
				Str("project_id", s.projectID).
				Str("group", g.String()).
				Msg("session: autosave failed")
			s.saveErrs[g] = errorMessage(err)
		} else {
			s.saveErrs[g] = ""
			s.applySavedLocked(g, env, version)
		}
		s.publishLocked()
		s.mu.Unlock()
		if !rerun {
			return
		}
	}
}

func (s *Session) pendingPatchLocked(g saveGroup) (domain.StatePatch, uint64) {
	switch g {
	case groupText:
		return s.draft.TextPatch(s.saved), 0
	case groupStyle:
		return s.draft.StylePatch(s.saved), 0
	case groupCollection:
		if s.collectionVersion == s.collectionSaved {
			return domain.StatePatch{}, 0
		}
		results := slices.Clone(s.results)
		if results == nil {
			results = []domain.ResultRecord{}
		}
		prompts := slices.Clone(s.prompts)
		if prompts == nil {
			prompts = []string{}
		}
		return domain.StatePatch{SavedResults: &results, Prompts: &prompts}, s.collectionVersion
	}
	return domain.StatePatch{}, 0
}

// applySavedLocked moves the baseline of g to the server's echo, not to the
// values that were sent.
func (s *Session) applySavedLocked(g saveGroup, env *apiclient.ProjectEnvelope, version uint64) {
	switch g {
	case groupText:
		if env == nil {
			return
		}
		s.saved.Title = env.State.TitleOr("")
		s.saved.Narrative = env.State.Story
		s.saved.MinShots = env.State.MinShotsOr(1)
	case groupStyle:
		if env == nil {
			return
		}
		s.saved.Style = domain.NormalizeStyleKey(env.State.StyleKey)
	case groupCollection:
		if version > s.collectionSaved {
			s.collectionSaved = version
		}
	}
	s.logger.Debug().
		Str("project_id", s.projectID).
		Str("group", g.String()).
		Msg("session: autosave acknowledged")
}
