package session

import (
	"context"
	"strings"

	"github.com/rreenactt/AI-Videos-Tool/internal/apiclient"
	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

// Regenerate re-runs generation for shot i using its current prompt: the one on
// its result record, falling back to the prompt list.
func (s *Session) Regenerate(ctx context.Context, i int) (domain.ResultRecord, error) {
	s.mu.Lock()
	prompt := s.currentPromptLocked(i)
	s.mu.Unlock()
	return s.RegenerateWithPrompt(ctx, i, prompt)
}

// RegenerateWithPrompt regenerates shot i from prompt. It runs independently of
// the bulk job and is single-flight per index. On success the record and the
// prompt at i are replaced and the collection is saved immediately; on failure
// nothing but the error slot changes.
func (s *Session) RegenerateWithPrompt(ctx context.Context, i int, prompt string) (domain.ResultRecord, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ResultRecord{}, domain.ErrSessionClosed
	}
	if i < 0 || i >= max(len(s.results), len(s.prompts)) {
		s.mu.Unlock()
		return domain.ResultRecord{}, domain.ErrShotOutOfRange
	}
	if strings.TrimSpace(prompt) == "" {
		s.setErrorLocked(domain.ErrEmptyPrompt)
		s.publishLocked()
		s.mu.Unlock()
		return domain.ResultRecord{}, domain.ErrEmptyPrompt
	}
	if _, ok := s.regenerating[i]; ok {
		s.mu.Unlock()
		return domain.ResultRecord{}, domain.ErrShotBusy
	}
	s.regenerating[i] = struct{}{}
	s.errMsg = ""
	s.publishLocked()
	req := apiclient.RegenerateRequest{
		ProjectID: s.projectID,
		Index:     i,
		Prompt:    prompt,
		Model:     s.opts.ImageModel,
		Size:      s.opts.ImageSize,
		OutputDir: s.opts.OutputDir,
	}
	s.mu.Unlock()

	reqCtx, cancel := s.opContext(ctx)
	resp, err := s.api.RegenerateImage(reqCtx, req)
	cancel()

	s.mu.Lock()
	delete(s.regenerating, i)
	if s.closed {
		s.mu.Unlock()
		return domain.ResultRecord{}, domain.ErrSessionClosed
	}
	if err != nil {
		s.setErrorLocked(err)
		s.publishLocked()
		s.mu.Unlock()
		s.logger.Warn().Err(err).Str("project_id", s.projectID).Int("index", i).Msg("session: regenerate failed")
		return domain.ResultRecord{}, wrap("regenerate shot", err)
	}

	rec := domain.NormalizeResult(resp.Result, i, prompt)
	rec.Prompt = prompt
	s.results = domain.ReplaceResult(s.results, s.prompts, rec)
	s.prompts = domain.ReplacePrompt(s.prompts, i, prompt)
	s.markCollectionDirtyLocked()
	s.publishLocked()
	s.mu.Unlock()

	s.logger.Info().
		Str("project_id", s.projectID).
		Int("index", i).
		Bool("has_image", rec.HasImage()).
		Msg("session: shot regenerated")
	s.tracked(func() { s.flush(ctx, groupCollection) })
	return rec, nil
}

func (s *Session) currentPromptLocked(i int) string {
	if i >= 0 && i < len(s.results) {
		if p := strings.TrimSpace(s.results[i].Prompt); p != "" {
			return s.results[i].Prompt
		}
	}
	return domain.PromptAt(s.prompts, i)
}
