package session

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/rreenactt/AI-Videos-Tool/internal/apiclient"
	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

type pollTask struct {
	jobID  string
	cancel context.CancelFunc
}

// SubmitImages starts a bulk generation job for the current prompts and begins
// polling it. It is rejected without a network call when there are no prompts
// or another job or operation is in progress.
func (s *Session) SubmitImages(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", domain.ErrSessionClosed
	}
	if len(s.prompts) == 0 {
		s.setErrorLocked(domain.ErrNoPrompts)
		s.publishLocked()
		s.mu.Unlock()
		return "", domain.ErrNoPrompts
	}
	if s.jobID != "" {
		s.mu.Unlock()
		return "", domain.ErrJobInFlight
	}
	if s.busy {
		s.mu.Unlock()
		return "", domain.ErrBusy
	}
	req := apiclient.ImageJobRequest{
		ProjectID: s.projectID,
		Prompts:   slices.Clone(s.prompts),
		OutputDir: s.opts.OutputDir,
		Model:     s.opts.ImageModel,
		Size:      s.opts.ImageSize,
	}
	s.busy = true
	s.errMsg = ""
	s.progress = domain.QueuedProgress()
	s.publishLocked()
	s.mu.Unlock()

	reqCtx, cancel := s.opContext(ctx)
	defer cancel()
	resp, err := s.api.SubmitImages(reqCtx, req)
	if err == nil && strings.TrimSpace(resp.JobID) == "" {
		err = errors.New("no job id returned")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", domain.ErrSessionClosed
	}
	if err != nil {
		s.busy = false
		s.progress = domain.IdleProgress()
		s.setErrorLocked(err)
		s.publishLocked()
		return "", wrap("submit images", err)
	}
	s.jobID = resp.JobID
	s.startPollLocked(resp.JobID)
	s.publishLocked()
	s.logger.Info().
		Str("project_id", s.projectID).
		Str("job_id", resp.JobID).
		Int("prompts", len(req.Prompts)).
		Msg("session: image job submitted")
	return resp.JobID, nil
}

// startPollLocked replaces any running poller, so at most one exists.
func (s *Session) startPollLocked(jobID string) {
	s.stopPollLocked()
	ctx, cancel := context.WithCancel(s.ctx)
	task := &pollTask{jobID: jobID, cancel: cancel}
	s.poll = task
	s.spawnLocked(func() { s.pollLoop(ctx, task) })
}

func (s *Session) stopPollLocked() {
	if s.poll != nil {
		s.poll.cancel()
		s.poll = nil
	}
}

// pollLoop issues one progress request per interval. Requests are sequential,
// so a slow response never overlaps the next poll.
func (s *Session) pollLoop(ctx context.Context, task *pollTask) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		prog, err := s.api.ImageProgress(ctx, task.jobID)
		if ctx.Err() != nil {
			return
		}
		if !s.observeProgress(task, prog, err) {
			return
		}
	}
}

// observeProgress applies one poll result and reports whether polling continues.
func (s *Session) observeProgress(task *pollTask, prog *apiclient.JobProgress, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.poll != task {
		return false
	}
	log := s.logger.With().Str("project_id", s.projectID).Str("job_id", task.jobID).Logger()

	if err != nil {
		if skippablePollError(err) {
			log.Debug().Err(err).Msg("session: progress poll skipped")
			return true
		}
		log.Warn().Err(err).Msg("session: progress polling stopped")
		s.clearJobLocked()
		s.publishLocked()
		return false
	}

	s.progress = domain.ProgressState{
		Status:   prog.Status,
		Progress: prog.Progress,
		Message:  prog.Message,
		Error:    prog.Error,
	}.Normalized()

	switch s.progress.Status {
	case domain.JobStatusCompleted:
		s.results = domain.NormalizeResults(prog.Results, s.prompts)
		s.clearJobLocked()
		log.Info().Int("results", len(s.results)).Msg("session: image job completed")
	case domain.JobStatusError:
		msg := strings.TrimSpace(prog.Error)
		if msg == "" {
			msg = defaultJobError
		}
		s.errMsg = msg
		s.clearJobLocked()
		log.Warn().Str("error", msg).Msg("session: image job failed")
	default:
		s.publishLocked()
		return true
	}
	s.publishLocked()
	return false
}

func (s *Session) clearJobLocked() {
	s.jobID = ""
	s.busy = false
	s.stopPollLocked()
}

// skippablePollError reports whether a failed poll should simply be retried on
// the next tick. A non-2xx reply other than 404 is transient; a 404 means the
// backend no longer knows the job, and a transport failure ends tracking.
func skippablePollError(err error) bool {
	var apiErr *apiclient.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status != http.StatusNotFound
}
