package stubserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

// runImageJob generates one synthetic image per prompt, paced by StepDelay,
// and mirrors every progress change into the job store and, when the job
// belongs to a project, into the project state.
func (s *Server) runImageJob(ctx context.Context, jobID string, req imageJobRequest) {
	log := s.logger.With().Str("job_id", jobID).Str("project_id", req.ProjectID).Logger()
	limit := rate.Inf
	if s.opts.StepDelay > 0 {
		limit = rate.Every(s.opts.StepDelay)
	}
	limiter := rate.NewLimiter(limit, 1)
	// The first token is spent so the job is observed as queued for one step.
	limiter.Allow()

	total := len(req.Prompts)
	results := make([]any, 0, total)
	for i, prompt := range req.Prompts {
		if err := limiter.Wait(ctx); err != nil {
			s.failJob(jobID, req.ProjectID, errors.New("job cancelled"))
			return
		}
		if strings.Contains(prompt, failMarker) {
			s.failJob(jobID, req.ProjectID, fmt.Errorf("image generation failed for shot %d", i+1))
			log.Warn().Int("index", i).Msg("stubserver: synthetic generation failed")
			return
		}
		results = append(results, s.imageLocation(jobID[:8], i))
		s.progress(jobID, req.ProjectID, Job{
			Status:   domain.JobStatusRunning,
			Progress: float64(i+1) * 100 / float64(total+1),
			Message:  fmt.Sprintf("Generated image %d/%d", i+1, total),
		})
	}

	// Project state must be final before the job reads as terminal.
	done := Job{Status: domain.JobStatusCompleted, Progress: 100, Message: "All images generated", Results: results}
	s.syncProject(req.ProjectID, func(state domain.StateDocument) {
		state["saved_results"] = results
		state["image_job_id"] = ""
		state["image_progress"] = progressDoc(done)
	})
	s.jobs.Update(jobID, func(j *Job) { *j = done })
	log.Info().Int("results", len(results)).Msg("stubserver: image job completed")
}

func (s *Server) progress(jobID, projectID string, job Job) {
	s.syncProject(projectID, func(state domain.StateDocument) {
		state["image_job_id"] = jobID
		state["image_progress"] = progressDoc(job)
	})
	s.jobs.Update(jobID, func(j *Job) { *j = job })
}

func (s *Server) failJob(jobID, projectID string, err error) {
	failed := Job{Status: domain.JobStatusError, Message: err.Error(), Error: err.Error()}
	if prev, ok := s.jobs.Get(jobID); ok {
		failed.Progress = prev.Progress
	}
	s.syncProject(projectID, func(state domain.StateDocument) {
		state["image_job_id"] = ""
		state["image_progress"] = progressDoc(failed)
	})
	s.jobs.Update(jobID, func(j *Job) { *j = failed })
}

// syncProject applies fn to the project's state. A project deleted while its
// job runs is ignored.
func (s *Server) syncProject(projectID string, fn func(state domain.StateDocument)) {
	if projectID == "" {
		return
	}
	_, _, err := s.updateState(context.Background(), projectID, func(_ *domain.ProjectMeta, state domain.StateDocument) bool {
		fn(state)
		return true
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn().Err(err).Str("project_id", projectID).Msg("stubserver: sync job state failed")
	}
}
