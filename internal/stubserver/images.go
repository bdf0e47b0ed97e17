package stubserver

import (
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

// failMarker in a prompt makes synthetic generation fail for that shot.
const failMarker = "[fail]"

type storyboardRequest struct {
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Story     string `json:"story"`
	MinShots  int    `json:"min_shots_per_scene"`
	StyleKey  string `json:"style_key"`
}

func (s *Server) storyboard(w http.ResponseWriter, r *http.Request) {
	var req storyboardRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Story) == "" {
		s.error(w, http.StatusUnprocessableEntity, "story is required")
		return
	}
	style := domain.NormalizeStyleKey(req.StyleKey)
	board, err := s.deriver.Derive(r.Context(), req.Story, req.Title, req.MinShots, style)
	if err != nil {
		s.error(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.ProjectID != "" {
		_, _, err := s.updateState(r.Context(), req.ProjectID, func(meta *domain.ProjectMeta, state domain.StateDocument) bool {
			state["story"] = req.Story
			state["title"] = board.Title
			if req.MinShots > 0 {
				state["min_shots_per_scene"] = req.MinShots
			}
			state["cuts"] = board.Cuts
			state["prompts"] = board.Prompts
			state["saved_results"] = []any{}
			state["image_job_id"] = ""
			state["image_progress"] = idleProgress()
			if board.Title != "" {
				meta.Title = board.Title
			}
			return true
		})
		if err != nil {
			s.projectError(w, err)
			return
		}
	}
	s.logger.Info().Str("project_id", req.ProjectID).Int("prompts", len(board.Prompts)).Msg("stubserver: storyboard derived")
	s.json(w, http.StatusOK, map[string]any{
		"title":   board.Title,
		"cuts":    board.Cuts,
		"prompts": board.Prompts,
	})
}

type imageJobRequest struct {
	ProjectID string   `json:"project_id"`
	Prompts   []string `json:"prompts"`
	Model     string   `json:"model"`
	Size      string   `json:"size"`
	OutputDir string   `json:"output_dir"`
}

func (s *Server) submitImages(w http.ResponseWriter, r *http.Request) {
	var req imageJobRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Prompts) == 0 {
		s.error(w, http.StatusUnprocessableEntity, "prompts are required")
		return
	}
	jobID := uuid.NewString()
	queued := Job{Status: domain.JobStatusQueued, Message: "Waiting in queue..."}

	if req.ProjectID != "" {
		_, _, err := s.updateState(r.Context(), req.ProjectID, func(_ *domain.ProjectMeta, state domain.StateDocument) bool {
			state["image_job_id"] = jobID
			state["image_progress"] = progressDoc(queued)
			state["saved_results"] = []any{}
			return true
		})
		if err != nil {
			s.projectError(w, err)
			return
		}
	}
	s.jobs.Put(jobID, queued)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runImageJob(s.ctx, jobID, req)
	}()
	s.logger.Info().Str("job_id", jobID).Str("project_id", req.ProjectID).Int("prompts", len(req.Prompts)).Msg("stubserver: image job queued")
	s.json(w, http.StatusOK, map[string]string{"job_id": jobID})
}

func (s *Server) imageProgress(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(chi.URLParam(r, "job_id"))
	if !ok {
		s.error(w, http.StatusNotFound, "job not found")
		return
	}
	s.json(w, http.StatusOK, job)
}

type regenerateRequest struct {
	ProjectID string `json:"project_id"`
	Index     int    `json:"index"`
	Prompt    string `json:"prompt"`
	Model     string `json:"model"`
	Size      string `json:"size"`
	OutputDir string `json:"output_dir"`
}

func (s *Server) regenerateImage(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.error(w, http.StatusUnprocessableEntity, "prompt is required")
		return
	}
	if req.Index < 0 {
		s.error(w, http.StatusUnprocessableEntity, "index must not be negative")
		return
	}
	if strings.Contains(req.Prompt, failMarker) {
		s.error(w, http.StatusInternalServerError, "image generation failed for shot "+fmt.Sprint(req.Index+1))
		return
	}
	location := s.imageLocation("regen-"+uuid.NewString()[:8], req.Index)
	s.json(w, http.StatusOK, map[string]any{
		"result": domain.ResultRecord{
			Index:   req.Index,
			URL:     location,
			Path:    location,
			Prompt:  req.Prompt,
			Message: "regenerated",
		},
	})
}

// imageLocation names the synthetic image for shot i of a job.
func (s *Server) imageLocation(batch string, i int) string {
	rel := fmt.Sprintf("/outputs/%s/shot_%02d.png", batch, i+1)
	if s.opts.PublicBaseURL == "" {
		return rel
	}
	return strings.TrimRight(s.opts.PublicBaseURL, "/") + rel
}

// outputImage renders a flat placeholder PNG whose color derives from the path.
func (s *Server) outputImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" || !strings.HasSuffix(name, ".png") {
		s.error(w, http.StatusNotFound, "image not found")
		return
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	sum := h.Sum32()
	fill := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, fill)
		}
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		s.logger.Warn().Err(err).Str("name", name).Msg("stubserver: encode placeholder failed")
	}
}

func progressDoc(job Job) map[string]any {
	return map[string]any{
		"status":   string(job.Status),
		"progress": job.Progress,
		"message":  job.Message,
	}
}
