package stubserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

const (
	defaultProjectTitle = "New Project"
	createdAtLayout     = "20060102-150405"
)

// patchableKeys are the state fields a PATCH may set.
var patchableKeys = map[string]bool{
	"title":               true,
	"story":               true,
	"min_shots_per_scene": true,
	"prompts":             true,
	"cuts":                true,
	"saved_results":       true,
	"image_job_id":        true,
	"image_progress":      true,
	"style_key":           true,
}

func defaultState() domain.StateDocument {
	return domain.StateDocument{
		"title":               "",
		"story":               "",
		"min_shots_per_scene": 1,
		"prompts":             []any{},
		"cuts":                []any{},
		"saved_results":       []any{},
		"image_job_id":        "",
		"image_progress":      idleProgress(),
	}
}

func idleProgress() map[string]any {
	return map[string]any{"status": "", "progress": 0, "message": ""}
}

// withDefaults overlays stored state on the default document. image_progress
// is merged one level deep.
func withDefaults(stored domain.StateDocument) domain.StateDocument {
	state := defaultState()
	for k, v := range stored {
		if k == "image_progress" {
			if m, ok := v.(map[string]any); ok {
				state[k] = mergeMap(idleProgress(), m)
				continue
			}
		}
		state[k] = v
	}
	return state
}

func mergeMap(dst, src map[string]any) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

type envelope struct {
	Meta  domain.ProjectMeta   `json:"meta"`
	State domain.StateDocument `json:"state"`
}

func (s *Server) loadProject(ctx context.Context, id string) (domain.ProjectMeta, domain.StateDocument, error) {
	meta, stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.ProjectMeta{}, nil, err
	}
	meta.Mode = domain.NormalizeProjectMode(string(meta.Mode))
	return meta, withDefaults(stored), nil
}

// updateState runs fn on the project's state under stateMu and saves the result.
func (s *Server) updateState(ctx context.Context, id string, fn func(meta *domain.ProjectMeta, state domain.StateDocument) bool) (domain.ProjectMeta, domain.StateDocument, error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	meta, state, err := s.loadProject(ctx, id)
	if err != nil {
		return domain.ProjectMeta{}, nil, err
	}
	before := meta
	if !fn(&meta, state) {
		return meta, state, nil
	}
	if meta != before {
		if err := s.repo.SaveMeta(ctx, meta); err != nil {
			return domain.ProjectMeta{}, nil, err
		}
	}
	if err := s.repo.SaveState(ctx, id, state); err != nil {
		return domain.ProjectMeta{}, nil, err
	}
	return meta, state, nil
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	projects, err := s.repo.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("stubserver: list projects failed")
		s.error(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []domain.ProjectMeta{}
	}
	s.json(w, http.StatusOK, map[string]any{
		"dirs": map[string]string{"outputs": s.opts.OutputDir},
		"counts": map[string]int{
			"prompts":  0,
			"images":   0,
			"videos":   0,
			"projects": len(projects),
		},
		"lists": map[string]any{
			"prompts":  []string{},
			"images":   []string{},
			"videos":   []string{},
			"projects": projects,
		},
	})
}

type createProjectRequest struct {
	Title string `json:"title"`
	Mode  string `json:"mode"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !s.decode(w, r, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultProjectTitle
	}
	ts := s.opts.Now().Format(createdAtLayout)
	meta := domain.ProjectMeta{
		Title:     title,
		CreatedAt: ts,
		Status:    "created",
		Mode:      domain.NormalizeProjectMode(req.Mode),
	}
	state := defaultState()
	state["title"] = title

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	base := slugify(title) + "-" + ts
	meta.ID = base
	for n := 2; ; n++ {
		_, _, err := s.repo.Get(r.Context(), meta.ID)
		if errors.Is(err, domain.ErrNotFound) {
			break
		}
		if err != nil {
			s.error(w, http.StatusInternalServerError, "failed to create project")
			return
		}
		meta.ID = fmt.Sprintf("%s-%d", base, n)
	}
	if err := s.repo.Create(r.Context(), meta, state); err != nil {
		s.logger.Error().Err(err).Str("project_id", meta.ID).Msg("stubserver: create project failed")
		s.error(w, http.StatusInternalServerError, "failed to create project")
		return
	}
	s.logger.Info().Str("project_id", meta.ID).Str("mode", string(meta.Mode)).Msg("stubserver: project created")
	s.json(w, http.StatusOK, meta)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	meta, state, err := s.loadProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.projectError(w, err)
		return
	}
	s.json(w, http.StatusOK, envelope{Meta: meta, State: state})
}

func (s *Server) patchProject(w http.ResponseWriter, r *http.Request) {
	var updates map[string]any
	if !s.decode(w, r, &updates) {
		return
	}
	for k := range updates {
		if !patchableKeys[k] {
			delete(updates, k)
		}
	}
	if v, ok := updates["min_shots_per_scene"]; ok {
		n, isNum := v.(float64)
		if !isNum {
			s.error(w, http.StatusUnprocessableEntity, "min_shots_per_scene must be a number")
			return
		}
		updates["min_shots_per_scene"] = int(n)
	}

	meta, state, err := s.updateState(r.Context(), chi.URLParam(r, "id"), func(meta *domain.ProjectMeta, state domain.StateDocument) bool {
		if len(updates) == 0 {
			return false
		}
		for k, v := range updates {
			if k == "image_progress" {
				if m, ok := v.(map[string]any); ok {
					prev, _ := state[k].(map[string]any)
					state[k] = mergeMap(prev, m)
					continue
				}
			}
			state[k] = v
		}
		if title, ok := updates["title"].(string); ok && title != "" {
			meta.Title = title
		}
		return true
	})
	if err != nil {
		s.projectError(w, err)
		return
	}
	s.json(w, http.StatusOK, envelope{Meta: meta, State: state})
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.stateMu.Lock()
	err := s.repo.Delete(r.Context(), id)
	s.stateMu.Unlock()
	if err != nil {
		s.projectError(w, err)
		return
	}
	s.logger.Info().Str("project_id", id).Msg("stubserver: project deleted")
	s.json(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) projectError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidProject):
		s.error(w, http.StatusNotFound, "project not found")
	default:
		s.logger.Error().Err(err).Msg("stubserver: project storage failed")
		s.error(w, http.StatusInternalServerError, "project storage failed")
	}
}

var (
	slugStrip    = regexp.MustCompile(`[^\w\-\s]`)
	slugCollapse = regexp.MustCompile(`[\s\-]+`)
)

func slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(slugStrip.ReplaceAllString(text, "")))
	s = strings.Trim(slugCollapse.ReplaceAllString(s, "-"), "-")
	if s == "" {
		return "untitled"
	}
	return s
}
