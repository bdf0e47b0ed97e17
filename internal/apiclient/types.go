package apiclient

import (
	"encoding/json"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

// HomeSummary is the landing-view overview of prior projects and media.
type HomeSummary struct {
	Dirs   map[string]string `json:"dirs"`
	Counts struct {
		Prompts  int `json:"prompts"`
		Images   int `json:"images"`
		Videos   int `json:"videos"`
		Projects int `json:"projects"`
	} `json:"counts"`
	Lists struct {
		Prompts  []string             `json:"prompts"`
		Images   []string             `json:"images"`
		Videos   []string             `json:"videos"`
		Projects []domain.ProjectMeta `json:"projects"`
	} `json:"lists"`
}

type CreateProjectRequest struct {
	Title string             `json:"title,omitempty"`
	Mode  domain.ProjectMode `json:"mode,omitempty"`
}

// ProjectEnvelope is returned by fetch and patch; patch echoes the merged state.
type ProjectEnvelope struct {
	Meta  domain.ProjectMeta  `json:"meta"`
	State domain.ProjectState `json:"state"`
}

type StoryboardRequest struct {
	ProjectID string `json:"project_id,omitempty"`
	Story     string `json:"story"`
	Title     string `json:"title,omitempty"`
	MinShots  int    `json:"min_shots_per_scene"`
	StyleKey  string `json:"style_key,omitempty"`
}

type StoryboardResponse struct {
	Prompts []string     `json:"prompts"`
	Cuts    []domain.Cut `json:"cuts"`
	Title   string       `json:"title,omitempty"`
}

type ImageJobRequest struct {
	ProjectID string   `json:"project_id,omitempty"`
	Prompts   []string `json:"prompts"`
	OutputDir string   `json:"output_dir,omitempty"`
	Model     string   `json:"model,omitempty"`
	Size      string   `json:"size,omitempty"`
}

type ImageJobResponse struct {
	JobID string `json:"job_id"`
}

// JobProgress is one poll observation of a bulk job. Results are raw because the
// backend may report bare location strings or structured records.
type JobProgress struct {
	Status   domain.JobStatus  `json:"status"`
	Progress float64           `json:"progress"`
	Message  string            `json:"message"`
	Error    string            `json:"error,omitempty"`
	Results  []json.RawMessage `json:"results,omitempty"`
}

type RegenerateRequest struct {
	ProjectID string `json:"project_id,omitempty"`
	Index     int    `json:"index"`
	Prompt    string `json:"prompt"`
	Model     string `json:"model,omitempty"`
	Size      string `json:"size,omitempty"`
	OutputDir string `json:"output_dir,omitempty"`
}

type RegenerateResponse struct {
	Result json.RawMessage `json:"result"`
}
