package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ProjectMode enumerates the kinds of project the backend can host.
type ProjectMode string

const (
	ProjectModeStory  ProjectMode = "story"
	ProjectModeFusion ProjectMode = "fusion"
)

// DefaultMinShots is the minimum-shots value of a fresh draft.
const DefaultMinShots = 2

// NormalizeProjectMode sanitizes free-form input into a supported mode.
func NormalizeProjectMode(mode string) ProjectMode {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ProjectModeFusion):
		return ProjectModeFusion
	default:
		return ProjectModeStory
	}
}

// ProjectMeta is the metadata record the backend keeps per project.
type ProjectMeta struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	CreatedAt string      `json:"createdAt,omitempty"`
	Status    string      `json:"status,omitempty"`
	Mode      ProjectMode `json:"mode,omitempty"`
}

// Dialogue is one spoken line inside a cut.
type Dialogue struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Cut is the per-shot breakdown returned by storyboard derivation.
type Cut struct {
	CutID       int        `json:"cut_id"`
	CutName     string     `json:"cut_name"`
	Composition string     `json:"composition"`
	Background  string     `json:"background"`
	Characters  []string   `json:"characters"`
	Dialogues   []Dialogue `json:"dialogues"`
	Actions     []string   `json:"actions"`
}

// ProjectState is the server-held project state as returned by fetch and patch.
// Pointer fields distinguish "absent" from zero values so callers can apply defaults.
type ProjectState struct {
	Title         *string           `json:"title"`
	Story         string            `json:"story"`
	MinShots      *FlexInt          `json:"min_shots_per_scene"`
	Prompts       []string          `json:"prompts"`
	Cuts          []Cut             `json:"cuts"`
	SavedResults  []json.RawMessage `json:"saved_results"`
	StyleKey      string            `json:"style_key"`
	ImageProgress ProgressState     `json:"image_progress"`
	ImageJobID    string            `json:"image_job_id"`
}

// TitleOr returns the state title, or fallback when the field was absent.
func (s ProjectState) TitleOr(fallback string) string {
	if s.Title == nil {
		return fallback
	}
	return *s.Title
}

// MinShotsOr returns the state minimum-shots value, or fallback when absent or invalid.
func (s ProjectState) MinShotsOr(fallback int) int {
	if s.MinShots == nil || int(*s.MinShots) < 1 {
		return fallback
	}
	return int(*s.MinShots)
}

// StatePatch is a partial project-state update. Nil fields are not sent.
type StatePatch struct {
	Title        *string         `json:"title,omitempty"`
	Story        *string         `json:"story,omitempty"`
	MinShots     *int            `json:"min_shots_per_scene,omitempty"`
	StyleKey     *string         `json:"style_key,omitempty"`
	Prompts      *[]string       `json:"prompts,omitempty"`
	SavedResults *[]ResultRecord `json:"saved_results,omitempty"`
}

// IsEmpty reports whether the patch carries no field.
func (p StatePatch) IsEmpty() bool {
	return p.Title == nil && p.Story == nil && p.MinShots == nil && p.StyleKey == nil &&
		p.Prompts == nil && p.SavedResults == nil
}

// Draft holds the locally editable project fields. The same shape is used for the
// last server-acknowledged baseline.
type Draft struct {
	Title     string
	Narrative string
	MinShots  int
	Style     StyleKey
}

// DefaultDraft is the draft of a view whose project has not been loaded.
func DefaultDraft() Draft {
	return Draft{MinShots: DefaultMinShots, Style: DefaultStyle}
}

// TextPatch returns the divergent text-group fields of d relative to saved.
// Minimum shots are compared by numeric value after normalization.
func (d Draft) TextPatch(saved Draft) StatePatch {
	var p StatePatch
	if d.Title != saved.Title {
		title := d.Title
		p.Title = &title
	}
	if d.Narrative != saved.Narrative {
		story := d.Narrative
		p.Story = &story
	}
	if next := NormalizeMinShots(d.MinShots); next != NormalizeMinShots(saved.MinShots) {
		p.MinShots = &next
	}
	return p
}

// StylePatch returns the style field when it diverges from saved.
func (d Draft) StylePatch(saved Draft) StatePatch {
	var p StatePatch
	if d.Style != saved.Style {
		style := string(d.Style)
		p.StyleKey = &style
	}
	return p
}

// NormalizeMinShots coerces the minimum-shots value to at least 1.
func NormalizeMinShots(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// ParseMinShots converts form input into a minimum-shots value. Anything that is
// not a positive number becomes 1.
func ParseMinShots(s string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 1
	}
	return NormalizeMinShots(int(f))
}

// FlexInt decodes JSON numbers and numeric strings alike, so "2" and 2 compare equal.
type FlexInt int

func (n *FlexInt) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	if raw == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("flexint: %q is not numeric", raw)
	}
	*n = FlexInt(int(f))
	return nil
}
