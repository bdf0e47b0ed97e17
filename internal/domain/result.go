package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ResultRecord is the generation outcome of one shot. Index always equals the
// record's position in the collection it belongs to.
type ResultRecord struct {
	Index   int    `json:"index"`
	URL     string `json:"url,omitempty"`
	Path    string `json:"path,omitempty"`
	Prompt  string `json:"prompt"`
	Message string `json:"message,omitempty"`
}

// HasImage reports whether the record points at a generated image.
func (r ResultRecord) HasImage() bool {
	return r.URL != "" || r.Path != ""
}

// Location returns the URL, falling back to the path.
func (r ResultRecord) Location() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Path
}

type rawRecord struct {
	URL     string `json:"url"`
	Path    string `json:"path"`
	Prompt  string `json:"prompt"`
	Message string `json:"message"`
}

// NormalizeResult coerces one raw result (a bare location string or a structured
// record) into a ResultRecord at index. The prompt falls back to fallbackPrompt.
func NormalizeResult(raw json.RawMessage, index int, fallbackPrompt string) ResultRecord {
	rec := ResultRecord{Index: index}
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
	case trimmed[0] == '"':
		var loc string
		if err := json.Unmarshal(trimmed, &loc); err == nil {
			rec.URL = loc
			rec.Path = loc
		}
	case trimmed[0] == '{':
		var r rawRecord
		if err := json.Unmarshal(trimmed, &r); err == nil {
			rec.URL = r.URL
			rec.Path = r.Path
			rec.Prompt = r.Prompt
			rec.Message = r.Message
		}
	}
	if strings.TrimSpace(rec.Prompt) == "" {
		rec.Prompt = fallbackPrompt
	}
	return rec
}

// NormalizeResults coerces a raw result list against the shot prompts, back-filling
// prompts by position. The returned slice is never nil.
func NormalizeResults(raw []json.RawMessage, prompts []string) []ResultRecord {
	out := make([]ResultRecord, 0, len(raw))
	for i, item := range raw {
		out = append(out, NormalizeResult(item, i, PromptAt(prompts, i)))
	}
	return out
}

// PromptAt returns prompts[i] or "" when i is out of range.
func PromptAt(prompts []string, i int) string {
	if i < 0 || i >= len(prompts) {
		return ""
	}
	return prompts[i]
}

// ReplaceResult returns a copy of results with rec stored at rec.Index. The
// collection grows with prompt-only placeholders when the index lies beyond it.
func ReplaceResult(results []ResultRecord, prompts []string, rec ResultRecord) []ResultRecord {
	size := len(results)
	if rec.Index >= size {
		size = rec.Index + 1
	}
	out := make([]ResultRecord, size)
	copy(out, results)
	for i := len(results); i < size; i++ {
		out[i] = ResultRecord{Index: i, Prompt: PromptAt(prompts, i)}
	}
	out[rec.Index] = rec
	return out
}

// ReplacePrompt returns a copy of prompts with prompts[i] set to p.
func ReplacePrompt(prompts []string, i int, p string) []string {
	size := len(prompts)
	if i >= size {
		size = i + 1
	}
	out := make([]string, size)
	copy(out, prompts)
	out[i] = p
	return out
}
