package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func rawList(t *testing.T, items ...any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		b, err := json.Marshal(item)
		if err != nil {
			t.Fatalf("marshal %v: %v", item, err)
		}
		out = append(out, b)
	}
	return out
}

func TestNormalizeResultsBareStrings(t *testing.T) {
	prompts := []string{"p0", "p1", "p2"}
	raw := rawList(t, "out/0.png", "out/1.png", "out/2.png")

	got := NormalizeResults(raw, prompts)
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, rec := range got {
		want := ResultRecord{Index: i, URL: raw2str(t, raw[i]), Path: raw2str(t, raw[i]), Prompt: prompts[i]}
		if rec != want {
			t.Fatalf("record %d = %+v, want %+v", i, rec, want)
		}
	}
}

func raw2str(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return s
}

func TestNormalizeResultsMixed(t *testing.T) {
	prompts := []string{"p0", "p1", "p2", "p3"}
	raw := rawList(t,
		"http://x/0.png",
		map[string]any{"index": 7, "url": "http://x/1.png", "prompt": "own prompt"},
		map[string]any{"path": "out/2.png", "message": "retried"},
		map[string]any{},
	)

	got := NormalizeResults(raw, prompts)
	want := []ResultRecord{
		{Index: 0, URL: "http://x/0.png", Path: "http://x/0.png", Prompt: "p0"},
		{Index: 1, URL: "http://x/1.png", Prompt: "own prompt"},
		{Index: 2, Path: "out/2.png", Prompt: "p2", Message: "retried"},
		{Index: 3, Prompt: "p3"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeResults mismatch:\n got  %+v\n want %+v", got, want)
	}
}

func TestNormalizeResultsEdgeCases(t *testing.T) {
	tests := []struct {
		name    string
		raw     []json.RawMessage
		prompts []string
		want    []ResultRecord
	}{
		{
			name: "nil input yields empty collection",
			raw:  nil,
			want: []ResultRecord{},
		},
		{
			name:    "more results than prompts",
			raw:     []json.RawMessage{json.RawMessage(`"a.png"`), json.RawMessage(`"b.png"`)},
			prompts: []string{"only"},
			want: []ResultRecord{
				{Index: 0, URL: "a.png", Path: "a.png", Prompt: "only"},
				{Index: 1, URL: "b.png", Path: "b.png"},
			},
		},
		{
			name:    "null and numbers become prompt-only records",
			raw:     []json.RawMessage{json.RawMessage(`null`), json.RawMessage(`42`)},
			prompts: []string{"p0", "p1"},
			want:    []ResultRecord{{Index: 0, Prompt: "p0"}, {Index: 1, Prompt: "p1"}},
		},
		{
			name:    "blank prompt is back-filled",
			raw:     []json.RawMessage{json.RawMessage(`{"url":"u","prompt":"  "}`)},
			prompts: []string{"p0"},
			want:    []ResultRecord{{Index: 0, URL: "u", Prompt: "p0"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeResults(tc.raw, tc.prompts)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestReplaceResultCopiesAndGrows(t *testing.T) {
	orig := []ResultRecord{{Index: 0, URL: "a", Prompt: "p0"}}
	prompts := []string{"p0", "p1", "p2"}

	got := ReplaceResult(orig, prompts, ResultRecord{Index: 2, URL: "c", Prompt: "new"})
	want := []ResultRecord{
		{Index: 0, URL: "a", Prompt: "p0"},
		{Index: 1, Prompt: "p1"},
		{Index: 2, URL: "c", Prompt: "new"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if len(orig) != 1 || orig[0].URL != "a" {
		t.Fatalf("original slice mutated: %+v", orig)
	}

	updated := ReplacePrompt(prompts, 1, "edited")
	if prompts[1] != "p1" || updated[1] != "edited" {
		t.Fatalf("ReplacePrompt must copy: orig=%v updated=%v", prompts, updated)
	}
}
