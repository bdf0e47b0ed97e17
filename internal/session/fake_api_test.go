package session

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/rreenactt/AI-Videos-Tool/internal/apiclient"
	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

// fakeAPI is an in-memory backend. Patches merge into the held project and echo
// it back, the way the real server does.
type fakeAPI struct {
	mu sync.Mutex

	project *apiclient.ProjectEnvelope
	getErr  error

	patches     []domain.StatePatch
	patchGate   chan struct{}
	textGate    chan struct{}
	patchErr    error
	patchEcho   func(env *apiclient.ProjectEnvelope)
	inFlight    int
	maxInFlight int

	submitted []apiclient.ImageJobRequest
	submitErr error
	jobID     string

	progressScript []progressReply
	progressCalls  int

	regenGate  chan struct{}
	regenCalls []apiclient.RegenerateRequest
	regenReply func(req apiclient.RegenerateRequest) (*apiclient.RegenerateResponse, error)

	storyboard    *apiclient.StoryboardResponse
	storyboardErr error
	storyboards   []apiclient.StoryboardRequest

	deleted []string
}

type progressReply struct {
	prog *apiclient.JobProgress
	err  error
}

func newFakeAPI(state domain.ProjectState) *fakeAPI {
	return &fakeAPI{
		project: &apiclient.ProjectEnvelope{
			Meta:  domain.ProjectMeta{ID: "demo-1", Title: "Demo", Mode: domain.ProjectModeStory},
			State: state,
		},
		jobID: "job-1",
	}
}

func (f *fakeAPI) GetProject(ctx context.Context, projectID string) (*apiclient.ProjectEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	env := *f.project
	return &env, nil
}

func (f *fakeAPI) PatchProject(ctx context.Context, projectID string, patch domain.StatePatch) (*apiclient.ProjectEnvelope, error) {
	f.mu.Lock()
	f.patches = append(f.patches, patch)
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	gate := f.patchGate
	if f.textGate != nil && (patch.Title != nil || patch.Story != nil || patch.MinShots != nil) {
		gate = f.textGate
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if f.patchErr != nil {
		return nil, f.patchErr
	}
	st := &f.project.State
	if patch.Title != nil {
		title := *patch.Title
		st.Title = &title
	}
	if patch.Story != nil {
		st.Story = *patch.Story
	}
	if patch.MinShots != nil {
		v := domain.FlexInt(*patch.MinShots)
		st.MinShots = &v
	}
	if patch.StyleKey != nil {
		st.StyleKey = *patch.StyleKey
	}
	if patch.Prompts != nil {
		st.Prompts = slices.Clone(*patch.Prompts)
	}
	if patch.SavedResults != nil {
		raws := make([]json.RawMessage, 0, len(*patch.SavedResults))
		for _, rec := range *patch.SavedResults {
			raw, _ := json.Marshal(rec)
			raws = append(raws, raw)
		}
		st.SavedResults = raws
	}
	env := *f.project
	if f.patchEcho != nil {
		f.patchEcho(&env)
	}
	return &env, nil
}

func (f *fakeAPI) DeleteProject(ctx context.Context, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, projectID)
	return nil
}

func (f *fakeAPI) DeriveStoryboard(ctx context.Context, req apiclient.StoryboardRequest) (*apiclient.StoryboardResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.storyboards = append(f.storyboards, req)
	if f.storyboardErr != nil {
		return nil, f.storyboardErr
	}
	if f.storyboard == nil {
		return nil, errors.New("no storyboard scripted")
	}
	resp := *f.storyboard
	return &resp, nil
}

func (f *fakeAPI) SubmitImages(ctx context.Context, req apiclient.ImageJobRequest) (*apiclient.ImageJobResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &apiclient.ImageJobResponse{JobID: f.jobID}, nil
}

// ImageProgress replays progressScript; the last entry repeats once exhausted.
func (f *fakeAPI) ImageProgress(ctx context.Context, jobID string) (*apiclient.JobProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progressCalls++
	if len(f.progressScript) == 0 {
		return &apiclient.JobProgress{Status: domain.JobStatusRunning}, nil
	}
	i := min(f.progressCalls-1, len(f.progressScript)-1)
	reply := f.progressScript[i]
	return reply.prog, reply.err
}

func (f *fakeAPI) RegenerateImage(ctx context.Context, req apiclient.RegenerateRequest) (*apiclient.RegenerateResponse, error) {
	f.mu.Lock()
	f.regenCalls = append(f.regenCalls, req)
	gate := f.regenGate
	reply := f.regenReply
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if reply != nil {
		return reply(req)
	}
	raw, _ := json.Marshal(map[string]any{"url": "http://x/regen.png", "prompt": req.Prompt})
	return &apiclient.RegenerateResponse{Result: raw}, nil
}

func (f *fakeAPI) patchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.patches)
}

func (f *fakeAPI) patchAt(i int) domain.StatePatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches[i]
}

func (f *fakeAPI) patchesInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

func (f *fakeAPI) pollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progressCalls
}

func (f *fakeAPI) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func (f *fakeAPI) regenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.regenCalls)
}

const (
	testDebounce = 30 * time.Millisecond
	testPoll     = 10 * time.Millisecond
	waitFor      = 2 * time.Second
	tick         = 5 * time.Millisecond
)

func testOptions() Options {
	return Options{DebounceDelay: testDebounce, PollInterval: testPoll}
}

// loadedSession returns a loaded session over api, closed at test cleanup.
func loadedSession(t *testing.T, api *fakeAPI, opts Options) *Session {
	t.Helper()
	s, err := New(api, "demo-1", opts)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return s
}

func strPtr(s string) *string { return &s }

func flexPtr(n int) *domain.FlexInt {
	v := domain.FlexInt(n)
	return &v
}

func rawStrings(values ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(values))
	for _, v := range values {
		raw, _ := json.Marshal(v)
		out = append(out, raw)
	}
	return out
}
