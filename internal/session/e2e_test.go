package session_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rreenactt/AI-Videos-Tool/internal/apiclient"
	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
	"github.com/rreenactt/AI-Videos-Tool/internal/session"
	"github.com/rreenactt/AI-Videos-Tool/internal/storage"
	"github.com/rreenactt/AI-Videos-Tool/internal/stubserver"
)

func TestStoryboardRoundTrip(t *testing.T) {
	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	srv := stubserver.New(storage.NewProjectFiles(files), stubserver.Options{StepDelay: 5 * time.Millisecond})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})

	ctx := context.Background()
	client := apiclient.NewClient(apiclient.Options{BaseURL: ts.URL})
	meta, err := client.CreateProject(ctx, apiclient.CreateProjectRequest{Title: "Chase"})
	require.NoError(t, err)

	opts := session.Options{DebounceDelay: 20 * time.Millisecond, PollInterval: 10 * time.Millisecond}
	s, err := session.New(client, meta.ID, opts)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Load(ctx))

	s.SetNarrative("A hero flees.")
	s.SetMinShots(2)
	require.Eventually(t, func() bool { return !s.Snapshot().Dirty() }, 2*time.Second, 5*time.Millisecond)

	env, err := client.GetProject(ctx, meta.ID)
	require.NoError(t, err)
	assert.Equal(t, "A hero flees.", env.State.Story)
	assert.Equal(t, 2, env.State.MinShotsOr(0))

	require.NoError(t, s.DeriveStoryboard(ctx))
	snap := s.Snapshot()
	require.Len(t, snap.Prompts, 3)
	assert.Empty(t, snap.Results)

	jobID, err := s.SubmitImages(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, jobID)
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.JobID == "" && !snap.Busy
	}, 2*time.Second, 5*time.Millisecond)

	snap = s.Snapshot()
	assert.Equal(t, domain.JobStatusCompleted, snap.Progress.Status)
	require.Len(t, snap.Results, 3)
	for i, rec := range snap.Results {
		assert.Equal(t, i, rec.Index)
		assert.True(t, rec.HasImage())
		assert.Equal(t, snap.Prompts[i], rec.Prompt)
	}
	assert.Empty(t, snap.Error)

	rec, err := s.RegenerateWithPrompt(ctx, 1, "a hero leaps over a wall")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Index)
	assert.Equal(t, "a hero leaps over a wall", s.Snapshot().Prompts[1])

	env, err = client.GetProject(ctx, meta.ID)
	require.NoError(t, err)
	require.Len(t, env.State.Prompts, 3)
	assert.Equal(t, "a hero leaps over a wall", env.State.Prompts[1])
	require.Len(t, env.State.SavedResults, 3)

	reloaded, err := session.New(client, meta.ID, opts)
	require.NoError(t, err)
	t.Cleanup(reloaded.Close)
	require.NoError(t, reloaded.Load(ctx))
	again := reloaded.Snapshot()
	assert.Equal(t, snap.Draft.Narrative, again.Draft.Narrative)
	require.Len(t, again.Results, 3)
	assert.Equal(t, rec.Location(), again.Results[1].Location())
	assert.Equal(t, "a hero leaps over a wall", again.Results[1].Prompt)
}

func TestStoryboardJobFailureSurfaces(t *testing.T) {
	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	srv := stubserver.New(storage.NewProjectFiles(files), stubserver.Options{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})

	ctx := context.Background()
	client := apiclient.NewClient(apiclient.Options{BaseURL: ts.URL})
	meta, err := client.CreateProject(ctx, apiclient.CreateProjectRequest{Title: "Broken"})
	require.NoError(t, err)
	prompts := []string{"fine", "broken [fail]"}
	_, err = client.PatchProject(ctx, meta.ID, domain.StatePatch{Prompts: &prompts})
	require.NoError(t, err)

	s, err := session.New(client, meta.ID, session.Options{PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Load(ctx))

	_, err = s.SubmitImages(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Snapshot().Progress.Status == domain.JobStatusError }, 2*time.Second, 5*time.Millisecond)
	snap := s.Snapshot()
	assert.Equal(t, "image generation failed for shot 2", snap.Error)
	assert.False(t, snap.Busy)
	assert.Empty(t, snap.JobID)
}
