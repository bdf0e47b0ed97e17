package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rreenactt/AI-Videos-Tool/internal/apiclient"
	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

func TestSubmitRejectsEmptyPrompts(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{})
	s := loadedSession(t, api, testOptions())

	_, err := s.SubmitImages(context.Background())
	require.ErrorIs(t, err, domain.ErrNoPrompts)
	assert.Zero(t, api.submitCount())

	snap := s.Snapshot()
	assert.NotEmpty(t, snap.Error)
	assert.False(t, snap.Busy)
}

func TestJobCompletesAndReplacesResults(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{
		Prompts:      []string{"p0", "p1", "p2"},
		SavedResults: rawStrings("http://old/0.png"),
	})
	api.progressScript = []progressReply{
		{prog: &apiclient.JobProgress{Status: domain.JobStatusRunning, Progress: 40, Message: "working"}},
		{prog: &apiclient.JobProgress{
			Status:   domain.JobStatusCompleted,
			Progress: 100,
			Results:  rawStrings("http://x/1.png", "http://x/2.png", "http://x/3.png"),
		}},
	}
	s := loadedSession(t, api, testOptions())

	jobID, err := s.SubmitImages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)

	snap := s.Snapshot()
	assert.True(t, snap.Busy)
	assert.Equal(t, "job-1", snap.JobID)

	require.Eventually(t, func() bool { return s.Snapshot().JobID == "" }, waitFor, tick)
	snap = s.Snapshot()
	assert.False(t, snap.Busy)
	assert.Equal(t, domain.JobStatusCompleted, snap.Progress.Status)
	require.Len(t, snap.Results, 3)
	for i, rec := range snap.Results {
		assert.Equal(t, i, rec.Index)
		assert.Equal(t, snap.Prompts[i], rec.Prompt)
	}
	assert.Equal(t, "http://x/3.png", snap.Results[2].URL)

	polls := api.pollCount()
	time.Sleep(5 * testPoll)
	assert.Equal(t, polls, api.pollCount(), "polling stops at a terminal status")
	assert.Equal(t, 1, api.submitCount())

	api.mu.Lock()
	req := api.submitted[0]
	api.mu.Unlock()
	assert.Equal(t, DefaultImageModel, req.Model)
	assert.Equal(t, DefaultOutputDir, req.OutputDir)
	assert.Equal(t, []string{"p0", "p1", "p2"}, req.Prompts)
}

func TestJobErrorKeepsResults(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{
		Prompts:      []string{"p0"},
		SavedResults: rawStrings("http://old/0.png"),
	})
	api.progressScript = []progressReply{
		{prog: &apiclient.JobProgress{Status: domain.JobStatusError, Error: "quota exceeded"}},
	}
	s := loadedSession(t, api, testOptions())
	before := s.Snapshot().Results

	_, err := s.SubmitImages(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Snapshot().JobID == "" }, waitFor, tick)

	snap := s.Snapshot()
	assert.False(t, snap.Busy)
	assert.Equal(t, "quota exceeded", snap.Error)
	assert.Equal(t, before, snap.Results)
}

func TestJobErrorWithoutMessageUsesFallback(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Prompts: []string{"p0"}})
	api.progressScript = []progressReply{
		{prog: &apiclient.JobProgress{Status: domain.JobStatusError}},
	}
	s := loadedSession(t, api, testOptions())

	_, err := s.SubmitImages(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Snapshot().Error == defaultJobError }, waitFor, tick)
}

func TestPollTransportFailureStopsSilently(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Prompts: []string{"p0"}})
	api.progressScript = []progressReply{{err: errors.New("connection refused")}}
	s := loadedSession(t, api, testOptions())

	_, err := s.SubmitImages(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !s.Snapshot().Busy }, waitFor, tick)

	snap := s.Snapshot()
	assert.Empty(t, snap.JobID)
	assert.Empty(t, snap.Error)
	polls := api.pollCount()
	time.Sleep(5 * testPoll)
	assert.Equal(t, polls, api.pollCount())
}

func TestPollServerErrorIsRetried(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Prompts: []string{"p0"}})
	api.progressScript = []progressReply{
		{err: &apiclient.APIError{Status: http.StatusBadGateway}},
		{prog: &apiclient.JobProgress{Status: domain.JobStatusCompleted, Progress: 100, Results: rawStrings("http://x/1.png")}},
	}
	s := loadedSession(t, api, testOptions())

	_, err := s.SubmitImages(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.JobID == "" && len(snap.Results) == 1
	}, waitFor, tick)
	assert.GreaterOrEqual(t, api.pollCount(), 2)
}

func TestPollNotFoundAbandonsJob(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Prompts: []string{"p0"}})
	api.progressScript = []progressReply{{err: &apiclient.APIError{Status: http.StatusNotFound, Detail: "job not found"}}}
	s := loadedSession(t, api, testOptions())

	_, err := s.SubmitImages(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !s.Snapshot().Busy }, waitFor, tick)
	assert.Equal(t, 1, api.pollCount())
}

func TestSubmitFailureClearsBusy(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Prompts: []string{"p0"}})
	api.submitErr = &apiclient.APIError{Status: http.StatusInternalServerError, Detail: "generator offline"}
	s := loadedSession(t, api, testOptions())

	_, err := s.SubmitImages(context.Background())
	require.Error(t, err)

	snap := s.Snapshot()
	assert.False(t, snap.Busy)
	assert.Empty(t, snap.JobID)
	assert.Equal(t, "generator offline", snap.Error)
	assert.Equal(t, domain.JobStatusIdle, snap.Progress.Status)
	assert.Zero(t, api.pollCount())
}

func TestSecondSubmitWhileJobInFlight(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Prompts: []string{"p0"}})
	s := loadedSession(t, api, testOptions())

	_, err := s.SubmitImages(context.Background())
	require.NoError(t, err)
	_, err = s.SubmitImages(context.Background())
	require.ErrorIs(t, err, domain.ErrJobInFlight)
	assert.Equal(t, 1, api.submitCount())
}

func TestLoadResumesStoredJob(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{
		Prompts:       []string{"p0"},
		ImageJobID:    "job-9",
		ImageProgress: domain.ProgressState{Status: domain.JobStatusRunning, Progress: 20},
	})
	api.progressScript = []progressReply{
		{prog: &apiclient.JobProgress{Status: domain.JobStatusCompleted, Progress: 100, Results: rawStrings("http://x/9.png")}},
	}
	s, err := New(api, "demo-1", testOptions())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.Load(context.Background()))

	snap := s.Snapshot()
	assert.True(t, snap.Busy)
	assert.Equal(t, "job-9", snap.JobID)

	require.Eventually(t, func() bool { return !s.Snapshot().Busy }, waitFor, tick)
	snap = s.Snapshot()
	require.Len(t, snap.Results, 1)
	assert.Equal(t, "http://x/9.png", snap.Results[0].URL)
}

func TestProgressIsClamped(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Prompts: []string{"p0"}})
	api.progressScript = []progressReply{
		{prog: &apiclient.JobProgress{Status: domain.JobStatusRunning, Progress: 250}},
	}
	s := loadedSession(t, api, testOptions())

	_, err := s.SubmitImages(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Snapshot().Progress.Status == domain.JobStatusRunning }, waitFor, tick)
	assert.LessOrEqual(t, s.Snapshot().Progress.Progress, 100.0)
}
