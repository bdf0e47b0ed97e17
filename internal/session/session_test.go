package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rreenactt/AI-Videos-Tool/internal/apiclient"
	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
)

func TestNewRejectsBlankProject(t *testing.T) {
	_, err := New(newFakeAPI(domain.ProjectState{}), "  ", Options{})
	require.ErrorIs(t, err, domain.ErrInvalidProject)

	_, err = New(nil, "demo-1", Options{})
	require.Error(t, err)
}

func TestLoadSeedsDraftAndBaseline(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{
		Title:        strPtr("Flight"),
		Story:        "A hero flees.",
		MinShots:     flexPtr(3),
		Prompts:      []string{"p0", "p1"},
		SavedResults: rawStrings("http://x/0.png"),
		StyleKey:     "noir",
	})
	s := loadedSession(t, api, testOptions())

	snap := s.Snapshot()
	require.Equal(t, LoadLoaded, snap.LoadState)
	assert.Equal(t, domain.Draft{Title: "Flight", Narrative: "A hero flees.", MinShots: 3, Style: domain.StyleNoir}, snap.Draft)
	assert.Equal(t, snap.Draft, snap.Saved)
	assert.False(t, snap.Dirty())
	require.Len(t, snap.Results, 1)
	assert.Equal(t, domain.ResultRecord{Index: 0, URL: "http://x/0.png", Path: "http://x/0.png", Prompt: "p0"}, snap.Results[0])
	assert.False(t, snap.Busy)
	assert.Equal(t, domain.JobStatusIdle, snap.Progress.Status)
}

func TestLoadDefaultsMissingFields(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{})
	s := loadedSession(t, api, testOptions())

	snap := s.Snapshot()
	assert.Equal(t, "Demo", snap.Draft.Title, "title falls back to the metadata title")
	assert.Equal(t, domain.DefaultMinShots, snap.Draft.MinShots)
	assert.Equal(t, domain.DefaultStyle, snap.Draft.Style)
	assert.NotNil(t, snap.Prompts)
	assert.NotNil(t, snap.Results)
}

func TestLoadFailureDisablesAutosave(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{})
	api.getErr = &apiclient.APIError{Method: http.MethodGet, Path: "/api/projects/demo-1", Status: http.StatusNotFound, Detail: "project not found"}

	s, err := New(api, "demo-1", testOptions())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.Error(t, s.Load(context.Background()))
	snap := s.Snapshot()
	require.Equal(t, LoadFailed, snap.LoadState)
	assert.Equal(t, "project not found", snap.Error)
	assert.Equal(t, domain.DefaultDraft(), snap.Draft)

	s.SetTitle("overwrite")
	time.Sleep(4 * testDebounce)
	assert.Zero(t, api.patchCount(), "defaults must never be saved over server state")
}

func TestLoadRunsOnce(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Title: strPtr("first")})
	s := loadedSession(t, api, testOptions())

	api.mu.Lock()
	api.project.State.Title = strPtr("second")
	api.mu.Unlock()

	require.NoError(t, s.Load(context.Background()))
	assert.Equal(t, "first", s.Snapshot().Draft.Title)
}

func TestEditsCoalesceIntoOneSave(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Title: strPtr("")})
	s := loadedSession(t, api, testOptions())

	for _, title := range []string{"a", "ab", "abc"} {
		s.SetTitle(title)
		time.Sleep(testDebounce / 4)
	}

	require.Eventually(t, func() bool { return api.patchCount() == 1 }, waitFor, tick)
	time.Sleep(4 * testDebounce)
	require.Equal(t, 1, api.patchCount())

	patch := api.patchAt(0)
	require.NotNil(t, patch.Title)
	assert.Equal(t, "abc", *patch.Title)
	assert.Nil(t, patch.Story)
	assert.Nil(t, patch.MinShots)
	assert.Nil(t, patch.StyleKey)

	require.Eventually(t, func() bool { return !s.Snapshot().Dirty() }, waitFor, tick)
}

func TestUnchangedEditDoesNotSave(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Title: strPtr("same")})
	s := loadedSession(t, api, testOptions())

	s.SetTitle("other")
	s.SetTitle("same")
	time.Sleep(4 * testDebounce)
	assert.Zero(t, api.patchCount())
}

func TestSaveBaselineComesFromServerEcho(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Title: strPtr("")})
	api.patchEcho = func(env *apiclient.ProjectEnvelope) {
		env.State.Title = strPtr("Server Title")
	}
	s := loadedSession(t, api, testOptions())

	s.SetTitle("local title")
	require.Eventually(t, func() bool { return s.Snapshot().Saved.Title == "Server Title" }, waitFor, tick)

	snap := s.Snapshot()
	assert.Equal(t, "local title", snap.Draft.Title)
	assert.True(t, snap.Dirty())

	time.Sleep(4 * testDebounce)
	assert.Equal(t, 1, api.patchCount(), "a divergent echo must not start a save loop")
}

func TestMinShotsComparedByValue(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{MinShots: flexPtr(2)})
	api.patchEcho = func(env *apiclient.ProjectEnvelope) {
		var echo domain.ProjectState
		_ = json.Unmarshal([]byte(`{"min_shots_per_scene":"4"}`), &echo)
		env.State.MinShots = echo.MinShots
	}
	s := loadedSession(t, api, testOptions())

	s.SetMinShotsText("4")
	require.Eventually(t, func() bool { return api.patchCount() == 1 }, waitFor, tick)
	require.Eventually(t, func() bool { return s.Snapshot().Saved.MinShots == 4 }, waitFor, tick)
	assert.False(t, s.Snapshot().Dirty())

	patch := api.patchAt(0)
	require.NotNil(t, patch.MinShots)
	assert.Equal(t, 4, *patch.MinShots)
}

func TestMinShotsInputIsClamped(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{})
	s := loadedSession(t, api, testOptions())

	s.SetMinShotsText("abc")
	assert.Equal(t, 1, s.Snapshot().Draft.MinShots)
	s.SetMinShots(-5)
	assert.Equal(t, 1, s.Snapshot().Draft.MinShots)
}

func TestStyleSavesImmediately(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{})
	opts := testOptions()
	opts.DebounceDelay = time.Hour
	s := loadedSession(t, api, opts)

	require.NoError(t, s.SetStyle(domain.StyleWatercolor))
	require.Eventually(t, func() bool { return api.patchCount() == 1 }, waitFor, tick)

	patch := api.patchAt(0)
	require.NotNil(t, patch.StyleKey)
	assert.Equal(t, "watercolor", *patch.StyleKey)
	assert.Nil(t, patch.Title)
	require.Eventually(t, func() bool { return s.Snapshot().Saved.Style == domain.StyleWatercolor }, waitFor, tick)

	require.ErrorIs(t, s.SetStyle("vaporwave"), domain.ErrUnknownStyle)
}

func TestOneSaveInFlightPerGroup(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Title: strPtr("")})
	api.patchGate = make(chan struct{})
	s := loadedSession(t, api, testOptions())

	s.SetTitle("first")
	require.Eventually(t, func() bool { return api.patchCount() == 1 }, waitFor, tick)

	s.SetTitle("second")
	s.SetNarrative("story")
	time.Sleep(4 * testDebounce)
	require.Equal(t, 1, api.patchCount(), "second save must wait for the first")

	close(api.patchGate)
	require.Eventually(t, func() bool { return api.patchCount() == 2 }, waitFor, tick)
	require.Eventually(t, func() bool { return !s.Snapshot().Dirty() }, waitFor, tick)

	patch := api.patchAt(1)
	require.NotNil(t, patch.Title)
	assert.Equal(t, "second", *patch.Title)
	require.NotNil(t, patch.Story)
	assert.Equal(t, "story", *patch.Story)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, 1, api.maxInFlight)
}

func TestSaveFailureIsSilent(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Title: strPtr("")})
	api.patchErr = errors.New("boom")
	s := loadedSession(t, api, testOptions())

	s.SetTitle("x")
	require.Eventually(t, func() bool { return s.Snapshot().SaveError != "" }, waitFor, tick)
	snap := s.Snapshot()
	assert.Equal(t, "boom", snap.SaveError)
	assert.Empty(t, snap.Error)
	assert.True(t, snap.Dirty())

	api.mu.Lock()
	api.patchErr = nil
	api.mu.Unlock()
	s.SetTitle("xy")
	require.Eventually(t, func() bool { return !s.Snapshot().Dirty() }, waitFor, tick)
	assert.Empty(t, s.Snapshot().SaveError)
}

func TestSaveFailureIsPublished(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Title: strPtr("")})
	api.patchErr = &apiclient.APIError{Status: http.StatusInternalServerError, Detail: "storage offline"}
	s := loadedSession(t, api, testOptions())

	ch, cancel := s.Subscribe()
	defer cancel()
	s.SetTitle("x")

	deadline := time.After(waitFor)
	for {
		select {
		case snap := <-ch:
			if snap.SaveError == "" {
				continue
			}
			assert.Equal(t, "storage offline", snap.SaveError)
			assert.Empty(t, snap.Error)
			return
		case <-deadline:
			t.Fatal("no snapshot carried the autosave failure")
		}
	}
}

func TestConcurrentGroupsKeepTheirOwnBaseline(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Title: strPtr("Old")})
	api.textGate = make(chan struct{})
	s := loadedSession(t, api, testOptions())

	s.SetTitle("New")
	require.Eventually(t, func() bool { return api.patchesInFlight() == 1 }, waitFor, tick)

	require.NoError(t, s.SetStyle(domain.StyleNoir))
	require.Eventually(t, func() bool { return s.Snapshot().Saved.Style == domain.StyleNoir }, waitFor, tick)
	assert.Equal(t, "Old", s.Snapshot().Saved.Title)

	// The text reply carries a stale style that must not leak into the style baseline.
	api.mu.Lock()
	api.patchEcho = func(env *apiclient.ProjectEnvelope) {
		env.State.StyleKey = string(domain.StyleCinematic)
	}
	api.mu.Unlock()
	close(api.textGate)

	require.Eventually(t, func() bool { return s.Snapshot().Saved.Title == "New" }, waitFor, tick)
	snap := s.Snapshot()
	assert.Equal(t, domain.StyleNoir, snap.Saved.Style)
	assert.Equal(t, domain.StyleNoir, snap.Draft.Style)
	assert.False(t, snap.Dirty())

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, 2, api.maxInFlight)
}

func TestSnapshotCutsAreCopies(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{
		Cuts: []domain.Cut{{
			CutID:      1,
			Characters: []string{"Mina"},
			Dialogues:  []domain.Dialogue{{Speaker: "Mina", Text: "run"}},
			Actions:    []string{"runs"},
		}},
	})
	s := loadedSession(t, api, testOptions())

	snap := s.Snapshot()
	require.Len(t, snap.Cuts, 1)
	snap.Cuts[0].Characters[0] = "Joon"
	snap.Cuts[0].Dialogues[0].Text = "stay"
	snap.Cuts[0].Actions[0] = "waits"

	again := s.Snapshot().Cuts[0]
	assert.Equal(t, []string{"Mina"}, again.Characters)
	assert.Equal(t, "run", again.Dialogues[0].Text)
	assert.Equal(t, []string{"runs"}, again.Actions)
}

func TestSubscribeDeliversLatestSnapshot(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{})
	s := loadedSession(t, api, testOptions())

	ch, cancel := s.Subscribe()
	defer cancel()
	first := <-ch
	assert.Equal(t, LoadLoaded, first.LoadState)

	s.SetTitle("a")
	s.SetTitle("ab")
	latest := <-ch
	assert.Equal(t, "ab", latest.Draft.Title)

	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestCloseStopsTimersAndPolling(t *testing.T) {
	api := newFakeAPI(domain.ProjectState{Prompts: []string{"p0"}})
	s := loadedSession(t, api, testOptions())

	ch, _ := s.Subscribe()
	_, err := s.SubmitImages(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return api.pollCount() > 1 }, waitFor, tick)

	s.SetTitle("never saved")
	s.Close()
	polls := api.pollCount()
	time.Sleep(4 * testDebounce)

	assert.Equal(t, polls, api.pollCount())
	assert.Zero(t, api.patchCount())
	for range ch {
	}
	s.SetTitle("ignored")
	_, err = s.SubmitImages(context.Background())
	require.ErrorIs(t, err, domain.ErrSessionClosed)
}
