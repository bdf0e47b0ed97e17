// Package session implements the project-view engine: it loads a project, keeps
// the locally edited draft in sync with the backend through debounced autosave,
// tracks bulk image-generation jobs by polling, and regenerates single shots.
//
// All state lives behind one mutex; network calls are made without holding it.
// Observers receive immutable Snapshot values through Subscribe.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rreenactt/AI-Videos-Tool/internal/apiclient"
	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
	"github.com/rreenactt/AI-Videos-Tool/internal/infra"
)

// API is the part of the backend contract a session consumes. *apiclient.Client
// satisfies it.
type API interface {
	GetProject(ctx context.Context, projectID string) (*apiclient.ProjectEnvelope, error)
	PatchProject(ctx context.Context, projectID string, patch domain.StatePatch) (*apiclient.ProjectEnvelope, error)
	DeleteProject(ctx context.Context, projectID string) error
	DeriveStoryboard(ctx context.Context, req apiclient.StoryboardRequest) (*apiclient.StoryboardResponse, error)
	SubmitImages(ctx context.Context, req apiclient.ImageJobRequest) (*apiclient.ImageJobResponse, error)
	ImageProgress(ctx context.Context, jobID string) (*apiclient.JobProgress, error)
	RegenerateImage(ctx context.Context, req apiclient.RegenerateRequest) (*apiclient.RegenerateResponse, error)
}

var _ API = (*apiclient.Client)(nil)

const (
	DefaultDebounceDelay = 800 * time.Millisecond
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultImageModel    = "gpt-image-1"
	DefaultImageSize     = "1024x1024"
	DefaultOutputDir     = "Project/data/outputs"

	defaultJobError = "image generation failed"
)

// Options configures a session. Zero values fall back to the defaults above.
type Options struct {
	DebounceDelay time.Duration
	PollInterval  time.Duration
	ImageModel    string
	ImageSize     string
	OutputDir     string
	Logger        *infra.Logger
}

// OptionsFromConfig maps the loaded configuration onto session options.
func OptionsFromConfig(cfg *infra.Config, logger *infra.Logger) Options {
	return Options{
		DebounceDelay: cfg.DebounceDelay,
		PollInterval:  cfg.PollInterval,
		ImageModel:    cfg.ImageModel,
		ImageSize:     cfg.ImageSize,
		OutputDir:     cfg.OutputDir,
		Logger:        logger,
	}
}

func (o Options) withDefaults() Options {
	if o.DebounceDelay <= 0 {
		o.DebounceDelay = DefaultDebounceDelay
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ImageModel == "" {
		o.ImageModel = DefaultImageModel
	}
	if o.ImageSize == "" {
		o.ImageSize = DefaultImageSize
	}
	if o.OutputDir == "" {
		o.OutputDir = DefaultOutputDir
	}
	if o.Logger == nil {
		o.Logger = infra.NopLogger()
	}
	return o
}

// LoadState tracks the one-shot project load.
type LoadState int

const (
	LoadNotLoaded LoadState = iota
	LoadLoading
	LoadLoaded
	// LoadFailed is "loaded with error": the view is usable with default data,
	// but autosave stays disabled so defaults never overwrite server state.
	LoadFailed
)

func (s LoadState) String() string {
	switch s {
	case LoadLoading:
		return "loading"
	case LoadLoaded:
		return "loaded"
	case LoadFailed:
		return "loaded-with-error"
	default:
		return "not-loaded"
	}
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	ProjectID    string
	Mode         domain.ProjectMode
	LoadState    LoadState
	Draft        domain.Draft
	Saved        domain.Draft
	Prompts      []string
	Cuts         []domain.Cut
	Results      []domain.ResultRecord
	Progress     domain.ProgressState
	JobID        string
	Busy         bool
	Regenerating []int
	Error        string
	// SaveError reports an autosave failure not yet cleared by a later save of
	// the same group. It never reaches Error.
	SaveError string
}

// Dirty reports whether the draft has edits the backend has not acknowledged.
func (s Snapshot) Dirty() bool {
	return !s.Draft.TextPatch(s.Saved).IsEmpty() || !s.Draft.StylePatch(s.Saved).IsEmpty()
}

// IsRegenerating reports whether shot i has a regeneration in flight.
func (s Snapshot) IsRegenerating(i int) bool {
	return slices.Contains(s.Regenerating, i)
}

// saveGroup partitions persisted fields; each group has at most one save in flight.
type saveGroup int

const (
	groupText saveGroup = iota
	groupStyle
	groupCollection
	groupCount
)

func (g saveGroup) String() string {
	switch g {
	case groupText:
		return "text"
	case groupStyle:
		return "style"
	case groupCollection:
		return "collection"
	default:
		return "unknown"
	}
}

type groupState struct {
	inFlight bool
	deferred bool
}

// Session is one active project view.
type Session struct {
	api       API
	projectID string
	opts      Options
	logger    *infra.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *debouncer

	mu                sync.Mutex
	closed            bool
	loadState         LoadState
	meta              domain.ProjectMeta
	draft             domain.Draft
	saved             domain.Draft
	prompts           []string
	cuts              []domain.Cut
	results           []domain.ResultRecord
	progress          domain.ProgressState
	jobID             string
	busy              bool
	regenerating      map[int]struct{}
	errMsg            string
	saveErrs          [groupCount]string
	groups            [groupCount]groupState
	collectionVersion uint64
	collectionSaved   uint64
	poll              *pollTask
	subs              map[int]chan Snapshot
	nextSub           int
}

// New creates a session for projectID. Call Load to fetch the project and Close
// to release its timers and polling.
func New(api API, projectID string, opts Options) (*Session, error) {
	if api == nil {
		return nil, errors.New("session: api is required")
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, domain.ErrInvalidProject
	}
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		api:          api,
		projectID:    projectID,
		opts:         opts,
		logger:       opts.Logger,
		ctx:          ctx,
		cancel:       cancel,
		draft:        domain.DefaultDraft(),
		saved:        domain.DefaultDraft(),
		prompts:      []string{},
		results:      []domain.ResultRecord{},
		progress:     domain.IdleProgress(),
		regenerating: make(map[int]struct{}),
		subs:         make(map[int]chan Snapshot),
		meta:         domain.ProjectMeta{ID: projectID, Mode: domain.ProjectModeStory},
	}
	s.debounce = newDebouncer(opts.DebounceDelay, func() {
		s.tracked(func() { s.flush(context.Background(), groupText) })
	})
	return s, nil
}

// ProjectID returns the id of the project this session tracks.
func (s *Session) ProjectID() string {
	return s.projectID
}

// Close cancels the debounce timer, the poll loop and in-flight requests, closes
// subscriber channels and waits for background work to exit. Responses that
// arrive afterwards are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.debounce.Stop()
	s.stopPollLocked()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Debug().Str("project_id", s.projectID).Msg("session: closed")
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives the current snapshot immediately and
// the latest snapshot after every change. Slow readers only miss intermediate
// states. The channel is closed by the returned cancel func or by Close.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	regen := make([]int, 0, len(s.regenerating))
	for i := range s.regenerating {
		regen = append(regen, i)
	}
	sort.Ints(regen)
	return Snapshot{
		ProjectID:    s.projectID,
		Mode:         s.meta.Mode,
		LoadState:    s.loadState,
		Draft:        s.draft,
		Saved:        s.saved,
		Prompts:      slices.Clone(s.prompts),
		Cuts:         cloneCuts(s.cuts),
		Results:      slices.Clone(s.results),
		Progress:     s.progress,
		JobID:        s.jobID,
		Busy:         s.busy,
		Regenerating: regen,
		Error:        s.errMsg,
		SaveError:    s.saveErrorLocked(),
	}
}

func (s *Session) saveErrorLocked() string {
	for _, msg := range s.saveErrs {
		if msg != "" {
			return msg
		}
	}
	return ""
}

func cloneCuts(cuts []domain.Cut) []domain.Cut {
	if cuts == nil {
		return nil
	}
	out := make([]domain.Cut, len(cuts))
	for i, c := range cuts {
		c.Characters = slices.Clone(c.Characters)
		c.Dialogues = slices.Clone(c.Dialogues)
		c.Actions = slices.Clone(c.Actions)
		out[i] = c
	}
	return out
}

func (s *Session) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Replace the unread snapshot with the newer one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// spawnLocked starts fn on a goroutine that Close waits for.
func (s *Session) spawnLocked(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// tracked runs fn on the calling goroutine, registered with Close, unless closed.
func (s *Session) tracked(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()
	fn()
}

// opContext derives a request context that is also cancelled by Close.
func (s *Session) opContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) setErrorLocked(err error) {
	s.errMsg = errorMessage(err)
}

// errorMessage renders err for the single user-facing error slot.
func errorMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return err.Error()
}

func wrap(op string, err error) error {
	return fmt.Errorf("session: %s: %w", op, err)
}
