// Package stubserver is a development backend that speaks the storyboard API.
// Projects persist through a domain.ProjectRepository; image generation is
// synthetic and paced so clients can observe queued, running and terminal
// progress.
package stubserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
	"github.com/rreenactt/AI-Videos-Tool/internal/infra"
	"github.com/rreenactt/AI-Videos-Tool/internal/middleware"
)

type Options struct {
	// StepDelay is the synthetic generation time per shot.
	StepDelay time.Duration
	// PublicBaseURL prefixes generated image locations. When empty they are
	// server-relative paths.
	PublicBaseURL      string
	OutputDir          string
	JobTTL             time.Duration
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	Deriver            Deriver
	Logger             *infra.Logger
	Now                func() time.Time
}

// OptionsFromConfig maps the loaded configuration onto server options.
func OptionsFromConfig(cfg *infra.Config, logger *infra.Logger) Options {
	return Options{
		StepDelay:          cfg.StubStep,
		PublicBaseURL:      cfg.PublicBaseURL,
		OutputDir:          cfg.OutputDir,
		RateLimitPerMinute: cfg.RateLimitPerMin,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:             logger,
	}
}

type Server struct {
	repo    domain.ProjectRepository
	jobs    *JobStore
	deriver Deriver
	opts    Options
	logger  *infra.Logger

	// stateMu serializes read-modify-write cycles on project state, which both
	// handlers and job workers perform.
	stateMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(repo domain.ProjectRepository, opts Options) *Server {
	if opts.Deriver == nil {
		opts.Deriver = StaticDeriver{}
	}
	if opts.Logger == nil {
		opts.Logger = infra.NopLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "Project/data/outputs"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		repo:    repo,
		jobs:    NewJobStore(opts.JobTTL),
		deriver: opts.Deriver,
		opts:    opts,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(*s.logger),
		middleware.CORS(s.opts.CORSAllowedOrigins),
		middleware.RateLimit(s.opts.RateLimitPerMinute, time.Minute),
	)

	r.Get("/health", s.health)
	r.Get("/outputs/*", s.outputImage)

	r.Route("/api", func(r chi.Router) {
		r.Get("/home", s.home)
		r.Post("/projects", s.createProject)
		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/", s.getProject)
			r.Patch("/", s.patchProject)
			r.Delete("/", s.deleteProject)
		})
		r.Post("/storyboard", s.storyboard)
		r.Post("/images", s.submitImages)
		r.Get("/images/progress/{job_id}", s.imageProgress)
		r.Post("/images/regenerate", s.regenerateImage)
	})
	return r
}

// Close stops running jobs and waits for their workers.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error replies with the {"detail": ...} body clients surface to users.
func (s *Server) error(w http.ResponseWriter, code int, detail string) {
	s.json(w, code, map[string]string{"detail": detail})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.error(w, http.StatusUnprocessableEntity, "invalid request body")
		return false
	}
	return true
}
