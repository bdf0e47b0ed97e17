package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rreenactt/AI-Videos-Tool/internal/domain"
	"github.com/rreenactt/AI-Videos-Tool/internal/infra"
	"github.com/rreenactt/AI-Videos-Tool/internal/storage"
	"github.com/rreenactt/AI-Videos-Tool/internal/stubserver"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres when DATABASE_URL is set, project directories otherwise.
	var repo domain.ProjectRepository
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("stubapi: db connection failed")
		}
		defer pool.Close()

		pg := storage.NewPGStore(infra.NewSQLRunner(pool, logger))
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("stubapi: ensure schema failed")
		}
		repo = pg
		logger.Info().Msg("stubapi: using postgres project store")
	} else {
		files, err := storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.StoragePath).Msg("stubapi: storage init failed")
		}
		repo = storage.NewProjectFiles(files)
		logger.Info().Str("path", files.BasePath()).Msg("stubapi: using file project store")
	}

	api := stubserver.New(repo, stubserver.OptionsFromConfig(cfg, &logger))
	server := infra.NewHTTPServer(cfg, api.Handler())

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("stubapi listening on :%s", cfg.Port)
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("stubapi: http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("stubapi: shutdown failed")
	}
	api.Close()
	logger.Info().Msg("stubapi stopped")
}
