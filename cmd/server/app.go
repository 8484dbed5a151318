package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Zhong-Ze-Wei/podcast/internal/config"
	"github.com/Zhong-Ze-Wei/podcast/internal/media"
	"github.com/Zhong-Ze-Wei/podcast/internal/platform/gemini"
	"github.com/Zhong-Ze-Wei/podcast/internal/platform/logger"
	"github.com/Zhong-Ze-Wei/podcast/internal/platform/postgres"
	"github.com/Zhong-Ze-Wei/podcast/internal/platform/rss"
	"github.com/Zhong-Ze-Wei/podcast/internal/service"
	"github.com/Zhong-Ze-Wei/podcast/internal/summarize"
	"github.com/Zhong-Ze-Wei/podcast/internal/task"
	"github.com/Zhong-Ze-Wei/podcast/internal/transcription"
)

// application bundles everything main needs to run and shut down the server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB
	engine *task.Engine
	server *http.Server
}

// newApplication loads configuration and wires every component together:
// database and migrations, stores, the task engine, the model client, the
// stage services, and the HTTP server. The engine's workers are started
// before this returns.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.Setup(cfg.Server)

	db, err := openDatabase(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	if err := postgres.MigrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	feedStore := postgres.NewFeedStore(db, log)
	episodeStore := postgres.NewEpisodeStore(db, log)
	transcriptStore := postgres.NewTranscriptStore(db, log)
	summaryStore := postgres.NewSummaryStore(db, log)
	templateStore := postgres.NewTemplateStore(db, log)
	taskStore := postgres.NewTaskStore(db, log)

	engine := task.NewEngine(taskStore, task.Config{
		WorkerCount: cfg.Task.WorkerCount,
		QueueSize:   cfg.Task.QueueSize,
	}, log)
	if err := engine.Start(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to start task engine: %w", err)
	}

	if err := summarize.RegisterDefaults(ctx, templateStore); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to register built-in templates: %w", err)
	}

	modelClient, err := gemini.NewClient(ctx, log, cfg.LLM)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	// The model client owns the transport retry budget (llm.max_retries with
	// backoff); the summarization engine keeps its own fixed correction
	// budget. Feeding one knob to both layers would multiply the attempts.
	summarizer := summarize.NewEngine(templateStore, modelClient, summarize.Config{
		MaxChars: cfg.LLM.PromptMaxChars,
	}, log)

	// The transcription backend is optional. Without it the transcribe stage
	// can still succeed through official transcript URLs.
	var transcriber transcription.Transcriber
	backend, err := transcription.NewHTTPTranscriber(cfg.Transcription, log)
	switch {
	case err == nil:
		transcriber = backend
	case errors.Is(err, transcription.ErrBackendDisabled):
		log.Info("transcription backend disabled, relying on official transcripts")
	default:
		_ = db.Close()
		return nil, fmt.Errorf("failed to create transcriber: %w", err)
	}

	episodeService, err := service.NewEpisodeService(service.EpisodeServiceConfig{
		Episodes:    episodeStore,
		Transcripts: transcriptStore,
		Summaries:   summaryStore,
		Tasks:       taskStore,
		Engine:      engine,
		Audio:       media.NewHTTPFetcher(cfg.Media.Root, log),
		Transcriber: transcriber,
		Official:    transcription.NewFetcher(log),
		Summarizer:  summarizer,
		Logger:      log,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create episode service: %w", err)
	}

	feedService, err := service.NewFeedService(
		feedStore, episodeStore, taskStore, engine, rss.NewClient(log), log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create feed service: %w", err)
	}

	router := newRouter(routerDeps{
		episodes:      episodeService,
		feeds:         feedService,
		engine:        engine,
		tasks:         taskStore,
		templates:     templateStore,
		feedCounts:    feedStore,
		episodeCounts: episodeStore,
		taskCounts:    taskStore,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &application{
		config: cfg,
		logger: log,
		db:     db,
		engine: engine,
		server: server,
	}, nil
}

// shutdown stops accepting requests, drains the task engine, and closes the
// database. In-flight jobs get until the context deadline to finish.
func (app *application) shutdown(ctx context.Context) {
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("http server shutdown failed", "error", err)
	}

	if err := app.engine.Shutdown(ctx); err != nil {
		app.logger.Error("task engine shutdown incomplete", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("database close failed", "error", err)
	}
}
