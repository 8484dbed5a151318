package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Zhong-Ze-Wei/podcast/internal/api"
	apimiddleware "github.com/Zhong-Ze-Wei/podcast/internal/api/middleware"
	"github.com/Zhong-Ze-Wei/podcast/internal/store"
)

// routerDeps carries the collaborators the HTTP handlers need.
type routerDeps struct {
	episodes      api.EpisodeService
	feeds         api.FeedService
	engine        api.TaskEngine
	tasks         api.TaskLister
	templates     store.TemplateStore
	feedCounts    api.FeedCounter
	episodeCounts api.EpisodeCounter
	taskCounts    api.TaskCounter
}

// newRouter builds the chi router with middleware and all API routes.
func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.Trace)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	episodeHandler := api.NewEpisodeHandler(deps.episodes)
	feedHandler := api.NewFeedHandler(deps.feeds)
	taskHandler := api.NewTaskHandler(deps.engine, deps.tasks)
	templateHandler := api.NewTemplateHandler(deps.templates)
	statsHandler := api.NewStatsHandler(deps.feedCounts, deps.episodeCounts, deps.taskCounts)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", statsHandler.Get)

		r.Route("/feeds", func(r chi.Router) {
			r.Get("/", feedHandler.List)
			r.Post("/", feedHandler.Add)
			r.Get("/{id}", feedHandler.Get)
			r.Delete("/{id}", feedHandler.Delete)
			r.Post("/{id}/refresh", feedHandler.Refresh)
		})

		r.Route("/episodes", func(r chi.Router) {
			r.Get("/", episodeHandler.List)
			r.Get("/{id}", episodeHandler.Get)
			r.Post("/{id}/acquire", episodeHandler.Acquire)
			r.Post("/{id}/transcribe", episodeHandler.Transcribe)
			r.Post("/{id}/summarize", episodeHandler.Summarize)
			r.Get("/{id}/transcript", episodeHandler.GetTranscript)
			r.Delete("/{id}/transcript", episodeHandler.DeleteTranscript)
			r.Get("/{id}/summaries", episodeHandler.ListSummaries)
			r.Get("/{id}/summaries/{template}", episodeHandler.GetSummary)
			r.Delete("/{id}/summaries/{template}", episodeHandler.DeleteSummary)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.List)
			r.Get("/{id}", taskHandler.Get)
			r.Post("/{id}/cancel", taskHandler.Cancel)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templateHandler.List)
			r.Get("/{name}", templateHandler.Get)
			r.Put("/{name}", templateHandler.Upsert)
			r.Delete("/{name}", templateHandler.Delete)
		})
	})

	return r
}
