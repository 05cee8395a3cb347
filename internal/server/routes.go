package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/dwsmith1983/vidtrend/internal/server/handlers"
)

func (s *Server) registerRoutes(r chi.Router) {
	h := handlers.New(s.svc, s.pinger, s.runner)
	h.SetLogger(s.logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Get("/batches", h.ListBatches)
		r.Route("/batches/{batchID}", func(r chi.Router) {
			r.Get("/categories", h.Categories)
			r.Get("/videos", h.TopVideos)
			r.Get("/channels", h.TopChannels)
			r.Get("/durations", h.Durations)
			r.Get("/hashtags", h.Hashtags)
			r.Get("/report", h.Report)
		})

		r.Post("/runs", h.TriggerRun)
	})
}
