// Package web exposes the scan history over a small JSON HTTP API for
// dashboards and other consumers.
package web

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scantrail/scantrail/internal/history"
)

// Server wires the web handlers and dependencies.
type Server struct {
	Store  history.Store
	Logger *slog.Logger
	Router chi.Router
}

// NewServer constructs the router and registers routes.
func NewServer(store history.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	server := &Server{Store: store, Logger: logger}

	r := chi.NewRouter()
	r.Get("/healthz", server.handleHealth)
	r.Get("/history", server.handleHistoryList)
	r.Get("/history/export", server.handleHistoryExport)
	r.Get("/history/{id}", server.handleHistoryDetail)
	r.Post("/history/{id}/notes", server.handleNotesUpdate)
	r.Post("/history/{id}/tags", server.handleTagsAdd)
	r.Delete("/history/{id}", server.handleHistoryDelete)
	r.Delete("/history", server.handleHistoryClear)

	server.Router = r
	return server
}

// Handler exposes the configured router.
func (s *Server) Handler() http.Handler {
	return s.Router
}
