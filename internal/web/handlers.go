package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scantrail/scantrail/internal/history"
)

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, err error, status int) {
	http.Error(w, err.Error(), status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// handleHistoryList serves GET /history. Optional query parameters compose:
// q (substring search), level (threat level or ALL), start/end (RFC 3339,
// inclusive).
func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var entries []*history.HistoricalScan
	switch {
	case query.Get("q") != "":
		entries = s.Store.Search(ctx, query.Get("q"))
	case query.Get("level") != "":
		entries = s.Store.FilterByThreatLevel(ctx, query.Get("level"))
	case query.Get("start") != "" || query.Get("end") != "":
		start, end, err := parseDateRange(query.Get("start"), query.Get("end"))
		if err != nil {
			s.errorResponse(w, err, http.StatusBadRequest)
			return
		}
		entries = s.Store.FilterByDateRange(ctx, start, end)
	default:
		entries = s.Store.List(ctx)
	}

	if entries == nil {
		entries = []*history.HistoricalScan{}
	}
	s.jsonResponse(w, entries, http.StatusOK)
}

// parseDateRange interprets the start/end query parameters. Missing bounds
// default to the epoch and the far future respectively.
func parseDateRange(startRaw, endRaw string) (time.Time, time.Time, error) {
	start := time.Unix(0, 0).UTC()
	end := time.Now().UTC().AddDate(100, 0, 0)

	if startRaw != "" {
		t, err := time.Parse(time.RFC3339, startRaw)
		if err != nil {
			return start, end, fmt.Errorf("invalid start date %q: %w", startRaw, err)
		}
		start = t
	}
	if endRaw != "" {
		t, err := time.Parse(time.RFC3339, endRaw)
		if err != nil {
			return start, end, fmt.Errorf("invalid end date %q: %w", endRaw, err)
		}
		end = t
	}
	return start, end, nil
}

func (s *Server) handleHistoryDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, entry := range s.Store.List(r.Context()) {
		if entry.ID == id {
			s.jsonResponse(w, entry, http.StatusOK)
			return
		}
	}
	s.errorResponse(w, fmt.Errorf("entry %q not found", id), http.StatusNotFound)
}

func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="scantrail-history.json"`)
	if err := s.Store.ExportAll(r.Context(), w); err != nil {
		s.Logger.Error("history export failed", "error", err)
	}
}

// notesRequest carries the body of POST /history/{id}/notes.
type notesRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleNotesUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	if err := s.Store.SetNotes(r.Context(), id, req.Notes); err != nil {
		s.errorResponse(w, err, http.StatusNotFound)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "updated"}, http.StatusOK)
}

// tagsRequest carries the body of POST /history/{id}/tags.
type tagsRequest struct {
	Tags []string `json:"tags"`
}

func (s *Server) handleTagsAdd(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req tagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, fmt.Errorf("invalid request body: %w", err), http.StatusBadRequest)
		return
	}
	if err := s.Store.AddTags(r.Context(), id, req.Tags); err != nil {
		s.errorResponse(w, err, http.StatusNotFound)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "updated"}, http.StatusOK)
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Store.Delete(r.Context(), id); err != nil {
		s.errorResponse(w, err, http.StatusNotFound)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "deleted"}, http.StatusOK)
}

func (s *Server) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.ClearAll(r.Context()); err != nil {
		s.errorResponse(w, err, http.StatusInternalServerError)
		return
	}
	s.jsonResponse(w, map[string]string{"status": "cleared"}, http.StatusOK)
}
