package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/flatfile/internal/catalog"
	"github.com/JonMunkholm/flatfile/internal/logging"
	"github.com/JonMunkholm/flatfile/internal/store"
)

// FormatResponse describes one registered format.
type FormatResponse struct {
	Key         string   `json:"key"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Mode        string   `json:"mode"`
	Table       string   `json:"table,omitempty"`
	Columns     []string `json:"columns"`
	Persistable bool     `json:"persistable"`
}

func toFormatResponse(def catalog.Definition) FormatResponse {
	return FormatResponse{
		Key:         def.Info.Key,
		Label:       def.Info.Label,
		Description: def.Info.Description,
		Mode:        def.Info.Mode,
		Table:       def.Info.Table,
		Columns:     def.Info.Columns,
		Persistable: def.SupportsCopy(),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := indexPage(catalog.All(), s.importer != nil, s.objects != nil)
	if err := page.Render(r.Context(), w); err != nil {
		s.log.Error("render index", logging.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.log.Warn("health check failed", logging.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFormats(w http.ResponseWriter, r *http.Request) {
	defs := catalog.All()
	out := make([]FormatResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, toFormatResponse(def))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetFormat(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "formatKey")
	def, ok := catalog.Get(key)
	if !ok {
		s.respondError(w, r, fmt.Errorf("%w: %s", ErrUnknownFormat, key))
		return
	}
	writeJSON(w, http.StatusOK, toFormatResponse(def))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.respondError(w, r, ErrPersistDisabled)
		return
	}
	runs, err := s.runs.Recent(r.Context(), r.URL.Query().Get("format"), parseIntParam(r, "limit", 20))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.respondError(w, r, ErrPersistDisabled)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", store.ErrRunNotFound, err))
		return
	}
	run, err := s.runs.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleStatus reports decode slot usage.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Status())
}

// parseIntParam parses a positive integer query parameter.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

func parseBoolParam(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}
