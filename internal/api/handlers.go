package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/gridlink/internal/command"
	"github.com/mattjoyce/gridlink/internal/doctor"
	"github.com/mattjoyce/gridlink/internal/grid"
	"github.com/mattjoyce/gridlink/internal/inspect"
	"github.com/mattjoyce/gridlink/internal/journal"
	"github.com/mattjoyce/gridlink/internal/store"
)

// decodeBody reads at most maxRequestBody bytes of JSON into v. On failure
// it has already answered 413 or 400.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	s.writeError(w, http.StatusBadRequest, "invalid JSON body")
	return false
}

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snap := s.grid.Snapshot()
	plugins := len(s.grid.Plugins())
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		Segments:      len(snap.Spaces),
		Rows:          len(snap.Rows),
		PluginsLoaded: plugins,
		Subscribers:   s.events.Subscribers(),
		EventsDropped: s.events.Dropped(),
	})
}

// handleGetGrid handles GET /grid.
func (s *Server) handleGetGrid(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()

	resp := GridResponse{
		Spaces: make([]SpaceView, 0, len(snap.Spaces)),
		Rows:   make([]RowView, 0, len(snap.Rows)),
		Cells:  snap.Cells,
	}
	for _, sp := range snap.Spaces {
		resp.Spaces = append(resp.Spaces, SpaceView{
			Space:  sp,
			BandLo: sp.Range.Lo.String(),
			BandHi: sp.Range.Hi.String(),
		})
	}
	for _, row := range snap.Rows {
		resp.Rows = append(resp.Rows, RowView{Row: row, Key: row.Key.String()})
	}
	if resp.Cells == nil {
		resp.Cells = map[string]store.Cell{}
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleFingerprint handles GET /grid/fingerprint.
func (s *Server) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	fp, err := inspect.Fingerprint(snap)
	if err != nil {
		s.logger.Error("failed to fingerprint grid", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to fingerprint grid")
		return
	}
	respondJSON(w, http.StatusOK, FingerprintResponse{Fingerprint: fp, Rows: len(snap.Rows)})
}

// handleDoctor handles GET /grid/doctor. A broken grid still answers 200;
// the result's valid flag carries the verdict.
func (s *Server) handleDoctor(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, doctor.CheckGrid(s.snapshot()))
}

// handleGetCell handles GET /cells/{cellID}.
func (s *Server) handleGetCell(w http.ResponseWriter, r *http.Request) {
	cellID := chi.URLParam(r, "cellID")
	snap := s.snapshot()
	c, ok := snap.Cells[cellID]
	if !ok {
		s.writeError(w, http.StatusNotFound, "cell not found")
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// handleGetRow handles GET /rows/{rowID}: placement, cells and history.
func (s *Server) handleGetRow(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")
	report, err := inspect.BuildJSONReport(r.Context(), s.snapshot(), s.history, rowID)
	if err != nil {
		if errors.Is(err, inspect.ErrRowNotFound) {
			s.writeError(w, http.StatusNotFound, "row not found")
			return
		}
		s.logger.Error("failed to build row report", "row", rowID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to build row report")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report))
}

// handleInsertRow handles POST /segments/{spaceID}/rows.
func (s *Server) handleInsertRow(w http.ResponseWriter, r *http.Request) {
	spaceID := chi.URLParam(r, "spaceID")

	var req InsertRequest
	if r.ContentLength != 0 && !s.decodeBody(w, r, &req) {
		return
	}
	pos, err := command.ParsePosition(req.Position, req.After)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cells := s.config.Columns
	if req.Cells != nil {
		cells = *req.Cells
	}
	if cells < 0 {
		s.writeError(w, http.StatusBadRequest, "cells must not be negative")
		return
	}
	if cells > s.config.MaxColumns {
		s.writeError(w, http.StatusBadRequest, "cells must not exceed "+strconv.Itoa(s.config.MaxColumns))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rowID, err := s.grid.Insert(spaceID, req.Data, pos)
	if err != nil {
		s.writeGridError(w, err)
		return
	}
	resp := InsertResponse{RowID: rowID, Cells: []string{}}
	if cells > 0 {
		ids, err := s.grid.PopulateRow(rowID, cells)
		if err != nil {
			s.logger.Warn("row inserted without linked cells", "row", rowID, "error", err)
		}
		resp.Cells = append(resp.Cells, ids...)
	}
	respondJSON(w, http.StatusCreated, resp)
}

// handleUpdateRow handles PUT /rows/{rowID}.
func (s *Server) handleUpdateRow(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")

	var req UpdateRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	err := s.grid.UpdateRow(rowID, req.Data)
	s.mu.Unlock()
	if err != nil {
		s.writeGridError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{Status: "updated"})
}

// handleDestroyRow handles DELETE /rows/{rowID}.
func (s *Server) handleDestroyRow(w http.ResponseWriter, r *http.Request) {
	rowID := chi.URLParam(r, "rowID")

	s.mu.Lock()
	err := s.grid.DestroyRow(rowID)
	s.mu.Unlock()
	if err != nil {
		s.writeGridError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{Status: "destroyed"})
}

// handleClearSegment handles DELETE /segments/{spaceID}/rows. Rows kept
// by plugins stay in place; the response still reports "cleared".
func (s *Server) handleClearSegment(w http.ResponseWriter, r *http.Request) {
	spaceID := chi.URLParam(r, "spaceID")

	s.mu.Lock()
	err := s.grid.ClearSegment(spaceID)
	s.mu.Unlock()
	if err != nil {
		s.writeGridError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{Status: "cleared"})
}

// handleDispatch handles POST /commands. The command is dispatched as the
// host; its payload reaches handlers as raw JSON.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	kind, err := command.ParseKind(req.Kind)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Target == "" {
		s.writeError(w, http.StatusBadRequest, "target is required")
		return
	}
	var payload any
	if len(req.Payload) > 0 {
		payload = req.Payload
	}
	cmd, err := command.New(kind, command.Name(req.Name), req.Target, payload)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, CommandResponse{Outcome: s.Dispatch(cmd)})
}

// handleJournal handles GET /journal.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusNotFound, "journal disabled")
		return
	}

	q := r.URL.Query()
	f := journal.Filter{
		Target:  q.Get("target"),
		Origin:  q.Get("origin"),
		Outcome: command.Outcome(q.Get("outcome")),
	}
	if v := q.Get("kind"); v != "" {
		kind, err := command.ParseKind(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Kind = kind
	}
	if v := q.Get("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "after must be a non-negative integer")
			return
		}
		f.AfterSeq = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	entries, err := s.history.List(r.Context(), f)
	if err != nil {
		s.logger.Error("failed to list journal", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list journal")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	respondJSON(w, http.StatusOK, JournalResponse{Entries: entries})
}

func (s *Server) snapshot() store.Snapshot[json.RawMessage] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.grid.Snapshot()
}

// writeGridError maps the grid's helper errors onto status codes.
func (s *Server) writeGridError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, grid.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, grid.ErrBlocked):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, grid.ErrRejected):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.writeError(w, http.StatusBadRequest, err.Error())
	}
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
