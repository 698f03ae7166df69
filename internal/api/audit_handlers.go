package api

import (
	"net/http"
	"strconv"

	"github.com/doorwatch/doorwatch/internal/audit"
)

// handleAuditEvents serves a filtered, cursor-paginated read over the
// append-only audit ledger (internal/audit.Service.QueryEvents); this is
// the only audit surface exposed over HTTP, matching the ledger's own
// "append-only, no Update/Delete" invariant.
func (s *Server) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 100
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	filter := audit.Filter{
		StreamID:  q.Get("stream_id"),
		EventType: q.Get("event_type"),
		Cursor:    q.Get("cursor"),
		Limit:     limit,
	}

	events, cursor, err := s.Audit.QueryEvents(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "audit query failed: "+err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"cursor": cursor,
		"count":  len(events),
	})
}

// handleAuditExport streams the filtered ledger as newline-delimited JSON
// (internal/audit.Service.ExportEvents) for an operator pulling a bulk
// compliance export rather than paging through handleAuditEvents.
func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.Filter{
		StreamID:  q.Get("stream_id"),
		EventType: q.Get("event_type"),
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := s.Audit.ExportEvents(r.Context(), filter, w); err != nil {
		respondError(w, http.StatusInternalServerError, "audit export failed: "+err.Error())
		return
	}
}
