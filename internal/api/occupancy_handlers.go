package api

import (
	"net/http"

	"github.com/doorwatch/doorwatch/internal/tracking"
)

// handleOccupancy always reports persistent_occupancy in
// current_occupancy regardless of the advisory reporting mode (spec.md
// §9 Open Question: "source sets the field but always returns the
// persistent count").
func (s *Server) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	occ := s.Engine.Occupancy()
	respondJSON(w, http.StatusOK, map[string]any{
		"current_occupancy": occ.PersistentOccupancy,
		"live_occupancy":    occ.LiveOccupancy,
		"total_entries":     occ.EntryCount,
		"total_exits":       occ.ExitCount,
		"zones_count":       s.Zones.Count(),
		"active_tracks":     s.Engine.ActiveTracks(),
	})
}

func (s *Server) handleOccupancyReset(w http.ResponseWriter, r *http.Request) {
	s.Engine.Reset()
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleOccupancyMode sets the advisory reporting mode only; it never
// changes which counter /occupancy returns (spec.md §9 Open Question).
func (s *Server) handleOccupancyMode(w http.ResponseWriter, r *http.Request) {
	mode := tracking.Mode(r.URL.Query().Get("mode"))
	if mode != tracking.ModeLive && mode != tracking.ModePersistent {
		respondError(w, http.StatusBadRequest, "mode must be live or persistent")
		return
	}
	s.Engine.SetMode(mode)
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "mode": string(mode)})
}
