package api

import "net/http"

// handleWS upgrades GET /ws/occupancy to a websocket and registers the
// connection with the telemetry hub; a nil Hub (no WS support wired)
// answers 503 rather than panicking.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.Hub == nil {
		respondError(w, http.StatusServiceUnavailable, "telemetry hub not configured")
		return
	}
	s.Hub.ServeWS(w, r)
}
