package api

import "net/http"

// handleHealth reports the same four fields the Python prototype's
// /health endpoint returned, plus the threat model path so an operator
// can see which secondary model (if any) is configured (spec.md §6).
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"model_loaded":      s.ModelLoaded,
		"active_streams":    len(s.Streams.List()),
		"suspicious_loaded": s.SuspiciousLoaded,
		"threat_model_path": s.ThreatModelPath,
	})
}
