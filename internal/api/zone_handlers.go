package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/doorwatch/doorwatch/internal/zones"
)

type zonesUpdateRequest struct {
	CameraID string `json:"camera_id"`
	Zones    []struct {
		ID       string  `json:"id"`
		Name     string  `json:"name"`
		CameraID string  `json:"camera_id,omitempty"`
		X1       float64 `json:"x1"`
		Y1       float64 `json:"y1"`
		X2       float64 `json:"x2"`
		Y2       float64 `json:"y2"`
	} `json:"zones"`
}

// handleZonesUpdate atomically replaces the active zone set for one
// camera (spec.md §4.2's "single writer at a time" — Registry.Update
// already serializes this under its own mutex).
func (s *Server) handleZonesUpdate(w http.ResponseWriter, r *http.Request) {
	var req zonesUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CameraID == "" {
		respondError(w, http.StatusBadRequest, "camera_id is required")
		return
	}

	zs := make([]zones.Zone, 0, len(req.Zones))
	for _, z := range req.Zones {
		zs = append(zs, zones.Zone{ID: z.ID, Name: z.Name, X1: z.X1, Y1: z.Y1, X2: z.X2, Y2: z.Y2})
	}

	s.Zones.Update(req.CameraID, zs)

	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"zones_count": len(zs),
	})
}

// handleZonesList serves both GET /zones and GET /zones/{camera_id}; the
// bare route has no camera_id path value so it falls through to All().
func (s *Server) handleZonesList(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")

	var zs []zones.Zone
	if cameraID != "" {
		zs = s.Zones.ForCamera(cameraID)
	} else {
		zs = s.Zones.All()
	}

	out := make([]wireZone, 0, len(zs))
	for _, z := range zs {
		out = append(out, toWireZone(z))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"zones":       out,
		"zones_count": len(out),
	})
}

// handleZoneContains answers spec.md §4.2's contains_point query for one
// camera: GET /zones/{camera_id}/contains?x=&y= with coordinates in the
// same units the zones were stored in, returning every zone id whose
// rectangle covers the point.
func (s *Server) handleZoneContains(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")

	x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	y, errY := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if errX != nil || errY != nil {
		respondError(w, http.StatusBadRequest, "x and y query params must be floats")
		return
	}

	var matches []string
	for _, z := range s.Zones.ForCamera(cameraID) {
		if z.ContainsPoint(x, y) {
			matches = append(matches, z.ID)
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"camera_id": cameraID,
		"x":         x,
		"y":         y,
		"zone_ids":  matches,
	})
}
