package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/doorwatch/doorwatch/internal/bus"
	"github.com/doorwatch/doorwatch/internal/metrics"
)

// streamStartRequest mirrors spec.md §6's POST /stream/start body.
type streamStartRequest struct {
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
	StreamID   string  `json:"stream_id"`
}

// handleStreamStart starts a new stream worker, or — if stream_id is
// already active — refreshes its heartbeat instead of spawning a second
// worker (spec.md §4.6's "treat the call as a heartbeat").
func (s *Server) handleStreamStart(w http.ResponseWriter, r *http.Request) {
	var req streamStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StreamID == "" {
		respondError(w, http.StatusBadRequest, "stream_id is required")
		return
	}
	if req.Confidence <= 0 {
		req.Confidence = defaultConfidence
	}

	if err := s.Streams.Start(req.StreamID, req.Source, req.Confidence); err != nil {
		// CaptureOpenFailure (spec.md §7): surfaced to the caller, but
		// never panics the controller — the registry simply never
		// gains an entry for this stream_id.
		respondError(w, http.StatusInternalServerError, "could not start stream: "+err.Error())
		return
	}
	metrics.SetActiveStreams(len(s.Streams.List()))
	if s.Pipeline != nil {
		s.Pipeline.Bus.Publish(bus.SubjectStreamLifecycle, bus.Event{
			StreamID:   req.StreamID,
			OccurredAt: time.Now(),
			Payload:    map[string]interface{}{"type": "start", "source": req.Source},
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"stream_id": req.StreamID,
	})
}

// handleStreamStatus returns the full StreamRecord; the lookup itself
// doubles as a heartbeat (spec.md §4.6: "status() refreshes the
// heartbeat as a side-effect").
func (s *Server) handleStreamStatus(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "stream_id")

	status, ok := s.Streams.Status(streamID)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown stream_id")
		return
	}
	s.Streams.Heartbeat(streamID)

	respondJSON(w, http.StatusOK, toWireStreamStatus(status))
}

// handleStreamStop cancels the worker and removes the stream from the
// registry; UnknownStreamId (spec.md §7) is a 404.
func (s *Server) handleStreamStop(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "stream_id")

	if !s.Streams.Stop(streamID) {
		respondError(w, http.StatusNotFound, "unknown stream_id")
		return
	}
	metrics.SetActiveStreams(len(s.Streams.List()))
	if s.Pipeline != nil {
		s.Pipeline.Bus.Publish(bus.SubjectStreamLifecycle, bus.Event{
			StreamID:   streamID,
			OccurredAt: time.Now(),
			Payload:    map[string]interface{}{"type": "stop"},
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "stream_id": streamID})
}

type streamHeartbeatRequest struct {
	StreamID string `json:"stream_id"`
}

// handleStreamHeartbeat refreshes a stream's staleness clock without
// returning its full status.
func (s *Server) handleStreamHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req streamHeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !s.Streams.Heartbeat(req.StreamID) {
		respondError(w, http.StatusNotFound, "unknown stream_id")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleStreamsList lists every active stream's status.
func (s *Server) handleStreamsList(w http.ResponseWriter, r *http.Request) {
	statuses := s.Streams.List()

	out := make([]wireStreamStatus, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, toWireStreamStatus(st))
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"streams": out,
		"count":   len(out),
	})
}
