// Package api exposes the HTTP surface over the detection pipeline, zone
// registry, counting engine, and stream controller: handlers are methods
// on one shared Server struct, wired together by a chi router (spec.md
// §6), mirroring the teacher's internal/api package layout (one
// *_handlers.go file per resource, a shared respondJSON/respondError pair).
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/doorwatch/doorwatch/internal/audit"
	"github.com/doorwatch/doorwatch/internal/middleware"
	"github.com/doorwatch/doorwatch/internal/pipeline"
	"github.com/doorwatch/doorwatch/internal/streams"
	"github.com/doorwatch/doorwatch/internal/telemetry"
	"github.com/doorwatch/doorwatch/internal/tracking"
	"github.com/doorwatch/doorwatch/internal/zones"
)

// Server holds every singleton the HTTP boundary needs to reach; it
// replaces the teacher's per-resource *Handler structs with one shared
// struct since every handler here draws from the same small set of
// process-wide components (spec.md §9's "explicit application context
// struct" re-architecture of the mutable-global pattern).
type Server struct {
	Zones            *zones.Registry
	Engine           *tracking.Engine
	Pipeline         *pipeline.Pipeline
	Streams          *streams.Controller
	Audit            *audit.Service
	Hub              *telemetry.Hub
	StartedAt        time.Time
	ModelLoaded      bool
	SuspiciousLoaded bool
	ThreatModelPath  string
}

// Router builds the full chi mux: teacher-style middleware stack
// (RequestID, RealIP, Recoverer, then the project's own CORS and
// RequestLogger) followed by every route in spec.md §6.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)
	r.Use(middleware.RequestLogger)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/detect", s.handleDetect)

	r.Post("/zones/update", s.handleZonesUpdate)
	r.Get("/zones", s.handleZonesList)
	r.Get("/zones/{camera_id}", s.handleZonesList)
	r.Get("/zones/{camera_id}/contains", s.handleZoneContains)

	r.Get("/occupancy", s.handleOccupancy)
	r.Post("/occupancy/reset", s.handleOccupancyReset)
	r.Post("/occupancy/mode", s.handleOccupancyMode)

	r.Post("/stream/start", s.handleStreamStart)
	r.Get("/stream/status/{stream_id}", s.handleStreamStatus)
	r.Post("/stream/stop/{stream_id}", s.handleStreamStop)
	r.Post("/stream/heartbeat", s.handleStreamHeartbeat)
	r.Get("/streams", s.handleStreamsList)

	r.Get("/audit/events", s.handleAuditEvents)
	r.Get("/audit/export", s.handleAuditExport)

	r.Get("/ws/occupancy", s.handleWS)

	return r
}
