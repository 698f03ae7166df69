// Command server wires every singleton the HTTP boundary needs —
// zone registry, counting engine, detector adapter, threat pipeline, LLM
// adjudicator, stream controller, snapshot writer, audit ledger, event
// bus, telemetry hub — into one Server and serves it, following
// cmd/server/main.go's own env-var-driven wiring order and graceful
// shutdown sequence from the teacher (DB ping, Redis client, NATS
// connect-with-fallback, background workers started, then
// server.Shutdown(ctx) on SIGINT/SIGTERM).
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/doorwatch/doorwatch/internal/api"
	"github.com/doorwatch/doorwatch/internal/audit"
	"github.com/doorwatch/doorwatch/internal/bus"
	"github.com/doorwatch/doorwatch/internal/cache"
	"github.com/doorwatch/doorwatch/internal/detect"
	"github.com/doorwatch/doorwatch/internal/llm"
	"github.com/doorwatch/doorwatch/internal/metrics"
	"github.com/doorwatch/doorwatch/internal/pipeline"
	"github.com/doorwatch/doorwatch/internal/snapshot"
	"github.com/doorwatch/doorwatch/internal/streams"
	"github.com/doorwatch/doorwatch/internal/telemetry"
	"github.com/doorwatch/doorwatch/internal/threat"
	"github.com/doorwatch/doorwatch/internal/tracking"
	"github.com/doorwatch/doorwatch/internal/zones"
)

func main() {
	// --- Config (spec.md §6) ---
	personURL := getEnv("PERSON_DETECTOR_URL", "http://localhost:9001/infer")
	suspiciousURL := getEnv("SUSPICIOUS_DETECTOR_URL", "")
	threatModelPath := getEnv("THREAT_MODEL_PATH", "")
	threatEnabled := getEnvBool("THREAT_DETECTION_ENABLED", true)
	suspiciousOnly := getEnvBool("SUSPICIOUS_ONLY", false)
	imgSize := getEnvInt("DETECTION_IMGSZ", 640)

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY_FALLBACK")
	}
	llmModel := getEnv("LLM_MODEL", "gpt-4o-mini")
	llmAutoOnThreat := getEnvBool("LLM_AUTO_ON_THREAT", true)
	llmCooldown := time.Duration(getEnvInt("LLM_COOLDOWN_SECONDS", 10)) * time.Second
	llmPerTrackCooldown := time.Duration(getEnvInt("LLM_PER_TRACK_COOLDOWN_SECONDS", 0)) * time.Second
	if llmPerTrackCooldown == 0 {
		llmPerTrackCooldown = llmCooldown
	}

	threatAssocIoUMin := getEnvFloat("THREAT_ASSOC_IOU_MIN", 0.10)
	threatAssocMaxDistFrac := getEnvFloat("THREAT_ASSOC_MAX_DIST_FRAC", 0.08)

	zonesFile := os.Getenv("ZONES_FILE")
	snapshotRoot := getEnv("SNAPSHOT_ROOT", "snapshots")

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	natsURL := getEnv("NATS_URL", nats.DefaultURL)

	dbHost := os.Getenv("DB_HOST")

	// --- Zone Registry ---
	zoneReg := zones.NewRegistry()
	if zonesFile != "" {
		if err := zoneReg.LoadFile(zonesFile); err != nil {
			log.Printf("[MAIN] initial zones file load failed: %v", err)
		}
		if watcher, err := zoneReg.WatchFile(zonesFile); err != nil {
			log.Printf("[MAIN] could not watch zones file %s: %v", zonesFile, err)
		} else {
			defer watcher.Close()
		}
	}

	// --- Counting Engine ---
	engine := tracking.NewEngine(zoneReg)

	// --- Detector Adapter ---
	personClient := detect.NewHTTPClient(personURL, "", imgSize)
	var suspiciousClient detect.Client
	suspiciousLoaded := threatEnabled && suspiciousURL != ""
	if suspiciousLoaded {
		// SecondaryModelMissing (spec.md §7): when unset, suspiciousClient
		// stays nil and the pipeline skips the threat path entirely.
		suspiciousClient = detect.NewHTTPClient("", suspiciousURL, imgSize)
	} else {
		log.Printf("[MAIN] suspicious/threat model not configured; /detect will omit threats")
	}

	// --- LLM Adjudicator ---
	var adjudicator *llm.Adjudicator
	if apiKey != "" {
		adjudicator = llm.NewAdjudicator(llm.Config{
			APIKey:           apiKey,
			Model:            llmModel,
			Cooldown:         llmCooldown,
			PerTrackCooldown: llmPerTrackCooldown,
			AutoOnThreat:     llmAutoOnThreat,
		})
	} else {
		log.Printf("[MAIN] no OPENAI_API_KEY configured; LLM adjudication disabled")
	}

	threatCfg := threat.DefaultConfig()
	threatCfg.SuspiciousOnly = suspiciousOnly
	threatCfg.AssocIoUMin = threatAssocIoUMin
	threatCfg.AssocMaxDistFrac = threatAssocMaxDistFrac

	// --- Snapshotter ---
	snapshotter := snapshot.NewWriter(snapshotRoot)

	// --- Redis (Detection Cache) ---
	var detectionCache *cache.Cache
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Printf("[MAIN] Redis unreachable at %s: %v (detection cache disabled)", redisAddr, err)
		} else {
			detectionCache = cache.New(rdb, cache.DefaultTTL)
		}
	}

	// --- NATS (Event Bus) ---
	var natsConn *nats.Conn
	if nc, err := nats.Connect(natsURL, nats.Name("doorwatch")); err != nil {
		log.Printf("[MAIN] NATS connect failed: %v (event bus disabled)", err)
	} else {
		natsConn = nc
		defer natsConn.Close()
	}
	publisher := bus.NewPublisher(natsConn)

	// --- Telemetry Hub ---
	hub := telemetry.NewHub()

	// --- Audit Ledger ---
	var db *sql.DB
	if dbHost != "" {
		connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			getEnv("DB_USER", "postgres"), os.Getenv("DB_PASSWORD"), dbHost,
			getEnv("DB_PORT", "5432"), getEnv("DB_NAME", "doorwatch"), getEnv("DB_SSLMODE", "disable"))
		opened, err := sql.Open("postgres", connStr)
		if err != nil {
			log.Printf("[MAIN] DB open failed: %v (audit ledger spool-only)", err)
		} else if err := opened.Ping(); err != nil {
			log.Printf("[MAIN] DB ping failed: %v (audit ledger spool-only)", err)
			opened.Close()
		} else {
			db = opened
			defer db.Close()
		}
	} else {
		log.Printf("[MAIN] DB_HOST unset; audit ledger runs spool-only")
	}
	auditService := audit.NewService(db)
	audit.ConfigureFailover(getEnv("AUDIT_SPOOL_DIR", "./data/audit_spool"), int64(getEnvInt("AUDIT_SPOOL_MAX_MB", 1024)))
	replayCtx, cancelReplay := context.WithCancel(context.Background())
	defer cancelReplay()
	auditService.StartReplayer(replayCtx)

	// --- Pipeline ---
	pl := &pipeline.Pipeline{
		PersonDetector:     personClient,
		SuspiciousDetector: suspiciousClient,
		Engine:             engine,
		ThreatDefaults:     threatCfg,
		Adjudicator:        adjudicator,
		Snapshotter:        snapshotter,
		Cache:              detectionCache,
		Bus:                publisher,
		Hub:                hub,
		Audit:              auditService,
	}

	// --- Stream Controller ---
	controller := streams.NewController(streams.NewHTTPSourceFactory(), func(ctx context.Context, streamID string, frame []byte, width, height int, confidence float64) streams.ProcessResult {
		resp, err := pl.Process(ctx, pipeline.Request{StreamID: streamID, Frame: frame, Confidence: confidence})
		if err != nil {
			metrics.RecordFrameDrop(streamID)
			return streams.ProcessResult{Err: err}
		}
		return streams.ProcessResult{PeopleCount: resp.PeopleCount}
	})
	controller.StartReaper()

	// --- HTTP Server ---
	srv := &api.Server{
		Zones:            zoneReg,
		Engine:           engine,
		Pipeline:         pl,
		Streams:          controller,
		Audit:            auditService,
		Hub:              hub,
		StartedAt:        time.Now(),
		ModelLoaded:      true,
		SuspiciousLoaded: suspiciousLoaded,
		ThreatModelPath:  threatModelPath,
	}

	httpServer := &http.Server{
		Addr:    getEnv("BIND_ADDR", "127.0.0.1:8001"),
		Handler: srv.Router(),
	}

	go func() {
		log.Printf("[MAIN] listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[MAIN] HTTP server error: %v", err)
		}
	}()

	// --- Graceful shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Printf("[MAIN] shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("[MAIN] HTTP shutdown error: %v", err)
	}
	controller.Stop()
	cancelReplay()
	log.Printf("[MAIN] shutdown complete")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
