// Package pipeline orchestrates one frame through every detection
// subsystem: the person detector and Counting Engine, the suspicious
// pipeline and Associator, and the LLM Adjudicator — the same sequence
// for both the synchronous POST /detect handler and the Stream
// Controller's per-frame worker callback, ported from
// yolo_detection_service_enhanced.py's detect_people endpoint
// (spec.md §2 data flow).
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/doorwatch/doorwatch/internal/audit"
	"github.com/doorwatch/doorwatch/internal/bus"
	"github.com/doorwatch/doorwatch/internal/cache"
	"github.com/doorwatch/doorwatch/internal/detect"
	"github.com/doorwatch/doorwatch/internal/llm"
	"github.com/doorwatch/doorwatch/internal/metrics"
	"github.com/doorwatch/doorwatch/internal/snapshot"
	"github.com/doorwatch/doorwatch/internal/telemetry"
	"github.com/doorwatch/doorwatch/internal/threat"
	"github.com/doorwatch/doorwatch/internal/tracking"
	"github.com/doorwatch/doorwatch/internal/zones"
)

// Pipeline wires every per-frame subsystem together. Every field besides
// PersonDetector and Engine is optional — a nil SuspiciousDetector
// disables the threat pipeline (SecondaryModelMissing, spec.md §7), a
// nil Adjudicator disables LLM adjudication, and nil Cache/Bus/Hub/Audit
// are each treated as a no-op by their own package (or guarded here).
type Pipeline struct {
	PersonDetector     detect.Client
	SuspiciousDetector detect.Client
	Engine             *tracking.Engine
	ThreatDefaults     threat.Config
	Adjudicator        *llm.Adjudicator
	Snapshotter        *snapshot.Writer
	Cache              *cache.Cache
	Bus                *bus.Publisher
	Hub                *telemetry.Hub
	Audit              *audit.Service
}

// Request is one frame submitted either via POST /detect or by a stream
// worker. Frame is the raw encoded image bytes (whatever the client
// posted or the capture source produced) — decode-from-base64 is an
// HTTP-boundary concern and happens before this package ever sees it.
type Request struct {
	StreamID       string
	Frame          []byte
	Confidence     float64
	SuspiciousConf *float64
	ThreatConf     *float64
	SuspiciousIoU  *float64
	ThreatIoU      *float64
	LLMEnabled     *bool
}

// Response is the full per-frame result, matching spec.md §6's /detect
// response shape field-for-field.
type Response struct {
	PeopleCount      int
	Detections       []detect.Detection
	ProcessingTimeMs float64
	ImageWidth       int
	ImageHeight      int
	EntryCount       int
	ExitCount        int
	CurrentOccupancy int // persistent occupancy; current_occupancy always reports this (spec.md §9 Open Question)

	Threats            []threat.Box // nil when the suspicious model isn't loaded
	HasThreat          *bool
	LLMIsFalsePositive *bool
	LLMConfidence      *float64
	LLMReason          string
	LLMModel           string
	LLMTriggered       *bool
	LLMError           string
}

// Process runs the full per-frame sequence: person detection + tracking,
// the Counting Engine, the suspicious pipeline (if configured), and LLM
// adjudication (if triggered). A person-detector failure is the only
// error this returns — everything downstream of it is recovered locally
// and reported as response metadata, per spec.md §7's propagation policy.
func (p *Pipeline) Process(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	detections, tracked, imgW, imgH, err := p.PersonDetector.DetectAndTrack(ctx, req.Frame, req.Confidence)
	if err != nil {
		return Response{}, fmt.Errorf("person detection failed: %w", err)
	}

	tuples := make([]tracking.Tuple, 0, len(tracked))
	for _, t := range tracked {
		tuples = append(tuples, tracking.Tuple{
			TrackID:    t.TrackID,
			Box:        zones.Box{X1: t.Box.X1, Y1: t.Box.Y1, X2: t.Box.X2, Y2: t.Box.Y2},
			Confidence: t.Confidence,
		})
	}

	events := p.Engine.ProcessDetections(tuples)
	occ := p.Engine.Occupancy()
	p.emitEvents(req.StreamID, events, occ)

	resp := Response{
		PeopleCount:      len(detections),
		Detections:       detections,
		ImageWidth:       imgW,
		ImageHeight:      imgH,
		EntryCount:       occ.EntryCount,
		ExitCount:        occ.ExitCount,
		CurrentOccupancy: occ.PersistentOccupancy,
	}
	resp.ProcessingTimeMs = msSince(start)
	metrics.RecordDetectionLatency(req.StreamID, "person", resp.ProcessingTimeMs)

	if p.SuspiciousDetector != nil {
		p.runThreatPipeline(ctx, req, tracked, imgW, imgH, &resp)
	}

	if req.StreamID != "" && p.Cache != nil {
		_ = p.Cache.SaveLatest(ctx, cache.Snapshot{
			StreamID:    req.StreamID,
			PersonCount: resp.PeopleCount,
			ThreatCount: len(resp.Threats),
			UpdatedAt:   time.Now(),
		})
	}

	return resp, nil
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

// emitEvents fans an entry/exit event out to metrics, the bus, the
// websocket hub, and the audit ledger. None of these can hold up the
// counting path: the Engine's critical section already released its
// lock before this runs, and the audit write happens off the request
// goroutine (spec.md §5: "LLM calls do not hold the counting lock" — the
// same discipline applies to every other post-processing side effect).
func (p *Pipeline) emitEvents(streamID string, events []tracking.Event, occ tracking.Occupancy) {
	for _, evt := range events {
		switch evt.Type {
		case tracking.EventEntry:
			metrics.RecordEntry(evt.CameraID, evt.ZoneID)
		case tracking.EventExit:
			metrics.RecordExit(evt.CameraID, evt.ZoneID)
		}

		p.Bus.Publish(bus.SubjectZoneEvent, bus.Event{
			StreamID:   streamID,
			OccurredAt: time.Now(),
			Payload: map[string]interface{}{
				"type":      string(evt.Type),
				"track_id":  evt.TrackID,
				"zone_id":   evt.ZoneID,
				"camera_id": evt.CameraID,
			},
		})

		if p.Hub != nil {
			p.Hub.Broadcast(telemetry.OccupancyUpdate{
				Type:                "zone_event",
				StreamID:            streamID,
				CameraID:            evt.CameraID,
				ZoneID:              evt.ZoneID,
				EventType:           string(evt.Type),
				EntryCount:          occ.EntryCount,
				ExitCount:           occ.ExitCount,
				LiveOccupancy:       occ.LiveOccupancy,
				PersistentOccupancy: occ.PersistentOccupancy,
				FrameNumber:         evt.FrameNumber,
				Timestamp:           time.Now().Unix(),
			})
		}

		if p.Audit != nil {
			trackID := evt.TrackID
			e := evt
			go func() {
				err := p.Audit.WriteEvent(context.Background(), audit.Event{
					StreamID:  streamID,
					CameraID:  e.CameraID,
					ZoneID:    e.ZoneID,
					TrackID:   &trackID,
					EventType: string(e.Type),
					Result:    "success",
					CreatedAt: time.Now(),
				})
				if err != nil {
					log.Printf("[PIPELINE] audit write failed for %s event on stream %s: %v", e.Type, streamID, err)
				}
			}()
		}
	}
}

// runThreatPipeline runs the secondary detector, classifies and
// associates its boxes, and — if triggered — adjudicates the chosen
// candidate through the LLM. Any failure here is logged and otherwise
// swallowed: it must never fail the detection response (spec.md §7).
func (p *Pipeline) runThreatPipeline(ctx context.Context, req Request, tracked []detect.TrackedTuple, imgW, imgH int, resp *Response) {
	runIoU := effectiveRunIoU(req.SuspiciousIoU, req.ThreatIoU)
	candidates, err := p.SuspiciousDetector.DetectSuspicious(ctx, req.Frame, 0.01, runIoU)
	if err != nil {
		log.Printf("[PIPELINE] threat detection failed for stream %s: %v", req.StreamID, err)
		return
	}

	cfg := p.effectiveThreatConfig(req)
	allBoxes, uiBoxes := threat.Classify(cfg, candidates)
	allBoxes = threat.Associate(cfg, allBoxes, tracked, imgW, imgH)
	uiBoxes = threat.Associate(cfg, uiBoxes, tracked, imgW, imgH)

	if len(uiBoxes) == 0 {
		return
	}

	resp.Threats = uiBoxes
	hasThreat := threat.HasThreat(uiBoxes)
	resp.HasThreat = &hasThreat

	for _, b := range uiBoxes {
		metrics.RecordThreatDetection(req.StreamID, string(b.Category))
	}

	if p.Adjudicator == nil {
		return
	}
	optIn := req.LLMEnabled != nil && *req.LLMEnabled
	if !p.Adjudicator.ShouldAutoTrigger(optIn) {
		return
	}

	candidate := pickCandidate(allBoxes)
	if candidate == nil {
		return
	}

	crop, err := cropJPEG(req.Frame, candidate.Box)
	if err != nil {
		log.Printf("[PIPELINE] crop failed for stream %s: %v", req.StreamID, err)
		crop = req.Frame
	}

	llmStart := time.Now()
	verdict := p.Adjudicator.Adjudicate(ctx, llm.Candidate{
		Label:    candidate.Label,
		TrackID:  candidate.AssociatedTrack,
		StreamID: req.StreamID,
		FullJPEG: req.Frame,
		CropJPEG: crop,
		Summary:  topThreeSummary(uiBoxes, allBoxes),
	})
	latencyMs := msSince(llmStart)

	triggered := verdict.Triggered
	resp.LLMTriggered = &triggered
	resp.LLMReason = verdict.Reason
	resp.LLMModel = verdict.Model
	resp.LLMError = verdict.Error

	if !verdict.Triggered {
		metrics.RecordLLMCooldownBlocked()
		return
	}

	if p.Snapshotter != nil {
		p.Snapshotter.Save(req.StreamID, candidate.Label, req.Frame, crop)
	}

	outcome := "confirmed"
	switch {
	case verdict.Error != "":
		outcome = "error"
	case verdict.FalsePositive:
		outcome = "false_positive"
	}
	metrics.RecordLLMAdjudication(outcome, latencyMs)

	p.Bus.Publish(bus.SubjectAdjudication, bus.Event{
		StreamID:   req.StreamID,
		OccurredAt: time.Now(),
		Payload: map[string]interface{}{
			"label":          candidate.Label,
			"false_positive": verdict.FalsePositive,
			"reason":         verdict.Reason,
			"outcome":        outcome,
		},
	})

	if p.Audit != nil {
		trackID := candidate.AssociatedTrack
		go func() {
			if err := p.Audit.WriteEvent(context.Background(), audit.Event{
				StreamID:   req.StreamID,
				TrackID:    trackID,
				EventType:  "llm_adjudication",
				Result:     outcome,
				ReasonCode: verdict.Reason,
				CreatedAt:  time.Now(),
			}); err != nil {
				log.Printf("[PIPELINE] audit write failed for adjudication on stream %s: %v", req.StreamID, err)
			}
		}()
	}

	if verdict.Error != "" {
		return
	}

	falsePositive := verdict.FalsePositive
	resp.LLMIsFalsePositive = &falsePositive
	resp.LLMConfidence = verdict.Confidence

	if falsePositive {
		hasThreatFalse := false
		resp.HasThreat = &hasThreatFalse
		for i := range resp.Threats {
			fp := true
			resp.Threats[i].LLMFalsePositive = &fp
		}
	}
}

func (p *Pipeline) effectiveThreatConfig(req Request) threat.Config {
	cfg := p.ThreatDefaults
	if req.SuspiciousConf != nil {
		cfg.SuspiciousThreshold = *req.SuspiciousConf
	}
	if req.ThreatConf != nil {
		cfg.ThreatThreshold = *req.ThreatConf
	}
	return cfg
}
