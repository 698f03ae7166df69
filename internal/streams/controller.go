package streams

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/doorwatch/doorwatch/internal/metrics"
)

// Controller owns every active stream's worker goroutine plus the reaper
// that retires streams past StaleTimeout without a heartbeat, mirroring
// the teacher's Scheduler start/stop/wg lifecycle (internal/health.Scheduler).
type Controller struct {
	mu      sync.Mutex
	streams map[string]*stream
	open    SourceFactory
	process FrameProcessor

	quit chan struct{}
	wg   sync.WaitGroup
}

func NewController(open SourceFactory, process FrameProcessor) *Controller {
	return &Controller{
		streams: make(map[string]*stream),
		open:    open,
		process: process,
		quit:    make(chan struct{}),
	}
}

// StartReaper launches the background staleness sweep; call Stop to halt it.
func (c *Controller) StartReaper() {
	c.wg.Add(1)
	go c.reapLoop()
}

func (c *Controller) Stop() {
	close(c.quit)
	c.StopAll()
	c.wg.Wait()
}

// Start begins a new stream, or — if streamID is already active —
// behaves as a heartbeat, matching the Python prototype's
// "Update heartbeat for existing stream" branch.
func (c *Controller) Start(streamID, source string, confidence float64) error {
	c.mu.Lock()
	if existing, ok := c.streams[streamID]; ok {
		c.mu.Unlock()
		existing.touchHeartbeat()
		return nil
	}
	c.mu.Unlock()

	fs, err := c.open(source)
	if err != nil {
		return fmt.Errorf("could not open video source: %w", err)
	}

	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	s := &stream{
		status: Status{
			StreamID:      streamID,
			Source:        source,
			Active:        true,
			Confidence:    confidence,
			FrameWidth:    targetFrameW,
			FrameHeight:   targetFrameH,
			LastHeartbeat: now,
		},
		cancel: cancel,
		source: fs,
	}

	c.mu.Lock()
	c.streams[streamID] = s
	c.mu.Unlock()

	c.wg.Add(1)
	go c.runStream(ctx, s)

	log.Printf("[STREAM] started %s from %s", streamID, source)
	return nil
}

func (c *Controller) runStream(ctx context.Context, s *stream) {
	defer c.wg.Done()
	defer s.source.Release()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[STREAM] %s task cancelled", s.status.StreamID)
			return
		default:
		}

		frame, w, h, ok, err := s.source.ReadFrame(ctx)
		if !ok || err != nil {
			if err != nil {
				log.Printf("[STREAM] %s read error: %v", s.status.StreamID, err)
			}
			metrics.RecordFrameDrop(s.status.StreamID)
			time.Sleep(readRetrySleep)
			continue
		}

		s.mu.Lock()
		conf := s.status.Confidence
		s.mu.Unlock()

		result := c.process(ctx, s.status.StreamID, frame, w, h, conf)

		s.mu.Lock()
		s.status.FrameWidth = w
		s.status.FrameHeight = h
		s.status.LastDetectionTime = time.Now()
		if result.Err != nil {
			s.status.Error = result.Err.Error()
		} else {
			s.status.PeopleCount = result.PeopleCount
			s.status.Error = ""
		}
		active := s.status.Active
		s.mu.Unlock()

		if !active {
			return
		}

		time.Sleep(frameLoopSleep)
	}
}

// Heartbeat refreshes a stream's staleness clock; used by both
// /stream/heartbeat and /stream/status (status checks double as
// heartbeats in the Python prototype).
func (c *Controller) Heartbeat(streamID string) bool {
	c.mu.Lock()
	s, ok := c.streams[streamID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	s.touchHeartbeat()
	return true
}

func (c *Controller) Status(streamID string) (Status, bool) {
	c.mu.Lock()
	s, ok := c.streams[streamID]
	c.mu.Unlock()
	if !ok {
		return Status{}, false
	}
	return s.snapshot(), true
}

func (c *Controller) List() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Status, 0, len(c.streams))
	for _, s := range c.streams {
		out = append(out, s.snapshot())
	}
	return out
}

// Stop cancels the stream's worker and removes it from the registry.
func (c *Controller) Stop(streamID string) bool {
	c.mu.Lock()
	s, ok := c.streams[streamID]
	if ok {
		delete(c.streams, streamID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	s.mu.Lock()
	s.status.Active = false
	s.mu.Unlock()
	s.cancel()
	return true
}

func (c *Controller) StopAll() {
	c.mu.Lock()
	ids := make([]string, 0, len(c.streams))
	for id := range c.streams {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	for _, id := range ids {
		c.Stop(id)
	}
}

func (c *Controller) reapLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.reapStale()
		case <-c.quit:
			return
		}
	}
}

func (c *Controller) reapStale() {
	c.mu.Lock()
	var stale []string
	now := time.Now()
	for id, s := range c.streams {
		snap := s.snapshot()
		if now.Sub(snap.LastHeartbeat) > StaleTimeout {
			stale = append(stale, id)
		}
	}
	c.mu.Unlock()

	for _, id := range stale {
		log.Printf("[STREAM] reaping stale stream: %s", id)
		c.Stop(id)
	}

	if len(stale) > 0 {
		metrics.SetActiveStreams(c.Count())
	}
}

// Count returns the number of currently registered streams.
func (c *Controller) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}
