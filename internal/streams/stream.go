// Package streams supervises one worker goroutine per active video
// stream: read a frame, hand it to the caller-supplied processor, sleep,
// repeat, with a background reaper retiring streams that stop sending
// heartbeats. Ported from the Python prototype's asyncio task-per-stream
// model (spec.md §4.6/§9's re-architecture note) onto the teacher's
// ticker-driven scheduler idiom (internal/health.Scheduler).
package streams

import (
	"context"
	"sync"
	"time"
)

const (
	frameLoopSleep  = 100 * time.Millisecond
	readRetrySleep  = 1 * time.Second
	StaleTimeout    = 300 * time.Second
	ReaperInterval  = 60 * time.Second
	targetFrameW    = 1280
	targetFrameH    = 720
)

// FrameSource abstracts an opened capture device (file, RTSP URL, webcam
// index). ReadFrame returns ok=false, no error, when the source has no
// frame ready yet (matching cv2.VideoCapture's ret==False case) — the
// worker treats that the same as a transient read error.
type FrameSource interface {
	ReadFrame(ctx context.Context) (frame []byte, width, height int, ok bool, err error)
	Release()
}

// SourceFactory opens a FrameSource for a given source string (file path,
// RTSP URL, device index). It is expected to request targetFrameW x
// targetFrameH from the underlying device where that's configurable.
type SourceFactory func(source string) (FrameSource, error)

// ProcessResult is what a FrameProcessor reports back per frame.
type ProcessResult struct {
	PeopleCount int
	Err         error
}

// FrameProcessor is supplied by the application layer; it is expected to
// run the Detector Adapter, Counting Engine, and suspicious pipeline for
// one frame and report a person count for the stream status endpoint.
type FrameProcessor func(ctx context.Context, streamID string, frame []byte, width, height int, confidence float64) ProcessResult

// Status is the externally-visible state of one stream.
type Status struct {
	StreamID           string
	Source             string
	Active             bool
	Confidence         float64
	PeopleCount        int
	FrameWidth         int
	FrameHeight        int
	LastDetectionTime  time.Time
	LastHeartbeat      time.Time
	Error              string
}

type stream struct {
	mu     sync.Mutex
	status Status
	cancel context.CancelFunc
	source FrameSource
}

func (s *stream) snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *stream) touchHeartbeat() {
	s.mu.Lock()
	s.status.LastHeartbeat = time.Now()
	s.mu.Unlock()
}
