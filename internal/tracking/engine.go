package tracking

import (
	"sync"

	"github.com/doorwatch/doorwatch/internal/zones"
)

// Mode is the advisory occupancy reporting mode (spec.md §9 Open
// Questions: source code sets the field but /occupancy always returns the
// persistent count — Mode is metadata only, never used to pick a field).
type Mode string

const (
	ModeLive       Mode = "live"
	ModePersistent Mode = "persistent"
)

// Tuple is one tracked detection for a single frame: a person box that has
// a stable track id. Detections without a track id never reach the engine
// — they are reported to the caller but must not drive counting
// (spec.md §4.1).
type Tuple struct {
	TrackID    int
	Box        zones.Box
	Confidence float64
}

// EventType enumerates the two events the Engine can emit.
type EventType string

const (
	EventEntry EventType = "entry"
	EventExit  EventType = "exit"
)

// Event is emitted once per entry/exit transition.
type Event struct {
	Type        EventType
	TrackID     int
	ZoneID      string
	CameraID    string
	FrameNumber int
}

// Engine is the hysteresis counting state machine. Per spec.md §5 the
// Zone Registry and Counting Engine are process-wide singletons: one
// Engine evaluates every zone across every camera against every tracked
// tuple it's handed, rather than one Engine per camera — a frame's
// stream id carries no camera scoping of its own in the wire contract.
// Every mutation is serialized by mu so two frames can never interleave
// updates to the same track.
type Engine struct {
	mu sync.Mutex

	zoneReg     *zones.Registry
	frameNumber int
	tracked     map[int]*Person
	occupancy   Occupancy
	mode        Mode
}

func NewEngine(zoneReg *zones.Registry) *Engine {
	return &Engine{
		zoneReg: zoneReg,
		tracked: make(map[int]*Person),
		mode:    ModePersistent,
	}
}

// ProcessDetections runs one frame through the hysteresis rule and the
// stale-track sweep, returning every entry/exit event produced.
func (e *Engine) ProcessDetections(tuples []Tuple) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.frameNumber++
	zs := e.zoneReg.All()

	var events []Event

	for _, t := range tuples {
		p, ok := e.tracked[t.TrackID]
		if !ok {
			p = newPerson(t.TrackID)
			e.tracked[t.TrackID] = p
		}
		p.FrameCount++
		p.LastSeenFrame = e.frameNumber

		// All zones are evaluated every frame; entry is attributed to
		// whichever zone's current ratio first crosses 0.8 with the
		// global preconditions satisfied (spec.md §4.3 edge cases).
		// Go map iteration order is randomized, which is at least as
		// faithful to "downstream should not rely on which zone is
		// credited" as the source's dict insertion order.
		for _, z := range zs {
			r := zones.OverlapRatio(z, t.Box)
			if r > p.MaxOverlapRatio {
				p.MaxOverlapRatio = r
			}

			if !p.HasBeenCounted &&
				p.MaxOverlapRatio >= entryMaxOverlapThreshold &&
				r >= entryCurrentOverlapThreshold &&
				p.FrameCount >= MinZoneFrames {
				p.HasBeenCounted = true
				e.occupancy.onEntry()
				events = append(events, Event{Type: EventEntry, TrackID: t.TrackID, ZoneID: z.ID, CameraID: z.CameraID, FrameNumber: e.frameNumber})
			}

			if r >= residencyOverlapThreshold {
				p.appendResidency(z.ID, e.frameNumber)
			}
		}
	}

	for tid, p := range e.tracked {
		if e.frameNumber-p.LastSeenFrame > StaleTrackFrames {
			delete(e.tracked, tid)
			if p.HasBeenCounted {
				e.occupancy.onExit()
				events = append(events, Event{Type: EventExit, TrackID: tid, ZoneID: p.FirstZoneEntry, CameraID: zoneCameraID(zs, p.FirstZoneEntry), FrameNumber: e.frameNumber})
			}
		}
	}

	return events
}

func zoneCameraID(zs []zones.Zone, zoneID string) string {
	for _, z := range zs {
		if z.ID == zoneID {
			return z.CameraID
		}
	}
	return ""
}

// Occupancy returns a snapshot of the current aggregate counters.
func (e *Engine) Occupancy() Occupancy {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.occupancy
}

// ActiveTracks returns the number of currently tracked people.
func (e *Engine) ActiveTracks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.tracked)
}

// Reset clears all counters and the tracked-people map (POST /occupancy/reset).
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tracked = make(map[int]*Person)
	e.occupancy = e.occupancy.reset()
}

// SetMode stores the advisory reporting mode.
func (e *Engine) SetMode(m Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mode = m
}

// Mode returns the advisory reporting mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}
