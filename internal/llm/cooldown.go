package llm

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// trackKey scopes a per-track cooldown entry to the stream it was seen on,
// matching spec.md §4.5's last_llm[stream, track] ledger (a track id is
// only ever compared against a cooldown timestamp recorded for the same
// stream).
type trackKey struct {
	StreamID string
	TrackID  int
}

const defaultTrackLRUSize = 4096

// Cooldown is the two-level gate in front of the LLM call: a per-(stream,
// track) ledger, bounded by an LRU so a long-running stream with many
// distinct track ids can't leak memory (same shape as the teacher's
// internal/nvr.EventDedup), and a per-stream ledger that applies
// regardless of track id. Both gates must pass — the per-track gate (when
// the candidate has a track id) is checked first, then the per-stream
// gate; either one blocking refuses the call. Both timestamps are
// stamped at gate-check time, before the call is made, so two frames
// racing the same track or stream never both slip through (spec.md
// §4.5: cooldown is set pre-call to prevent a stampede on repeated
// failure).
type Cooldown struct {
	mu           sync.Mutex
	perTrack     *lru.Cache[trackKey, time.Time]
	perStream    map[string]time.Time
	streamWindow time.Duration
	trackWindow  time.Duration
	now          func() time.Time
}

// NewCooldown builds a gate with independent per-stream and per-track
// windows (LLM_COOLDOWN_SECONDS and LLM_PER_TRACK_COOLDOWN_SECONDS; the
// latter defaults to the former when zero, per spec.md §6).
func NewCooldown(streamWindow, trackWindow time.Duration) *Cooldown {
	if trackWindow <= 0 {
		trackWindow = streamWindow
	}
	c, _ := lru.New[trackKey, time.Time](defaultTrackLRUSize)
	return &Cooldown{
		perTrack:     c,
		perStream:    make(map[string]time.Time),
		streamWindow: streamWindow,
		trackWindow:  trackWindow,
		now:          time.Now,
	}
}

// Allow reports whether a call may proceed for this (streamID, trackID)
// pair. When it refuses, it also returns how much of the blocking window
// remains, so the caller can render spec.md §4.5's "cooldown active: Ns
// remaining" message. A pass stamps both ledgers immediately.
func (c *Cooldown) Allow(streamID string, trackID *int) (ok bool, remaining time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if trackID != nil {
		if last, ok := c.perTrack.Get(trackKey{streamID, *trackID}); ok {
			if elapsed := now.Sub(last); elapsed < c.trackWindow {
				return false, c.trackWindow - elapsed
			}
		}
	}

	if last, ok := c.perStream[streamID]; ok {
		if elapsed := now.Sub(last); elapsed < c.streamWindow {
			return false, c.streamWindow - elapsed
		}
	}

	if trackID != nil {
		c.perTrack.Add(trackKey{streamID, *trackID}, now)
	}
	c.perStream[streamID] = now
	return true, 0
}
