// Package cache stores the most recent detection result for a stream in
// Redis, keyed det:latest:<stream_id>, so a late-joining dashboard client
// can render something before the next frame arrives (spec.md §4.10,
// grounded on internal/live/service.go's session-store pipeline: Set
// with a TTL, key prefixed by kind and id).
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 30 * time.Second

// Snapshot is the JSON payload stored per stream.
type Snapshot struct {
	StreamID    string    `json:"stream_id"`
	FrameNumber int       `json:"frame_number"`
	PersonCount int       `json:"person_count"`
	ThreatCount int       `json:"threat_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func key(streamID string) string {
	return fmt.Sprintf("det:latest:%s", streamID)
}

// SaveLatest overwrites the cached snapshot for streamID and resets its TTL.
func (c *Cache) SaveLatest(ctx context.Context, s Snapshot) error {
	if c.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(s.StreamID), payload, c.ttl).Err()
}

// GetLatest returns the cached snapshot, and false if nothing is cached
// (expired or never written) or Redis is unavailable.
func (c *Cache) GetLatest(ctx context.Context, streamID string) (Snapshot, bool) {
	if c.rdb == nil {
		return Snapshot{}, false
	}
	raw, err := c.rdb.Get(ctx, key(streamID)).Bytes()
	if err != nil {
		return Snapshot{}, false
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, false
	}
	return s, true
}
