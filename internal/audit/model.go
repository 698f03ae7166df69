// Package audit is the append-only compliance ledger for zone entry/exit
// and LLM adjudication events: a Postgres write with a local JSONL spool
// as failover when the database is unreachable (spec.md §4.8).
package audit

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a single audit log entry for one door-zone occurrence.
type Event struct {
	ID          uuid.UUID       `json:"id"`       // DB primary key
	EventID     uuid.UUID       `json:"event_id"` // idempotency key
	StreamID    string          `json:"stream_id"`
	CameraID    string          `json:"camera_id,omitempty"`
	ZoneID      string          `json:"zone_id,omitempty"`
	TrackID     *int            `json:"track_id,omitempty"`
	EventType   string          `json:"event_type"` // entry, exit, threat_detected, llm_adjudication, stream_start, stream_stop
	Result      string          `json:"result"`     // success/failure for stream lifecycle, false_positive/confirmed for adjudication
	ReasonCode  string          `json:"reason_code,omitempty"`
	RequestID   string          `json:"request_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// FailoverEvent wraps Event for JSONL spooling.
type FailoverEvent struct {
	EventID   string    `json:"event_id"`
	StreamID  string    `json:"stream_id"`
	Payload   Event     `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Filter scopes a ledger query.
type Filter struct {
	StreamID  string
	EventType string
	DateFrom  *time.Time
	DateTo    *time.Time
	Limit     int
	Cursor    string // ID-based cursor
}

// Service is the ledger's write/query surface.
type Service struct {
	DB *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{DB: db}
}
