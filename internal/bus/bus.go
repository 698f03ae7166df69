// Package bus publishes stream-lifecycle, entry/exit, and adjudication
// events to NATS so external consumers (dashboards, alerting) can react
// without polling the HTTP API (spec.md §4.6/§4.9 wiring).
//
// Grounded on internal/nvr.NATSPublisher's retry-with-backoff Publish
// loop; the connection itself follows cmd/server/main.go's nil-conn
// startup fallback so a NATS outage at boot never blocks the service.
package bus

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectStreamLifecycle = "doorwatch.stream.lifecycle"
	SubjectZoneEvent       = "doorwatch.zone.event"
	SubjectAdjudication    = "doorwatch.llm.adjudication"
)

// Event is the envelope published on every subject; Subject-specific
// payloads are carried as a generic map so the bus package stays
// decoupled from the domain packages that populate it.
type Event struct {
	Subject   string                 `json:"subject"`
	StreamID  string                 `json:"stream_id"`
	OccurredAt time.Time             `json:"occurred_at"`
	Payload   map[string]interface{} `json:"payload"`
}

// Publisher wraps a *nats.Conn that may be nil (NATS unreachable at
// startup): every method becomes a silent no-op rather than a panic or
// blocking call (cmd/server logs the failed connect once at startup).
type Publisher struct {
	conn       *nats.Conn
	maxRetries int
}

func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn, maxRetries: 3}
}

func (p *Publisher) Publish(subject string, evt Event) {
	if p == nil || p.conn == nil {
		return
	}
	evt.Subject = subject

	data, err := json.Marshal(evt)
	if err != nil {
		log.Printf("[BUS] marshal failed for %s: %v", subject, err)
		return
	}

	var pubErr error
	for i := 0; i <= p.maxRetries; i++ {
		pubErr = p.conn.Publish(subject, data)
		if pubErr == nil {
			return
		}
		time.Sleep(time.Duration(i*100) * time.Millisecond)
	}
	log.Printf("[BUS] publish to %s failed after %d retries: %v", subject, p.maxRetries, pubErr)
}
