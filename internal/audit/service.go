package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
)

func (s *Service) WriteEvent(ctx context.Context, evt Event) error {
	if evt.EventID == uuid.Nil {
		evt.EventID = uuid.New()
	}

	if s.DB == nil {
		// DB_HOST was left unset: spool-only mode (SPEC_FULL.md §6). The
		// counting/detection path must never depend on Postgres being up.
		return SpoolEvent(evt)
	}

	query := `
		INSERT INTO audit_logs (
			event_id, stream_id, camera_id, zone_id, track_id, event_type,
			result, reason_code, request_id, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (event_id) DO NOTHING
	`

	_, err := s.DB.ExecContext(ctx, query,
		evt.EventID, evt.StreamID, evt.CameraID, evt.ZoneID, evt.TrackID, evt.EventType,
		evt.Result, evt.ReasonCode, evt.RequestID, evt.Metadata, evt.CreatedAt,
	)

	if err != nil {
		log.Printf("[AUDIT] DB write failed: %v. Spooling event %s", err, evt.EventID)
		if spoolErr := SpoolEvent(evt); spoolErr != nil {
			log.Printf("[AUDIT] CRITICAL: spool failed for event %s: %v", evt.EventID, spoolErr)
			return fmt.Errorf("audit critical failure: %w", spoolErr)
		}
		return nil // swallow the DB error once the event is safely spooled
	}

	return nil
}

// Append-only enforcement: no Update or Delete methods exposed.

// QueryEvents implements filters and cursor pagination.
func (s *Service) QueryEvents(ctx context.Context, f Filter) ([]Event, string, error) {
	if s.DB == nil {
		return nil, "", nil
	}
	q := `SELECT id, event_id, stream_id, camera_id, zone_id, track_id, event_type, result, created_at, metadata
	      FROM audit_logs
	      WHERE stream_id = $1 OR $1 = ''`
	args := []interface{}{f.StreamID}
	idx := 2

	if f.EventType != "" {
		q += fmt.Sprintf(" AND event_type = $%d", idx)
		args = append(args, f.EventType)
		idx++
	}

	if f.DateFrom != nil {
		q += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *f.DateFrom)
		idx++
	}

	if f.Cursor != "" {
		q += fmt.Sprintf(" AND id < $%d", idx)
		args = append(args, f.Cursor)
		idx++
	}

	q += " ORDER BY created_at DESC, id DESC LIMIT " + fmt.Sprintf("$%d", idx)
	args = append(args, f.Limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var events []Event
	var lastID string

	for rows.Next() {
		var evt Event
		var meta []byte
		if err := rows.Scan(&evt.ID, &evt.EventID, &evt.StreamID, &evt.CameraID, &evt.ZoneID, &evt.TrackID, &evt.EventType, &evt.Result, &evt.CreatedAt, &meta); err != nil {
			return nil, "", err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &evt.Metadata)
		}
		events = append(events, evt)
		lastID = evt.ID.String()
	}

	return events, lastID, nil
}

// ExportEvents streams every matching event as newline-delimited JSON,
// bounded by maxRecords so a runaway export can't hold the connection open
// indefinitely.
func (s *Service) ExportEvents(ctx context.Context, f Filter, w io.Writer) error {
	const maxRecords = 10000

	if s.DB == nil {
		return nil
	}

	q := `SELECT id, event_id, stream_id, camera_id, zone_id, track_id, event_type, result, created_at, metadata
	      FROM audit_logs
	      WHERE stream_id = $1 OR $1 = ''`
	rows, err := s.DB.QueryContext(ctx, q, f.StreamID)
	if err != nil {
		return err
	}
	defer rows.Close()

	enc := json.NewEncoder(w)
	count := 0

	for rows.Next() {
		if count >= maxRecords {
			break
		}
		var evt Event
		var meta []byte
		if err := rows.Scan(&evt.ID, &evt.EventID, &evt.StreamID, &evt.CameraID, &evt.ZoneID, &evt.TrackID, &evt.EventType, &evt.Result, &evt.CreatedAt, &meta); err != nil {
			return err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &evt.Metadata)
		}
		if err := enc.Encode(evt); err != nil {
			return err
		}
		count++
	}
	return nil
}
