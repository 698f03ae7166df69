package audit_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"

	"github.com/doorwatch/doorwatch/internal/audit"
)

// unreachableDB opens a real *sql.DB against a connection that will never
// succeed, so ExecContext fails the way a down Postgres instance would —
// without needing a SQL-mock dependency this repo doesn't otherwise use.
func unreachableDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("postgres", "host=127.0.0.1 port=1 dbname=doorwatch sslmode=disable connect_timeout=1")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriteEvent_DBUnreachableFallsBackToSpool(t *testing.T) {
	tempDir := t.TempDir()
	audit.ConfigureFailover(tempDir, 100)

	s := audit.NewService(unreachableDB(t))
	evt := audit.Event{EventID: uuid.New(), StreamID: "cam-1", EventType: "entry", CreatedAt: time.Now()}

	err := s.WriteEvent(context.Background(), evt)
	assert.NoError(t, err, "a spooled event must not surface as a write error")

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "spool file should have been created")
}

func TestWriteEvent_GeneratesEventIDWhenNil(t *testing.T) {
	tempDir := t.TempDir()
	audit.ConfigureFailover(tempDir, 100)

	s := audit.NewService(unreachableDB(t))
	evt := audit.Event{StreamID: "cam-1", EventType: "exit"}

	require.NoError(t, s.WriteEvent(context.Background(), evt))

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	data, err := os.ReadFile(tempDir + "/audit_spool.log")
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"event_id":"`+uuid.Nil.String()+`"`, "a nil EventID should have been replaced before spooling")
}

func TestSpoolEvent_WritesJSONLLine(t *testing.T) {
	tempDir := t.TempDir()
	audit.ConfigureFailover(tempDir, 100)

	evt := audit.Event{EventID: uuid.New(), StreamID: "cam-2", EventType: "threat_detected"}
	require.NoError(t, audit.SpoolEvent(evt))

	data, err := os.ReadFile(tempDir + "/audit_spool.log")
	require.NoError(t, err)
	assert.Contains(t, string(data), "cam-2")
	assert.Contains(t, string(data), "threat_detected")
}

func TestReplaySpool_RotatesFileEvenWhenDBStillDown(t *testing.T) {
	tempDir := t.TempDir()
	audit.ConfigureFailover(tempDir, 100)

	evt := audit.Event{EventID: uuid.New(), StreamID: "cam-3", EventType: "llm_adjudication"}
	require.NoError(t, audit.SpoolEvent(evt))

	s := audit.NewService(unreachableDB(t))
	s.ReplaySpool(context.Background())

	replays, err := filepath.Glob(filepath.Join(tempDir, "replay_*.log"))
	require.NoError(t, err)
	assert.Empty(t, replays, "the staged replay file should have been removed after the pass")

	data, err := os.ReadFile(tempDir + "/audit_spool.log")
	require.NoError(t, err)
	assert.Contains(t, string(data), "cam-3", "the event should have been re-spooled into a fresh active log")
}

func TestReplaySpool_NoopWhenSpoolEmpty(t *testing.T) {
	tempDir := t.TempDir()
	audit.ConfigureFailover(tempDir, 100)

	s := audit.NewService(unreachableDB(t))
	assert.NotPanics(t, func() { s.ReplaySpool(context.Background()) })
}

func TestSpoolEvent_RotationPurgesOldestFilesUnderCap(t *testing.T) {
	tempDir := t.TempDir()
	// A 1MB cap with ~300 bytes per spooled line overflows only after a
	// few thousand events; force it small so the test doesn't need to write
	// megabytes of fixture data to exercise rotation.
	audit.ConfigureFailover(tempDir, 0)
	audit.MaxSpoolSize = 2048

	// Plant an old replay file that should be purged first once the
	// active log crosses the cap.
	oldReplay := tempDir + "/replay_1.log"
	require.NoError(t, os.WriteFile(oldReplay, []byte(`{"event_id":"old"}`+"\n"), 0600))
	require.NoError(t, os.Chtimes(oldReplay, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))

	for i := 0; i < 100; i++ {
		evt := audit.Event{EventID: uuid.New(), StreamID: "cam-4", EventType: "entry"}
		require.NoError(t, audit.SpoolEvent(evt))
	}

	_, err := os.Stat(oldReplay)
	assert.True(t, os.IsNotExist(err), "rotation should have purged the oldest spool file once the cap was exceeded")
}
