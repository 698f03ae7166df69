package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var (
	SpoolDir           = "./data/audit_spool"
	MaxSpoolSize int64 = 1024 * 1024 * 1024 // 1GB
)

const activeSpoolFile = "audit_spool.log"

// ConfigureFailover points the spool at an operator-chosen directory and
// cap (AUDIT_SPOOL_DIR / AUDIT_SPOOL_MAX_MB, spec.md §6 environment list).
func ConfigureFailover(dir string, maxMB int64) {
	if dir != "" {
		SpoolDir = dir
	}
	if maxMB > 0 {
		MaxSpoolSize = maxMB * 1024 * 1024
	}
	_ = os.MkdirAll(SpoolDir, 0750)
}

// SpoolEvent appends one audit event to the on-disk failover log, used
// whenever the Postgres write in Service.WriteEvent fails. It is the
// write side of an at-least-once, best-effort bridge across a database
// outage — spec.md's Non-goals rule out exactly-once guarantees, so a
// spool that eventually drops its oldest entries under sustained
// pressure is an acceptable trade for never blocking the detection path.
func SpoolEvent(evt Event) error {
	if isSpoolFull() {
		if err := rotateSpool(); err != nil {
			return fmt.Errorf("spool full and rotation failed: %w", err)
		}
	}

	payload := FailoverEvent{
		EventID:   evt.EventID.String(),
		StreamID:  evt.StreamID,
		Payload:   evt,
		Timestamp: time.Now(),
	}

	line, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	filename := filepath.Join(SpoolDir, activeSpoolFile)

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}

	return nil
}

func isSpoolFull() bool {
	var size int64
	filepath.Walk(SpoolDir, func(_ string, info fs.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size >= MaxSpoolSize
}

// rotateSpool enforces MaxSpoolSize by deleting the oldest files under
// SpoolDir (replay files awaiting retry, plus the active log itself if
// nothing older remains) until total usage drops back under 90% of the
// cap, leaving headroom so the next few writes don't immediately
// re-trigger rotation. This is a drop policy, not a true rotation: once
// the oldest file is gone its events are gone, which is the documented
// cost of bounding disk usage during a prolonged database outage.
func rotateSpool() error {
	entries, err := os.ReadDir(SpoolDir)
	if err != nil {
		return err
	}

	type spoolFile struct {
		path    string
		modTime time.Time
		size    int64
	}

	var files []spoolFile
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, spoolFile{
			path:    filepath.Join(SpoolDir, e.Name()),
			modTime: info.ModTime(),
			size:    info.Size(),
		})
		total += info.Size()
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.Before(files[j].modTime) })

	target := MaxSpoolSize - MaxSpoolSize/10
	for _, f := range files {
		if total <= target {
			break
		}
		if err := os.Remove(f.path); err != nil {
			log.Printf("[AUDIT] spool rotation: could not remove %s: %v", f.path, err)
			continue
		}
		total -= f.size
		log.Printf("[AUDIT] spool rotation: purged %s (%d bytes) to stay under the %d byte cap", f.path, f.size, MaxSpoolSize)
	}

	if total > target {
		return fmt.Errorf("spool still at %d bytes after purging oldest files (cap %d)", total, MaxSpoolSize)
	}
	return nil
}

// StartReplayer launches the periodic drain of spooled events back into
// Postgres; cancel ctx to stop it (cmd/server wires this to the same
// context it cancels on shutdown).
func (s *Service) StartReplayer(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.ReplaySpool(ctx)
			}
		}
	}()
}

var replayLock sync.Mutex

// ReplaySpool moves the active spool file aside and replays each line
// through WriteEvent. A still-down database re-spools the event into a
// fresh active log rather than looping on the file being read, so one
// pass always terminates.
func (s *Service) ReplaySpool(ctx context.Context) {
	replayLock.Lock()
	defer replayLock.Unlock()

	filename := filepath.Join(SpoolDir, activeSpoolFile)
	info, err := os.Stat(filename)
	if os.IsNotExist(err) || (info != nil && info.Size() == 0) {
		return
	}

	replayFile := filepath.Join(SpoolDir, fmt.Sprintf("replay_%d.log", time.Now().UnixNano()))
	if err := os.Rename(filename, replayFile); err != nil {
		log.Printf("[AUDIT] failed to stage spool for replay: %v", err)
		return
	}

	f, err := os.Open(replayFile)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var succeeded, failed int

	for scanner.Scan() {
		var fe FailoverEvent
		if err := json.Unmarshal(scanner.Bytes(), &fe); err != nil {
			failed++
			continue
		}

		// WriteEvent re-spools the event into a new active log if the DB
		// is still down, so a failed replay here is not lost — it just
		// waits for the next tick.
		if err := s.WriteEvent(ctx, fe.Payload); err == nil {
			succeeded++
		}
	}

	f.Close()
	os.Remove(replayFile)

	if succeeded > 0 || failed > 0 {
		log.Printf("[AUDIT] spool replay: %d flushed, %d malformed", succeeded, failed)
	}
}
