// Package snapshot writes the full-frame and cropped-threat JPEGs that
// back an LLM adjudication call (spec.md §4.7, grounded on yolo_detection_service_enhanced.py's
// snapshot block: strftime("%Y%m%d_%H%M%S_%f") timestamp, re.sub label
// sanitizer).
package snapshot

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

var sanitizeRe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Writer persists JPEG evidence under root/full and root/threats. A
// failed write is logged and otherwise ignored: a missing snapshot must
// never block the detection pipeline it's evidencing.
type Writer struct {
	Root string
	now  func() time.Time
}

func NewWriter(root string) *Writer {
	return &Writer{Root: root, now: time.Now}
}

// Paths is the pair of file paths a successful Save produced (or would
// have produced, even on failure, so callers can log a consistent path).
type Paths struct {
	FullPath string
	CropPath string
}

// Save writes full and crop to disk under timestamped, sanitized names
// and returns the paths it used. Either slice may be nil; a nil slice is
// simply skipped.
func (w *Writer) Save(streamID, label string, full, crop []byte) Paths {
	now := w.now()
	ts := now.Format("20060102_150405") + fmt.Sprintf("_%06d", now.Nanosecond()/1000)
	safeLabel := sanitize(label, "unknown")
	safeStream := sanitize(streamID, "default")

	fullDir := filepath.Join(w.Root, "full")
	threatDir := filepath.Join(w.Root, "threats")

	paths := Paths{
		FullPath: filepath.Join(fullDir, fmt.Sprintf("%s_%s_full_frame.jpg", ts, safeStream)),
		CropPath: filepath.Join(threatDir, fmt.Sprintf("%s_%s_%s_crop.jpg", ts, safeStream, safeLabel)),
	}

	if len(full) > 0 {
		if err := writeFile(fullDir, paths.FullPath, full); err != nil {
			log.Printf("[SNAPSHOT] failed to save full frame: %v", err)
		}
	}
	if len(crop) > 0 {
		if err := writeFile(threatDir, paths.CropPath, crop); err != nil {
			log.Printf("[SNAPSHOT] failed to save crop: %v", err)
		}
	}
	return paths
}

func writeFile(dir, path string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func sanitize(s, fallback string) string {
	if s == "" {
		s = fallback
	}
	return sanitizeRe.ReplaceAllString(s, "_")
}
