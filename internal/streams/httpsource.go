package streams

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPSnapshotSource polls an HTTP(S) snapshot endpoint for a single JPEG
// per ReadFrame call, the same GET-a-still-frame shape the teacher's
// cmd/ai-service.processCamera used to pull a frame from a camera's
// snapshot URL rather than holding an RTSP stream open. It is the one
// concrete SourceFactory this repo ships; the camera/RTSP capture layer
// itself is an opaque external collaborator (spec.md §1), so this is
// deliberately the simplest thing that can stand in for it against any
// source that exposes a still-image endpoint (an MJPEG proxy, a NVR
// snapshot API, a test fixture server).
type HTTPSnapshotSource struct {
	url    string
	client *http.Client
}

// NewHTTPSourceFactory builds a SourceFactory where the source string
// passed to Start is the full snapshot URL.
func NewHTTPSourceFactory() SourceFactory {
	return func(source string) (FrameSource, error) {
		client := &http.Client{Timeout: 5 * time.Second}
		// A reachability probe at open time turns a dead camera into a
		// CaptureOpenFailure (spec.md §7) instead of a silent stream
		// that never produces a frame.
		req, err := http.NewRequest(http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid source url: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("could not reach source: %w", err)
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("source returned status %d", resp.StatusCode)
		}
		return &HTTPSnapshotSource{url: source, client: client}, nil
	}
}

// ReadFrame pulls one still JPEG and reports the 1280x720 target
// dimensions, not the frame's decoded size: this source has no decoder,
// so the stream status always shows 1280x720 and the actual resolution
// is neither measured nor logged.
func (h *HTTPSnapshotSource) ReadFrame(ctx context.Context) ([]byte, int, int, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, 0, 0, false, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, 0, 0, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, 0, false, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, 0, 0, false, err
	}
	if len(body) == 0 {
		return nil, 0, 0, false, nil
	}
	return body, targetFrameW, targetFrameH, true, nil
}

func (h *HTTPSnapshotSource) Release() {}
