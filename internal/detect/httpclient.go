package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
)

// HTTPClient talks to an opaque inference sidecar over JSON. This is the
// same shape the teacher's cmd/ai-service used for its own external calls
// (plain http.Client with a fixed timeout, JSON decode of a small
// response struct) rather than a generated gRPC stub — the teacher's only
// gRPC usage depends on a protobuf package this repo cannot regenerate
// without fabricating code (see DESIGN.md).
type HTTPClient struct {
	PersonURL     string // e.g. http://localhost:9001/infer
	SuspiciousURL string // e.g. http://localhost:9002/infer
	ImgSize       int    // DETECTION_IMGSZ — shorter-side inference resolution
	HTTP          *http.Client
}

func NewHTTPClient(personURL, suspiciousURL string, imgSize int) *HTTPClient {
	return &HTTPClient{
		PersonURL:     personURL,
		SuspiciousURL: suspiciousURL,
		ImgSize:       imgSize,
		HTTP:          &http.Client{Timeout: 10 * time.Second},
	}
}

type inferRequest struct {
	Confidence float64 `json:"confidence"`
	IoU        float64 `json:"iou,omitempty"`
	ImgSize    int     `json:"imgsz,omitempty"`
}

type wireBox struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	TrackID    *int    `json:"track_id,omitempty"`
}

type inferResponse struct {
	ImageWidth  int       `json:"image_width"`
	ImageHeight int       `json:"image_height"`
	Boxes       []wireBox `json:"boxes"`
}

func (c *HTTPClient) infer(ctx context.Context, url string, frame []byte, req inferRequest) (*inferResponse, error) {
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)

	meta, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if err := mw.WriteField("meta", string(meta)); err != nil {
		return nil, err
	}
	fw, err := mw.CreateFormFile("frame", "frame.jpg")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(frame); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("detector request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector returned status %d", resp.StatusCode)
	}

	var out inferResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("detector response decode failed: %w", err)
	}
	return &out, nil
}

func (c *HTTPClient) DetectAndTrack(ctx context.Context, frame []byte, confidence float64) ([]Detection, []TrackedTuple, int, int, error) {
	resp, err := c.infer(ctx, c.PersonURL, frame, inferRequest{Confidence: confidence, ImgSize: c.ImgSize})
	if err != nil {
		return nil, nil, 0, 0, err
	}

	detections := make([]Detection, 0, len(resp.Boxes))
	var tracked []TrackedTuple
	for _, b := range resp.Boxes {
		box := Box{X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2}
		detections = append(detections, Detection{
			Box:        box,
			Label:      fmt.Sprintf("Person (%.2f)", b.Confidence),
			Confidence: b.Confidence,
			TrackID:    b.TrackID,
		})
		if b.TrackID != nil {
			tracked = append(tracked, TrackedTuple{TrackID: *b.TrackID, Box: box, Confidence: b.Confidence})
		}
	}

	return detections, tracked, resp.ImageWidth, resp.ImageHeight, nil
}

func (c *HTTPClient) DetectSuspicious(ctx context.Context, frame []byte, confidence, iou float64) ([]Detection, error) {
	resp, err := c.infer(ctx, c.SuspiciousURL, frame, inferRequest{Confidence: confidence, IoU: iou})
	if err != nil {
		return nil, err
	}

	out := make([]Detection, 0, len(resp.Boxes))
	for _, b := range resp.Boxes {
		out = append(out, Detection{
			Box:        Box{X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2},
			Label:      b.Label,
			Confidence: b.Confidence,
			TrackID:    b.TrackID,
		})
	}
	return out, nil
}
