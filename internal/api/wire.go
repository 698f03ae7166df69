package api

import (
	"github.com/doorwatch/doorwatch/internal/detect"
	"github.com/doorwatch/doorwatch/internal/streams"
	"github.com/doorwatch/doorwatch/internal/threat"
	"github.com/doorwatch/doorwatch/internal/zones"
)

// wireDetection is the bounding-box wire format from spec.md §6: pixel
// coordinates relative to image_width/image_height, confidence in
// [0,1], track_id an integer when present, category a tagged string or
// absent, llm_false_positive a tri-state boolean.
type wireDetection struct {
	X1               float64  `json:"x1"`
	Y1               float64  `json:"y1"`
	X2               float64  `json:"x2"`
	Y2               float64  `json:"y2"`
	Label            string   `json:"label"`
	Confidence       float64  `json:"confidence"`
	TrackID          *int     `json:"track_id,omitempty"`
	Category         string   `json:"category,omitempty"`
	LLMFalsePositive *bool    `json:"llm_false_positive,omitempty"`
}

func toWireDetection(d detect.Detection) wireDetection {
	return wireDetection{
		X1: d.Box.X1, Y1: d.Box.Y1, X2: d.Box.X2, Y2: d.Box.Y2,
		Label:      d.Label,
		Confidence: d.Confidence,
		TrackID:    d.TrackID,
	}
}

func toWireThreat(b threat.Box) wireDetection {
	wd := toWireDetection(b.Detection)
	wd.Category = string(b.Category)
	wd.TrackID = b.AssociatedTrack
	wd.LLMFalsePositive = b.LLMFalsePositive
	return wd
}

// wireZone mirrors spec.md §6's zones-update/list shape, camera_id
// included so /zones (all cameras) stays self-describing.
type wireZone struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	CameraID string  `json:"camera_id,omitempty"`
	X1       float64 `json:"x1"`
	Y1       float64 `json:"y1"`
	X2       float64 `json:"x2"`
	Y2       float64 `json:"y2"`
}

func toWireZone(z zones.Zone) wireZone {
	return wireZone{ID: z.ID, Name: z.Name, CameraID: z.CameraID, X1: z.X1, Y1: z.Y1, X2: z.X2, Y2: z.Y2}
}

// wireStreamStatus is StreamRecord's external shape (spec.md §3).
type wireStreamStatus struct {
	StreamID          string  `json:"stream_id"`
	Source            string  `json:"source"`
	Active            bool    `json:"is_active"`
	Confidence        float64 `json:"confidence"`
	PeopleCount       int     `json:"people_count"`
	FrameWidth        int     `json:"frame_width"`
	FrameHeight       int     `json:"frame_height"`
	LastDetectionTime string  `json:"last_detection_time,omitempty"`
	LastHeartbeat     string  `json:"last_heartbeat"`
	Error             string  `json:"error,omitempty"`
}

func toWireStreamStatus(s streams.Status) wireStreamStatus {
	out := wireStreamStatus{
		StreamID:      s.StreamID,
		Source:        s.Source,
		Active:        s.Active,
		Confidence:    s.Confidence,
		PeopleCount:   s.PeopleCount,
		FrameWidth:    s.FrameWidth,
		FrameHeight:   s.FrameHeight,
		LastHeartbeat: s.LastHeartbeat.UTC().Format(rfc3339Micro),
		Error:         s.Error,
	}
	if !s.LastDetectionTime.IsZero() {
		out.LastDetectionTime = s.LastDetectionTime.UTC().Format(rfc3339Micro)
	}
	return out
}

const rfc3339Micro = "2006-01-02T15:04:05.000000Z07:00"
