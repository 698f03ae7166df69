package threat

import (
	"math"

	"github.com/doorwatch/doorwatch/internal/detect"
)

// Associate stamps each suspicious box with the track id of the person
// tuple it most plausibly belongs to, first by IoU and falling back to
// nearest box-center distance (spec.md §4.4, grounded on
// yolo_detection_service_enhanced.py's assign_track/_iou).
//
// frameDiag is the image diagonal in pixels, used to turn AssocMaxDistFrac
// into an absolute pixel distance.
func Associate(cfg Config, boxes []Box, tracked []detect.TrackedTuple, imgW, imgH int) []Box {
	if len(tracked) == 0 {
		return boxes
	}
	frameDiag := math.Hypot(float64(imgW), float64(imgH))
	maxDist := cfg.AssocMaxDistFrac * frameDiag

	out := make([]Box, len(boxes))
	copy(out, boxes)

	for i := range out {
		trackID, ok := bestMatch(cfg, out[i].Box, tracked, maxDist)
		if ok {
			id := trackID
			out[i].AssociatedTrack = &id
		}
	}
	return out
}

func bestMatch(cfg Config, box detect.Box, tracked []detect.TrackedTuple, maxDist float64) (int, bool) {
	bestIoU := 0.0
	bestIoUID := -1
	for _, t := range tracked {
		v := iou(box, t.Box)
		if v > bestIoU {
			bestIoU = v
			bestIoUID = t.TrackID
		}
	}
	if bestIoU >= cfg.AssocIoUMin {
		return bestIoUID, true
	}

	bestDist := math.Inf(1)
	bestDistID := -1
	cx, cy := center(box)
	for _, t := range tracked {
		tx, ty := center(t.Box)
		d := math.Hypot(cx-tx, cy-ty)
		if d < bestDist {
			bestDist = d
			bestDistID = t.TrackID
		}
	}
	if bestDistID >= 0 && bestDist <= maxDist {
		return bestDistID, true
	}
	return -1, false
}

func center(b detect.Box) (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

func area(b detect.Box) float64 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func iou(a, b detect.Box) float64 {
	ix1, iy1 := math.Max(a.X1, b.X1), math.Max(a.Y1, b.Y1)
	ix2, iy2 := math.Min(a.X2, b.X2), math.Min(a.Y2, b.Y2)
	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
