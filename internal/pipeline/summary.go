package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/doorwatch/doorwatch/internal/detect"
	"github.com/doorwatch/doorwatch/internal/threat"
)

// topThreeSummary renders "detected X (0.90), Y (0.80), Z (0.40)" from the
// highest-confidence boxes, falling back from ui-gated boxes to the full
// candidate list when nothing passed the UI threshold — a cooldown-blocked
// response still needs a human summary for the UI (spec.md §4.5).
func topThreeSummary(uiBoxes, allBoxes []threat.Box) string {
	src := uiBoxes
	if len(src) == 0 {
		src = allBoxes
	}
	if len(src) == 0 {
		return ""
	}

	sorted := append([]threat.Box(nil), src...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })
	if len(sorted) > 3 {
		sorted = sorted[:3]
	}

	parts := make([]string, 0, len(sorted))
	for _, b := range sorted {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", b.Label, b.Confidence))
	}
	return "detected " + strings.Join(parts, ", ")
}

// pickCandidate chooses the box adjudication runs against: prefer boxes
// already associated with a track id, then the largest by area
// (spec.md §4.5: "prefer those with a track id; among those, pick the
// largest area").
func pickCandidate(allBoxes []threat.Box) *threat.Box {
	pool := make([]threat.Box, 0, len(allBoxes))
	for _, b := range allBoxes {
		if b.AssociatedTrack != nil {
			pool = append(pool, b)
		}
	}
	if len(pool) == 0 {
		pool = allBoxes
	}
	if len(pool) == 0 {
		return nil
	}

	best := pool[0]
	bestArea := boxArea(best.Box)
	for _, b := range pool[1:] {
		if a := boxArea(b.Box); a > bestArea {
			best = b
			bestArea = a
		}
	}
	return &best
}

func boxArea(b detect.Box) float64 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// effectiveRunIoU mirrors the Python prototype's
// min(suspicious_iou or 0.5, threat_iou or 0.5): the secondary model's
// own NMS IoU is the tighter of the two request-level hints, defaulting
// to 0.5 when neither is supplied.
func effectiveRunIoU(suspiciousIoU, threatIoU *float64) float64 {
	s, t := 0.5, 0.5
	if suspiciousIoU != nil {
		s = *suspiciousIoU
	}
	if threatIoU != nil {
		t = *threatIoU
	}
	if s < t {
		return s
	}
	return t
}
