// Package threat classifies suspicious-object detections into threat vs
// suspicious categories, applies UI confidence gates, and associates each
// box back to a person track (spec.md §4.4).
package threat

import "github.com/doorwatch/doorwatch/internal/detect"

// Category is the tagged variant for a suspicious-object detection.
type Category string

const (
	CategoryThreat     Category = "threat"
	CategorySuspicious Category = "suspicious"
)

// Box is a classified, optionally-associated suspicious detection.
type Box struct {
	detect.Detection
	Category         Category
	AssociatedTrack  *int
	LLMFalsePositive *bool
}

// Config holds the operator-tunable thresholds and feature flags.
type Config struct {
	ThreatLabels        map[string]bool // lower-cased label set, e.g. weapon/gun/knife/firearm
	SuspiciousOnly      bool            // collapses every box to CategorySuspicious
	SuspiciousThreshold float64         // default 0.25
	ThreatThreshold     float64         // default 0.35
	AssocIoUMin         float64         // default 0.10
	AssocMaxDistFrac    float64         // default 0.08
}

func DefaultConfig() Config {
	return Config{
		ThreatLabels:        map[string]bool{"weapon": true, "gun": true, "knife": true, "firearm": true},
		SuspiciousThreshold: 0.25,
		ThreatThreshold:     0.35,
		AssocIoUMin:         0.10,
		AssocMaxDistFrac:    0.08,
	}
}

// Classify assigns a Category to every candidate box, and separately
// produces allBoxes (no confidence gate, used for LLM adjudication) and
// uiBoxes (gated per-category).
func Classify(cfg Config, candidates []detect.Detection) (allBoxes, uiBoxes []Box) {
	for _, d := range candidates {
		cat := categoryFor(cfg, d.Label)
		b := Box{Detection: d, Category: cat}
		allBoxes = append(allBoxes, b)

		threshold := cfg.SuspiciousThreshold
		if cat == CategoryThreat {
			threshold = cfg.ThreatThreshold
		}
		if d.Confidence >= threshold {
			uiBoxes = append(uiBoxes, b)
		}
	}
	return allBoxes, uiBoxes
}

func categoryFor(cfg Config, label string) Category {
	if cfg.SuspiciousOnly {
		return CategorySuspicious
	}
	lower := toLower(label)
	if cfg.ThreatLabels[lower] {
		return CategoryThreat
	}
	return CategorySuspicious
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// HasThreat reports whether any ui box is categorized as a threat.
func HasThreat(uiBoxes []Box) bool {
	for _, b := range uiBoxes {
		if b.Category == CategoryThreat {
			return true
		}
	}
	return false
}
