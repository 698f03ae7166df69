package detect

import "context"

// Client is the Detector Adapter's interface (spec.md §4.1). Two
// instances are wired in practice: one pointed at the person+tracker
// model, one at the secondary suspicious-object model — both opaque
// external processes from this service's point of view.
type Client interface {
	// DetectAndTrack runs the primary model with an integrated
	// multi-object tracker in persistent mode, filtered to the person
	// class. Detections without a track id are returned for reporting
	// but are never included in the tracked tuple list.
	DetectAndTrack(ctx context.Context, frame []byte, confidence float64) (detections []Detection, tracked []TrackedTuple, imgW, imgH int, err error)

	// DetectSuspicious runs the secondary model at a very low internal
	// confidence floor — the LLM, not confidence, is meant to be the
	// gate; UI-facing thresholds are applied by the caller.
	DetectSuspicious(ctx context.Context, frame []byte, confidence, iou float64) ([]Detection, error)
}
