// Package detect wraps the opaque neural-net inference runtimes (person
// detector with tracker, secondary suspicious-object detector) behind a
// small JSON-over-HTTP contract, mirroring how the teacher's own
// cmd/ai-service treated its detector as an external, swappable process.
package detect

// Box is an axis-aligned pixel-space bounding box, relative to the source
// image's width/height.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// Detection is one reported bounding box: label, confidence, optional
// track id (absent if the detector has no identity for it).
type Detection struct {
	Box        Box
	Label      string
	Confidence float64
	TrackID    *int
}

// TrackedTuple pairs a detection with a concrete track id; only these
// drive the counting engine (spec.md §4.1).
type TrackedTuple struct {
	TrackID    int
	Box        Box
	Confidence float64
}
