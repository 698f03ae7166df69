package detect

import "context"

// Fake is a test double satisfying Client, letting callers script exact
// detections per call instead of talking to a real sidecar.
type Fake struct {
	PersonCalls     int
	SuspiciousCalls int

	NextPerson     []Detection
	NextTracked    []TrackedTuple
	NextImgW       int
	NextImgH       int
	NextSuspicious []Detection
	Err            error
}

func (f *Fake) DetectAndTrack(ctx context.Context, frame []byte, confidence float64) ([]Detection, []TrackedTuple, int, int, error) {
	f.PersonCalls++
	if f.Err != nil {
		return nil, nil, 0, 0, f.Err
	}
	return f.NextPerson, f.NextTracked, f.NextImgW, f.NextImgH, nil
}

func (f *Fake) DetectSuspicious(ctx context.Context, frame []byte, confidence, iou float64) ([]Detection, error) {
	f.SuspiciousCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.NextSuspicious, nil
}
