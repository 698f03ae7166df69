package streams

import "context"

// FakeSource is a test double that replays a fixed sequence of frames,
// then reports failed reads forever (mirroring a disconnected RTSP
// source) once exhausted.
type FakeSource struct {
	Frames   [][]byte
	Width    int
	Height   int
	OpenErr  error
	released bool
	idx      int
}

func NewFakeFactory(fakes map[string]*FakeSource) SourceFactory {
	return func(source string) (FrameSource, error) {
		fs, ok := fakes[source]
		if !ok {
			return nil, context.DeadlineExceeded
		}
		if fs.OpenErr != nil {
			return nil, fs.OpenErr
		}
		return fs, nil
	}
}

func (f *FakeSource) ReadFrame(ctx context.Context) ([]byte, int, int, bool, error) {
	if f.idx >= len(f.Frames) {
		return nil, 0, 0, false, nil
	}
	frame := f.Frames[f.idx]
	f.idx++
	return frame, f.Width, f.Height, true, nil
}

func (f *FakeSource) Release() {
	f.released = true
}

func (f *FakeSource) Released() bool {
	return f.released
}
