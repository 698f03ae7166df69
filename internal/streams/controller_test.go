package streams

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T, fakes map[string]*FakeSource) *Controller {
	t.Helper()
	process := func(ctx context.Context, streamID string, frame []byte, w, h int, confidence float64) ProcessResult {
		return ProcessResult{PeopleCount: len(frame)}
	}
	return NewController(NewFakeFactory(fakes), process)
}

func TestController_StartThenStatusReflectsProcessedFrames(t *testing.T) {
	fake := &FakeSource{Frames: [][]byte{{1, 2, 3}}, Width: 1280, Height: 720}
	c := newTestController(t, map[string]*FakeSource{"cam-1": fake})

	require.NoError(t, c.Start("cam-1", "cam-1", 0.5))

	require.Eventually(t, func() bool {
		st, ok := c.Status("cam-1")
		return ok && st.PeopleCount == 3
	}, time.Second, 10*time.Millisecond)
}

func TestController_StartTwiceIsHeartbeatNotRestart(t *testing.T) {
	fake := &FakeSource{Frames: [][]byte{{1}}, Width: 1280, Height: 720}
	c := newTestController(t, map[string]*FakeSource{"cam-1": fake})

	require.NoError(t, c.Start("cam-1", "cam-1", 0.5))
	require.NoError(t, c.Start("cam-1", "cam-1", 0.5))

	assert.Len(t, c.List(), 1)
}

func TestController_StartUnknownSourceErrors(t *testing.T) {
	c := newTestController(t, map[string]*FakeSource{})
	err := c.Start("cam-1", "missing", 0.5)
	assert.Error(t, err)
}

func TestController_StopReleasesCaptureAndRemovesStream(t *testing.T) {
	fake := &FakeSource{Frames: [][]byte{{1}, {2}, {3}}, Width: 1280, Height: 720}
	c := newTestController(t, map[string]*FakeSource{"cam-1": fake})
	require.NoError(t, c.Start("cam-1", "cam-1", 0.5))

	require.Eventually(t, func() bool {
		_, ok := c.Status("cam-1")
		return ok
	}, time.Second, 10*time.Millisecond)

	assert.True(t, c.Stop("cam-1"))

	require.Eventually(t, fake.Released, time.Second, 10*time.Millisecond)

	_, ok := c.Status("cam-1")
	assert.False(t, ok)
}

func TestController_StopUnknownStreamReturnsFalse(t *testing.T) {
	c := newTestController(t, map[string]*FakeSource{})
	assert.False(t, c.Stop("nonexistent"))
}

func TestController_ReapStaleRemovesStreamPastTimeout(t *testing.T) {
	fake := &FakeSource{Frames: [][]byte{{1}}, Width: 1280, Height: 720}
	c := newTestController(t, map[string]*FakeSource{"cam-1": fake})
	require.NoError(t, c.Start("cam-1", "cam-1", 0.5))

	c.mu.Lock()
	s := c.streams["cam-1"]
	c.mu.Unlock()
	s.mu.Lock()
	s.status.LastHeartbeat = time.Now().Add(-StaleTimeout - time.Second)
	s.mu.Unlock()

	c.reapStale()

	_, ok := c.Status("cam-1")
	assert.False(t, ok)
}

func TestController_HeartbeatUpdatesKnownStream(t *testing.T) {
	fake := &FakeSource{Frames: [][]byte{{1}}, Width: 1280, Height: 720}
	c := newTestController(t, map[string]*FakeSource{"cam-1": fake})
	require.NoError(t, c.Start("cam-1", "cam-1", 0.5))

	assert.True(t, c.Heartbeat("cam-1"))
	assert.False(t, c.Heartbeat("nonexistent"))
}

func TestController_OpenErrorPropagates(t *testing.T) {
	fake := &FakeSource{OpenErr: errors.New("device busy")}
	c := newTestController(t, map[string]*FakeSource{"cam-1": fake})

	err := c.Start("cam-1", "cam-1", 0.5)
	assert.ErrorContains(t, err, "device busy")
}
