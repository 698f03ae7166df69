package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorwatch/doorwatch/internal/api"
	"github.com/doorwatch/doorwatch/internal/audit"
	"github.com/doorwatch/doorwatch/internal/streams"
	"github.com/doorwatch/doorwatch/internal/tracking"
	"github.com/doorwatch/doorwatch/internal/zones"
)

func newTestServer(t *testing.T) *api.Server {
	t.Helper()
	fakes := map[string]*streams.FakeSource{
		"cam-1": {Frames: [][]byte{[]byte("frame-1")}, Width: 1280, Height: 720},
	}
	process := func(ctx context.Context, streamID string, frame []byte, w, h int, confidence float64) streams.ProcessResult {
		return streams.ProcessResult{PeopleCount: 1}
	}
	controller := streams.NewController(streams.NewFakeFactory(fakes), process)

	return &api.Server{
		Zones:   zones.NewRegistry(),
		Engine:  tracking.NewEngine(zones.NewRegistry()),
		Streams: controller,
		Audit:   audit.NewService(nil),
	}
}

func TestStreamLifecycle_StartHeartbeatStatusStop(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	startBody, _ := json.Marshal(map[string]any{
		"source":     "cam-1",
		"confidence": 0.5,
		"stream_id":  "front-door",
	})
	req := httptest.NewRequest(http.MethodPost, "/stream/start", bytes.NewReader(startBody))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Starting again with the same stream_id must not spawn a second
	// worker — it behaves as a heartbeat (spec.md §4.6).
	req2 := httptest.NewRequest(http.MethodPost, "/stream/start", bytes.NewReader(startBody))
	w2 := httptest.NewRecorder()
	router.ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)

	statusReq := httptest.NewRequest(http.MethodGet, "/stream/status/front-door", nil)
	statusW := httptest.NewRecorder()
	router.ServeHTTP(statusW, statusReq)
	require.Equal(t, http.StatusOK, statusW.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(statusW.Body.Bytes(), &status))
	assert.Equal(t, "front-door", status["stream_id"])
	assert.Equal(t, true, status["is_active"])

	hbBody, _ := json.Marshal(map[string]any{"stream_id": "front-door"})
	hbReq := httptest.NewRequest(http.MethodPost, "/stream/heartbeat", bytes.NewReader(hbBody))
	hbW := httptest.NewRecorder()
	router.ServeHTTP(hbW, hbReq)
	assert.Equal(t, http.StatusOK, hbW.Code)

	listReq := httptest.NewRequest(http.MethodGet, "/streams", nil)
	listW := httptest.NewRecorder()
	router.ServeHTTP(listW, listReq)
	require.Equal(t, http.StatusOK, listW.Code)
	var list map[string]any
	require.NoError(t, json.Unmarshal(listW.Body.Bytes(), &list))
	assert.EqualValues(t, 1, list["count"])

	stopReq := httptest.NewRequest(http.MethodPost, "/stream/stop/front-door", nil)
	stopW := httptest.NewRecorder()
	router.ServeHTTP(stopW, stopReq)
	assert.Equal(t, http.StatusOK, stopW.Code)

	// UnknownStreamId on status/stop/heartbeat after removal is a 404
	// (spec.md §7).
	statusReq2 := httptest.NewRequest(http.MethodGet, "/stream/status/front-door", nil)
	statusW2 := httptest.NewRecorder()
	router.ServeHTTP(statusW2, statusReq2)
	assert.Equal(t, http.StatusNotFound, statusW2.Code)
}

func TestStreamStop_UnknownStreamIs404(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodPost, "/stream/stop/does-not-exist", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamHeartbeat_UnknownStreamIs404(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	body, _ := json.Marshal(map[string]any{"stream_id": "ghost"})
	req := httptest.NewRequest(http.MethodPost, "/stream/heartbeat", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuditEvents_SpoolOnlyModeReturnsEmpty(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/audit/events", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 0, body["count"])
}

func TestHealth_ReportsActiveStreamCount(t *testing.T) {
	s := newTestServer(t)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 0, body["active_streams"])
}
