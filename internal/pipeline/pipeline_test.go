package pipeline

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bytes"

	"github.com/doorwatch/doorwatch/internal/bus"
	"github.com/doorwatch/doorwatch/internal/detect"
	"github.com/doorwatch/doorwatch/internal/llm"
	"github.com/doorwatch/doorwatch/internal/threat"
	"github.com/doorwatch/doorwatch/internal/tracking"
	"github.com/doorwatch/doorwatch/internal/zones"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int       { return &i }
func floatPtr(f float64) *float64 { return &f }

func testFrame(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newTestEngine() (*tracking.Engine, *zones.Registry) {
	reg := zones.NewRegistry()
	reg.Update("cam1", []zones.Zone{{ID: "z1", Name: "door", CameraID: "cam1", X1: 4, Y1: 2, X2: 530, Y2: 388}})
	return tracking.NewEngine(reg), reg
}

func TestPipeline_SingleCleanEntry(t *testing.T) {
	engine, _ := newTestEngine()
	person := &detect.Fake{
		NextPerson:  []detect.Detection{{Box: detect.Box{X1: 50, Y1: 50, X2: 450, Y2: 380}, Label: "Person (0.90)", Confidence: 0.9, TrackID: intPtr(1)}},
		NextTracked: []detect.TrackedTuple{{TrackID: 1, Box: detect.Box{X1: 50, Y1: 50, X2: 450, Y2: 380}, Confidence: 0.9}},
		NextImgW:    1280,
		NextImgH:    720,
	}
	p := &Pipeline{PersonDetector: person, Engine: engine, Bus: bus.NewPublisher(nil)}
	frame := testFrame(t)

	var resp Response
	var err error
	for i := 0; i < 5; i++ {
		resp, err = p.Process(context.Background(), Request{StreamID: "s1", Frame: frame, Confidence: 0.5})
		require.NoError(t, err)
	}

	assert.Equal(t, 1, resp.EntryCount)
	assert.Equal(t, 1, resp.CurrentOccupancy)
	assert.Equal(t, 0, resp.ExitCount)
	assert.Nil(t, resp.Threats)
}

func TestPipeline_ThreatWithoutAPIKeyReportsThreatsOnly(t *testing.T) {
	engine, _ := newTestEngine()
	person := &detect.Fake{NextImgW: 1280, NextImgH: 720}
	suspicious := &detect.Fake{
		NextSuspicious: []detect.Detection{{Box: detect.Box{X1: 10, Y1: 10, X2: 60, Y2: 60}, Label: "knife", Confidence: 0.8}},
	}
	p := &Pipeline{
		PersonDetector:     person,
		SuspiciousDetector: suspicious,
		Engine:             engine,
		ThreatDefaults:     threat.DefaultConfig(),
		Adjudicator:        llm.NewAdjudicator(llm.Config{}),
		Bus:                bus.NewPublisher(nil),
	}

	resp, err := p.Process(context.Background(), Request{StreamID: "s1", Frame: testFrame(t), Confidence: 0.5})
	require.NoError(t, err)

	require.Len(t, resp.Threats, 1)
	assert.Equal(t, threat.CategoryThreat, resp.Threats[0].Category)
	require.NotNil(t, resp.HasThreat)
	assert.True(t, *resp.HasThreat)
	assert.Nil(t, resp.LLMTriggered)
}

func TestPipeline_LLMFalsePositiveClearsHasThreat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, _ := json.Marshal(struct {
			FalsePositive bool    `json:"false_positive"`
			Confidence    float64 `json:"confidence"`
			Reason        string  `json:"reason"`
		}{FalsePositive: true, Confidence: 0.95, Reason: "toy knife"})
		_ = json.NewEncoder(w).Encode(struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}{Choices: []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}{{Message: struct {
			Content string `json:"content"`
		}{Content: string(content)}}}})
	}))
	defer srv.Close()

	engine, _ := newTestEngine()
	person := &detect.Fake{NextImgW: 1280, NextImgH: 720}
	suspicious := &detect.Fake{
		NextSuspicious: []detect.Detection{{Box: detect.Box{X1: 10, Y1: 10, X2: 60, Y2: 60}, Label: "knife", Confidence: 0.8}},
	}
	adj := llm.NewAdjudicator(llm.Config{APIKey: "sk-test", BaseURL: srv.URL, Cooldown: time.Minute, AutoOnThreat: true})
	p := &Pipeline{
		PersonDetector:     person,
		SuspiciousDetector: suspicious,
		Engine:             engine,
		ThreatDefaults:     threat.DefaultConfig(),
		Adjudicator:        adj,
		Bus:                bus.NewPublisher(nil),
	}

	resp, err := p.Process(context.Background(), Request{StreamID: "A", Frame: testFrame(t), Confidence: 0.5})
	require.NoError(t, err)

	require.NotNil(t, resp.HasThreat)
	assert.False(t, *resp.HasThreat)
	require.Len(t, resp.Threats, 1)
	require.NotNil(t, resp.Threats[0].LLMFalsePositive)
	assert.True(t, *resp.Threats[0].LLMFalsePositive)
	assert.Equal(t, "toy knife", resp.LLMReason)
	require.NotNil(t, resp.LLMTriggered)
	assert.True(t, *resp.LLMTriggered)
}

func TestPipeline_SecondDetectWithinCooldownIsBlocked(t *testing.T) {
	callCount := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		content, _ := json.Marshal(struct {
			FalsePositive bool   `json:"false_positive"`
			Reason        string `json:"reason"`
		}{FalsePositive: false, Reason: "real knife"})
		_ = json.NewEncoder(w).Encode(struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}{Choices: []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		}{{Message: struct {
			Content string `json:"content"`
		}{Content: string(content)}}}})
	}))
	defer srv.Close()

	engine, _ := newTestEngine()
	person := &detect.Fake{NextImgW: 1280, NextImgH: 720}
	suspicious := &detect.Fake{
		NextSuspicious: []detect.Detection{{Box: detect.Box{X1: 10, Y1: 10, X2: 60, Y2: 60}, Label: "knife", Confidence: 0.8}},
	}
	adj := llm.NewAdjudicator(llm.Config{APIKey: "sk-test", BaseURL: srv.URL, Cooldown: 10 * time.Second, AutoOnThreat: true})
	p := &Pipeline{
		PersonDetector:     person,
		SuspiciousDetector: suspicious,
		Engine:             engine,
		ThreatDefaults:     threat.DefaultConfig(),
		Adjudicator:        adj,
		Bus:                bus.NewPublisher(nil),
	}

	first, err := p.Process(context.Background(), Request{StreamID: "A", Frame: testFrame(t), Confidence: 0.5})
	require.NoError(t, err)
	require.NotNil(t, first.LLMTriggered)
	assert.True(t, *first.LLMTriggered)

	second, err := p.Process(context.Background(), Request{StreamID: "A", Frame: testFrame(t), Confidence: 0.5})
	require.NoError(t, err)

	require.NotNil(t, second.LLMTriggered)
	assert.False(t, *second.LLMTriggered)
	assert.Contains(t, second.LLMError, "cooldown active:")
	assert.Contains(t, second.LLMReason, "knife")
	assert.Equal(t, 1, callCount)
}

func TestPipeline_PersonDetectorErrorPropagates(t *testing.T) {
	engine, _ := newTestEngine()
	person := &detect.Fake{Err: assert.AnError}
	p := &Pipeline{PersonDetector: person, Engine: engine, Bus: bus.NewPublisher(nil)}

	_, err := p.Process(context.Background(), Request{StreamID: "s1", Frame: testFrame(t), Confidence: 0.5})
	assert.Error(t, err)
}

func TestEffectiveRunIoU(t *testing.T) {
	assert.Equal(t, 0.5, effectiveRunIoU(nil, nil))
	assert.Equal(t, 0.3, effectiveRunIoU(floatPtr(0.3), floatPtr(0.6)))
	assert.Equal(t, 0.2, effectiveRunIoU(floatPtr(0.9), floatPtr(0.2)))
}

func TestTopThreeSummary(t *testing.T) {
	boxes := []threat.Box{
		{Detection: detect.Detection{Label: "knife", Confidence: 0.9}},
		{Detection: detect.Detection{Label: "gun", Confidence: 0.95}},
		{Detection: detect.Detection{Label: "bag", Confidence: 0.3}},
		{Detection: detect.Detection{Label: "phone", Confidence: 0.1}},
	}
	summary := topThreeSummary(boxes, nil)
	assert.Equal(t, "detected gun (0.95), knife (0.90), bag (0.30)", summary)
}
