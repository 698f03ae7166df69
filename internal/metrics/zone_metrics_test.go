package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordEntryAndExit_IncrementPerCameraZone(t *testing.T) {
	RecordEntry("cam-1", "front-door")
	RecordEntry("cam-1", "front-door")
	RecordExit("cam-1", "front-door")

	assert.Equal(t, float64(2), testutil.ToFloat64(ZoneEntriesTotal.WithLabelValues("cam-1", "front-door")))
	assert.Equal(t, float64(1), testutil.ToFloat64(ZoneExitsTotal.WithLabelValues("cam-1", "front-door")))
}

func TestSetActiveStreams(t *testing.T) {
	SetActiveStreams(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(ActiveStreams))
}

func TestRecordLLMCooldownBlocked(t *testing.T) {
	before := testutil.ToFloat64(LLMCooldownBlockedTotal)
	RecordLLMCooldownBlocked()
	assert.Equal(t, before+1, testutil.ToFloat64(LLMCooldownBlockedTotal))
}
