package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupForConsumer_Parity(t *testing.T) {
	for id, want := range map[int]string{0: "A", 1: "B", 2: "A", 5: "B"} {
		assert.Equal(t, want, GroupForConsumer(id), "consumer %d", id)
	}
}

func TestNewRequest_DerivesGroup(t *testing.T) {
	req := NewRequest(7, 3, 1.5, 0.9, PriorityHigh, 4.0)

	assert.Equal(t, int64(7), req.ID)
	assert.Equal(t, "B", req.Group)
	assert.False(t, req.Dispatched)
	assert.False(t, req.Finished)
	assert.Equal(t, 0.0, req.WaitTime(), "undispatched request has no wait")
	assert.Equal(t, 0.0, req.ResponseTime(), "unfinished request has no response")
}

func TestRequest_WaitAndResponse(t *testing.T) {
	// GIVEN a request that arrived at 2, started at 5 and finished at 9
	req := newTestRequest(1, 0, 2, PriorityLow, 20)
	req.StartServiceTime, req.Dispatched = 5, true
	req.FinishTime, req.Finished = 9, true

	// THEN wait and response are measured from arrival
	assert.Equal(t, 3.0, req.WaitTime())
	assert.Equal(t, 7.0, req.ResponseTime())
	assert.Contains(t, req.String(), "ID: 1")
}

func TestIsValidSource(t *testing.T) {
	for _, src := range AllSources {
		assert.True(t, IsValidSource(src), string(src))
	}
	assert.False(t, IsValidSource("solar"))
	assert.True(t, SourceRenewable.intermittent())
	assert.True(t, SourceBattery.intermittent())
	assert.False(t, SourceNonRenewable.intermittent())
}
