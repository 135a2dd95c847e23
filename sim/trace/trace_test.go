package trace

import (
	"testing"
)

func TestSimulationTrace_RecordDispatch_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN a dispatch record is recorded
	st.RecordDispatch(DispatchRecord{
		RequestID: 1,
		Clock:     12.5,
		Source:    "renewable",
		Available: []string{"renewable", "battery", "nonrenewable"},
	})

	// THEN the trace contains one dispatch record with correct data
	if len(st.Dispatches) != 1 {
		t.Fatalf("expected 1 dispatch, got %d", len(st.Dispatches))
	}
	if st.Dispatches[0].RequestID != 1 {
		t.Errorf("expected request ID 1, got %d", st.Dispatches[0].RequestID)
	}
	if st.Dispatches[0].Source != "renewable" {
		t.Errorf("expected source renewable, got %s", st.Dispatches[0].Source)
	}
}

func TestSimulationTrace_RecordDropAndOutage_AppendRecords(t *testing.T) {
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	st.RecordDrop(DropRecord{RequestID: 7, Clock: 20, Deadline: 18, Lateness: 2})
	st.RecordOutage(OutageRecord{Source: "battery", Clock: 3, Available: false})
	st.RecordOutage(OutageRecord{Source: "battery", Clock: 9, Available: true})

	if len(st.Drops) != 1 {
		t.Fatalf("expected 1 drop, got %d", len(st.Drops))
	}
	if len(st.Outages) != 2 {
		t.Fatalf("expected 2 outage transitions, got %d", len(st.Outages))
	}
	if st.Outages[1].Available != true {
		t.Error("expected second transition to restore availability")
	}
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"", true},
		{"none", true},
		{"decisions", true},
		{"verbose", false},
	}
	for _, tt := range tests {
		if got := IsValidTraceLevel(tt.level); got != tt.valid {
			t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.valid)
		}
	}
}

func TestTraceLevel_Enabled(t *testing.T) {
	if TraceLevelNone.Enabled() {
		t.Error("none must not be enabled")
	}
	if TraceLevel("").Enabled() {
		t.Error("empty level must not be enabled")
	}
	if !TraceLevelDecisions.Enabled() {
		t.Error("decisions must be enabled")
	}
}
