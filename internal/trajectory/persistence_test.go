package trajectory

import (
	"bytes"
	"testing"
	"time"
)

func TestAppendAndLoadRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	metrics := []ActionMetric{
		{Type: ActionToolCall, ToolName: "grep", DurationMS: 10, TokensIn: 5, TokensOut: 1, Success: true, TimestampMS: 0},
		{Type: ActionThinking, DurationMS: 20, TokensOut: 3, Success: true, TimestampMS: 15},
		{Type: ActionResponse, DurationMS: 30, TokensIn: 2, TokensOut: 8, Success: true, TimestampMS: 40},
	}
	for _, m := range metrics {
		if err := AppendToLog(&buf, m); err != nil {
			t.Fatalf("AppendToLog: %v", err)
		}
	}

	tracker, err := LoadFromJSONL(&buf, time.Minute)
	if err != nil {
		t.Fatalf("LoadFromJSONL: %v", err)
	}

	snap := tracker.Snapshot()
	if snap.TotalActions != 3 {
		t.Errorf("TotalActions = %d, want 3", snap.TotalActions)
	}
	if snap.TokensIn != 7 {
		t.Errorf("TokensIn = %d, want 7", snap.TokensIn)
	}
	if snap.TokensOut != 12 {
		t.Errorf("TokensOut = %d, want 12", snap.TokensOut)
	}
}
