package trajectory

import (
	"testing"
	"time"
)

func TestRecordAccumulatesAggregates(t *testing.T) {
	tr := New(time.Minute)
	tr.Record(ActionMetric{Type: ActionToolCall, DurationMS: 100, TokensIn: 5, TokensOut: 10, Success: true, TimestampMS: 0})
	tr.Record(ActionMetric{Type: ActionResponse, DurationMS: 200, TokensIn: 1, TokensOut: 2, Success: true, TimestampMS: 1000})

	snap := tr.Snapshot()
	if snap.TotalActions != 2 {
		t.Errorf("TotalActions = %d, want 2", snap.TotalActions)
	}
	if snap.TokensIn != 6 || snap.TokensOut != 12 {
		t.Errorf("tokens in/out = %d/%d, want 6/12", snap.TokensIn, snap.TokensOut)
	}
	if snap.WindowCount != 2 {
		t.Errorf("WindowCount = %d, want 2", snap.WindowCount)
	}
	wantAvg := (100*time.Millisecond + 200*time.Millisecond) / 2
	if snap.AvgActionDuration != wantAvg {
		t.Errorf("AvgActionDuration = %v, want %v", snap.AvgActionDuration, wantAvg)
	}
}

func TestSnapshotZeroActionsAvgIsZero(t *testing.T) {
	tr := New(time.Minute)
	snap := tr.Snapshot()
	if snap.AvgActionDuration != 0 {
		t.Errorf("AvgActionDuration = %v, want 0 with no actions", snap.AvgActionDuration)
	}
	if snap.TotalActions != 0 {
		t.Errorf("TotalActions = %d, want 0", snap.TotalActions)
	}
}

// TestSlidingWindowEviction verifies the invariant from spec.md §8:
// every member of the window satisfies now - m.timestamp_ms <= window_size.
func TestSlidingWindowEviction(t *testing.T) {
	tr := New(1 * time.Second) // 1000ms window

	tr.Record(ActionMetric{Type: ActionThinking, TimestampMS: 0})
	tr.Record(ActionMetric{Type: ActionThinking, TimestampMS: 500})
	// This push is far enough ahead that both earlier entries must evict:
	// 1600-0 and 1600-500 both exceed the 1000ms window.
	tr.Record(ActionMetric{Type: ActionThinking, TimestampMS: 1600})

	snap := tr.Snapshot()
	if snap.WindowCount != 1 {
		t.Errorf("WindowCount = %d, want 1 after eviction", snap.WindowCount)
	}
	if snap.TotalActions != 3 {
		t.Errorf("TotalActions = %d, want 3 (aggregate counters never evict)", snap.TotalActions)
	}
}

func TestAPMComputation(t *testing.T) {
	tr := New(2 * time.Minute)
	for i := 0; i < 10; i++ {
		tr.Record(ActionMetric{Type: ActionToolCall, TimestampMS: int64(i)})
	}
	got := tr.APM()
	want := 10.0 / 2.0 // 10 actions / 2-minute window
	if got != want {
		t.Errorf("APM() = %v, want %v", got, want)
	}
}

func TestBeforeAfterToolRecordsDuration(t *testing.T) {
	tr := New(time.Minute)
	fakeNow := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fakeNow }

	tr.BeforeTool("sess-1", "bash")
	fakeNow = fakeNow.Add(250 * time.Millisecond)
	tr.AfterTool("sess-1", "bash", 3, 7, true)

	snap := tr.Snapshot()
	if snap.TotalActions != 1 {
		t.Fatalf("TotalActions = %d, want 1", snap.TotalActions)
	}
	if snap.TokensIn != 3 || snap.TokensOut != 7 {
		t.Errorf("tokens = %d/%d, want 3/7", snap.TokensIn, snap.TokensOut)
	}
}

func TestAfterToolWithoutBeforeRecordsZeroDuration(t *testing.T) {
	tr := New(time.Minute)
	tr.AfterTool("sess-2", "grep", 1, 1, true)
	snap := tr.Snapshot()
	if snap.TotalActions != 1 {
		t.Fatalf("TotalActions = %d, want 1", snap.TotalActions)
	}
}

func TestWindowedAPM(t *testing.T) {
	tr := New(24 * time.Hour)
	fakeNow := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return fakeNow }
	tr.sessionStart = fakeNow.Add(-24 * time.Hour)

	// 5 actions 2h ago (inside 6h, outside 1h), then 5 in the last hour,
	// recorded oldest first.
	for i := 0; i < 5; i++ {
		ts := tr.now().Sub(tr.sessionStart) - 2*time.Hour
		tr.Record(ActionMetric{Type: ActionToolCall, TimestampMS: ts.Milliseconds()})
	}
	tr.now = func() time.Time { return fakeNow }
	for i := 0; i < 5; i++ {
		tr.Record(ActionMetric{Type: ActionToolCall, TimestampMS: tr.now().Sub(tr.sessionStart).Milliseconds() - int64(4-i)*1000})
	}

	// APM is a per-minute rate: 5 actions over 60 minutes, 10 over 360.
	result := tr.WindowedAPM([]time.Duration{time.Hour, 6 * time.Hour})
	if want := 5.0 / 60.0; result[time.Hour] != want {
		t.Errorf("WindowedAPM[1h] = %v, want %v", result[time.Hour], want)
	}
	if want := 10.0 / 360.0; result[6*time.Hour] != want {
		t.Errorf("WindowedAPM[6h] = %v, want %v", result[6*time.Hour], want)
	}
}
