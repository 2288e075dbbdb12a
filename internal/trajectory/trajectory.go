// Package trajectory implements the Trajectory Tracker (spec.md §4.4):
// an append-only ActionMetric log, atomic aggregate counters, and a
// sliding-window deque used to derive actions-per-minute (APM).
//
// Grounded on original_source/crates/autopilot/src/nip_sa_trajectory.rs
// (action/step accounting) and apps/desktop/src-tauri/src/apm/analyzer.rs
// (multi-window APM reporting, added here as a SPEC_FULL.md
// supplemented feature alongside the core single-window apm()).
package trajectory

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// ActionType classifies an ActionMetric (spec.md §3 ActionMetric).
type ActionType string

const (
	ActionToolCall   ActionType = "tool_call"
	ActionThinking   ActionType = "thinking"
	ActionResponse   ActionType = "response"
	ActionPlanning   ActionType = "planning"
	ActionDelegation ActionType = "delegation"
)

// ActionMetric is a single recorded action.
type ActionMetric struct {
	Type        ActionType `json:"type"`
	ToolName    string     `json:"tool_name,omitempty"` // only meaningful for ActionToolCall
	DurationMS  int64      `json:"duration_ms"`
	TokensIn    int64      `json:"tokens_in"`
	TokensOut   int64      `json:"tokens_out"`
	Success     bool       `json:"success"`
	TimestampMS int64      `json:"timestamp_ms"` // relative to session start
}

// Snapshot is the derived view returned by Tracker.Snapshot().
type Snapshot struct {
	APM               float64
	WindowCount       int
	TotalActions      int64
	TokensIn          int64
	TokensOut         int64
	CumulativeDuration time.Duration
	SessionDuration   time.Duration
	AvgActionDuration time.Duration
}

// Tracker accumulates ActionMetrics for a single session.
type Tracker struct {
	windowSize time.Duration
	sessionStart time.Time

	// Atomic aggregate counters (spec.md §9: integers can be lock-free).
	totalActions       int64
	tokensIn           int64
	tokensOut          int64
	cumulativeDuration int64 // nanoseconds

	// Sliding window requires a lock: eviction is order-dependent.
	mu     sync.Mutex
	window *list.List // of *ActionMetric, oldest at Front

	// before_tool bookkeeping, keyed by (sessionID, toolName).
	toolStarts   sync.Map // map[string]time.Time
	now          func() time.Time
}

// New creates a Tracker with the given sliding-window size.
func New(windowSize time.Duration) *Tracker {
	return &Tracker{
		windowSize:   windowSize,
		sessionStart: time.Now(),
		window:       list.New(),
		now:          time.Now,
	}
}

// Record appends a metric: increments atomic aggregates, pushes it to
// the window deque, then evicts stale entries from the front.
func (t *Tracker) Record(m ActionMetric) {
	atomic.AddInt64(&t.totalActions, 1)
	atomic.AddInt64(&t.tokensIn, m.TokensIn)
	atomic.AddInt64(&t.tokensOut, m.TokensOut)
	atomic.AddInt64(&t.cumulativeDuration, m.DurationMS*int64(time.Millisecond))

	t.mu.Lock()
	defer t.mu.Unlock()
	mCopy := m
	t.window.PushBack(&mCopy)
	t.evictLocked(m.TimestampMS)
}

// evictLocked removes entries whose timestamp is older than
// (nowMS - windowSize); caller must hold t.mu.
func (t *Tracker) evictLocked(nowMS int64) {
	windowMS := t.windowSize.Milliseconds()
	for e := t.window.Front(); e != nil; {
		metric := e.Value.(*ActionMetric)
		if nowMS-metric.TimestampMS <= windowMS {
			break
		}
		next := e.Next()
		t.window.Remove(e)
		e = next
	}
}

// APM returns actions-per-minute over the current sliding window.
func (t *Tracker) APM() float64 {
	t.mu.Lock()
	n := t.window.Len()
	t.mu.Unlock()

	minutes := t.windowSize.Minutes()
	if minutes == 0 {
		return 0
	}
	return float64(n) / minutes
}

// Snapshot returns the full derived view of the tracker's state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	n := t.window.Len()
	t.mu.Unlock()

	total := atomic.LoadInt64(&t.totalActions)
	cum := time.Duration(atomic.LoadInt64(&t.cumulativeDuration))

	var avg time.Duration
	if total > 0 {
		avg = cum / time.Duration(total)
	}

	minutes := t.windowSize.Minutes()
	var apm float64
	if minutes > 0 {
		apm = float64(n) / minutes
	}

	return Snapshot{
		APM:                apm,
		WindowCount:        n,
		TotalActions:       total,
		TokensIn:           atomic.LoadInt64(&t.tokensIn),
		TokensOut:          atomic.LoadInt64(&t.tokensOut),
		CumulativeDuration: cum,
		SessionDuration:    t.now().Sub(t.sessionStart),
		AvgActionDuration:  avg,
	}
}

// BeforeTool records a start timestamp keyed by (sessionID, toolName),
// to be consumed by a matching AfterTool call.
func (t *Tracker) BeforeTool(sessionID, toolName string) {
	t.toolStarts.Store(sessionID+"|"+toolName, t.now())
}

// AfterTool computes the elapsed duration since the matching BeforeTool
// call and records a ToolCall action. If no matching start exists,
// duration is recorded as 0.
func (t *Tracker) AfterTool(sessionID, toolName string, tokensIn, tokensOut int64, success bool) {
	key := sessionID + "|" + toolName
	var duration time.Duration
	if v, ok := t.toolStarts.LoadAndDelete(key); ok {
		duration = t.now().Sub(v.(time.Time))
	}
	t.Record(ActionMetric{
		Type:        ActionToolCall,
		ToolName:    toolName,
		DurationMS:  duration.Milliseconds(),
		TokensIn:    tokensIn,
		TokensOut:   tokensOut,
		Success:     success,
		TimestampMS: t.now().Sub(t.sessionStart).Milliseconds(),
	})
}

// RecordThinking records a non-tool thinking action.
func (t *Tracker) RecordThinking(duration time.Duration, tokensOut int64) {
	t.Record(ActionMetric{
		Type:        ActionThinking,
		DurationMS:  duration.Milliseconds(),
		TokensOut:   tokensOut,
		Success:     true,
		TimestampMS: t.now().Sub(t.sessionStart).Milliseconds(),
	})
}

// RecordResponse records a non-tool response action.
func (t *Tracker) RecordResponse(duration time.Duration, tokensIn, tokensOut int64) {
	t.Record(ActionMetric{
		Type:        ActionResponse,
		DurationMS:  duration.Milliseconds(),
		TokensIn:    tokensIn,
		TokensOut:   tokensOut,
		Success:     true,
		TimestampMS: t.now().Sub(t.sessionStart).Milliseconds(),
	})
}

// WindowedAPM reports APM over several named windows from the same
// append-only log, supplementing the single sliding-window apm() per
// the multi-window reporting style in apm/analyzer.rs. It does not
// affect the core sliding-window semantics; it walks the current window
// deque once per requested duration, plus the event stream implicitly
// bounded by windowSize (entries older than windowSize are already
// evicted, so windows larger than the tracker's configured windowSize
// cannot see further into the past than that).
func (t *Tracker) WindowedAPM(windows []time.Duration) map[time.Duration]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	nowMS := t.now().Sub(t.sessionStart).Milliseconds()
	result := make(map[time.Duration]float64, len(windows))
	for _, w := range windows {
		wMS := w.Milliseconds()
		count := 0
		for e := t.window.Back(); e != nil; e = e.Prev() {
			m := e.Value.(*ActionMetric)
			if nowMS-m.TimestampMS > wMS {
				break
			}
			count++
		}
		minutes := w.Minutes()
		if minutes == 0 {
			result[w] = 0
			continue
		}
		result[w] = float64(count) / minutes
	}
	return result
}
