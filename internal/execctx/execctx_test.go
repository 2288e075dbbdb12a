package execctx

import (
	"testing"
	"time"
)

func TestModeRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModeNone, ModeLocal, ModeContainer} {
		parsed, err := ParseMode(m.String())
		if err != nil {
			t.Fatalf("ParseMode(%s) error = %v", m, err)
		}
		if parsed != m {
			t.Errorf("ParseMode(%s) = %s, want %s", m, parsed, m)
		}
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Error("ParseMode(bogus) = nil error, want error")
	}
}

func TestStateRoundTrip(t *testing.T) {
	all := []State{StateUnscheduled, StateQueued, StateProvisioning, StateRunning,
		StateSucceeded, StateFailed, StateLost, StateCancelled}
	for _, s := range all {
		parsed, err := ParseState(s.String())
		if err != nil {
			t.Fatalf("ParseState(%s) error = %v", s, err)
		}
		if parsed != s {
			t.Errorf("ParseState(%s) = %s, want %s", s, parsed, s)
		}
	}
	if _, err := ParseState("bogus"); err == nil {
		t.Error("ParseState(bogus) = nil error, want error")
	}
}

func TestCanTransitionToHappyPath(t *testing.T) {
	steps := []State{StateQueued, StateProvisioning, StateRunning, StateSucceeded}
	from := StateUnscheduled
	for _, to := range steps {
		if !CanTransitionTo(from, to) {
			t.Errorf("CanTransitionTo(%s, %s) = false, want true", from, to)
		}
		from = to
	}
}

func TestCanTransitionToIllegalEdges(t *testing.T) {
	cases := []struct {
		from, to State
	}{
		{StateUnscheduled, StateRunning},
		{StateUnscheduled, StateProvisioning},
		{StateQueued, StateRunning},
		{StateSucceeded, StateRunning},
		{StateFailed, StateQueued},
		{StateRunning, StateQueued},
	}
	for _, c := range cases {
		if CanTransitionTo(c.from, c.to) {
			t.Errorf("CanTransitionTo(%s, %s) = true, want false", c.from, c.to)
		}
	}
}

func TestCanTransitionToCancelAndLostFromAnyNonTerminal(t *testing.T) {
	for _, from := range []State{StateUnscheduled, StateQueued, StateProvisioning, StateRunning} {
		if !CanTransitionTo(from, StateCancelled) {
			t.Errorf("CanTransitionTo(%s, Cancelled) = false, want true", from)
		}
		if !CanTransitionTo(from, StateLost) {
			t.Errorf("CanTransitionTo(%s, Lost) = false, want true", from)
		}
	}
}

func TestCanTransitionToTerminalRetry(t *testing.T) {
	for _, from := range []State{StateSucceeded, StateFailed, StateLost, StateCancelled} {
		if !CanTransitionTo(from, StateUnscheduled) {
			t.Errorf("CanTransitionTo(%s, Unscheduled) = false, want true", from)
		}
		if CanTransitionTo(from, StateQueued) {
			t.Errorf("CanTransitionTo(%s, Queued) = true, want false", from)
		}
	}
}

func TestTransitionMutatesOnlyOnSuccess(t *testing.T) {
	c := New()
	now := time.Now()

	if err := c.Transition(StateRunning, now); err == nil {
		t.Fatal("Transition(Running) from Unscheduled should fail")
	}
	if c.State != StateUnscheduled {
		t.Errorf("illegal transition mutated state to %s", c.State)
	}

	if err := c.Transition(StateQueued, now); err != nil {
		t.Fatalf("Transition(Queued) error = %v", err)
	}
	if err := c.Transition(StateProvisioning, now); err != nil {
		t.Fatalf("Transition(Provisioning) error = %v", err)
	}
	if err := c.Transition(StateRunning, now); err != nil {
		t.Fatalf("Transition(Running) error = %v", err)
	}
	if c.StartedAt == nil {
		t.Error("StartedAt not stamped on entering Running")
	}

	done := now.Add(time.Second)
	if err := c.Transition(StateSucceeded, done); err != nil {
		t.Fatalf("Transition(Succeeded) error = %v", err)
	}
	if c.FinishedAt == nil {
		t.Error("FinishedAt not stamped on terminal transition")
	}
	if !c.IsComplete() {
		t.Error("IsComplete() = false after Succeeded")
	}
	if c.Duration() != time.Second {
		t.Errorf("Duration() = %v, want 1s", c.Duration())
	}
}

func TestTruncateOutput(t *testing.T) {
	small := "hello"
	if TruncateOutput(small) != small {
		t.Error("TruncateOutput should not alter small strings")
	}

	big := make([]byte, MaxCaptureBytes+100)
	for i := range big {
		big[i] = byte('a' + i%26)
	}
	tail := string(big[100:])
	got := TruncateOutput(string(big))
	if len(got) != MaxCaptureBytes {
		t.Fatalf("TruncateOutput length = %d, want %d", len(got), MaxCaptureBytes)
	}
	if got != tail {
		t.Error("TruncateOutput did not keep the tail of the capture")
	}
}
