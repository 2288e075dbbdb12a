package supervisor

import (
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/boshu2/autopilotd/internal/config"
)

type fakeProcess struct {
	pid     int
	exited  bool
	success bool
}

func (p *fakeProcess) PID() int { return p.pid }
func (p *fakeProcess) TryWait() (ok bool, success bool, err error) {
	return p.exited, p.success, nil
}
func (p *fakeProcess) Signal(sig syscall.Signal) error { return nil }
func (p *fakeProcess) Kill() error                     { return nil }
func (p *fakeProcess) Wait() error                     { return nil }

func testSupervisorConfig() config.SupervisorConfig {
	return config.SupervisorConfig{
		Command:                "fake-worker",
		Model:                  "test",
		MaxBudgetSats:          100,
		MaxTurns:               5,
		PollInterval:           time.Millisecond,
		SuccessThreshold:       1 * time.Second,
		BackoffStart:           100 * time.Millisecond,
		BackoffMultiplier:      2.0,
		MaxBackoff:             5 * time.Second,
		MaxConsecutiveRestarts: 3,
		GracefulStopWindow:     5 * time.Second,
	}
}

// TestSupervisorRestartBackoff is spec.md §8 scenario 4: with
// success_threshold_ms=1000, backoff start 100ms, multiplier 2, max 5s,
// max_consecutive_restarts=3, a child that exits with code 1 after 50ms
// four times in a row produces Restarting{1,+100ms}, Restarting{2,+200ms},
// Restarting{3,+400ms}, then Failed.
func TestSupervisorRestartBackoff(t *testing.T) {
	nextPID := 100
	var spawned []int
	spawn := func(cmdPath string, args []string, env []string, dir string) (Process, error) {
		nextPID++
		spawned = append(spawned, nextPID)
		return &fakeProcess{pid: nextPID}, nil
	}

	sup := New(testSupervisorConfig(), zerolog.Nop(), spawn)

	start := time.Now()
	sup.now = func() time.Time { return start }
	if err := sup.SpawnWorker(); err != nil {
		t.Fatalf("SpawnWorker: %v", err)
	}

	childRanFor := 50 * time.Millisecond

	// Failure 1
	sup.now = func() time.Time { return start.Add(childRanFor) }
	sup.process = nil // simulate the child having already exited
	sup.HandleExit(false)
	if sup.state.Status != StatusRestarting || sup.state.Attempt != 1 || sup.state.CurrentBackoff != 100*time.Millisecond {
		t.Fatalf("after failure 1: got status=%v attempt=%d backoff=%v", sup.state.Status, sup.state.Attempt, sup.state.CurrentBackoff)
	}

	// Failure 2
	if err := sup.SpawnWorker(); err != nil {
		t.Fatalf("respawn 2: %v", err)
	}
	sup.process = nil
	sup.HandleExit(false)
	if sup.state.Status != StatusRestarting || sup.state.Attempt != 2 || sup.state.CurrentBackoff != 200*time.Millisecond {
		t.Fatalf("after failure 2: got status=%v attempt=%d backoff=%v", sup.state.Status, sup.state.Attempt, sup.state.CurrentBackoff)
	}

	// Failure 3
	if err := sup.SpawnWorker(); err != nil {
		t.Fatalf("respawn 3: %v", err)
	}
	sup.process = nil
	sup.HandleExit(false)
	if sup.state.Status != StatusRestarting || sup.state.Attempt != 3 || sup.state.CurrentBackoff != 400*time.Millisecond {
		t.Fatalf("after failure 3: got status=%v attempt=%d backoff=%v", sup.state.Status, sup.state.Attempt, sup.state.CurrentBackoff)
	}

	// Failure 4: consecutive_failures (4) > max_consecutive_restarts (3) -> Failed.
	if err := sup.SpawnWorker(); err != nil {
		t.Fatalf("respawn 4: %v", err)
	}
	sup.process = nil
	sup.HandleExit(false)
	if sup.state.Status != StatusFailed {
		t.Fatalf("after failure 4: expected Failed, got %v (reason=%q)", sup.state.Status, sup.state.Reason)
	}
	if len(spawned) != 4 {
		t.Fatalf("expected 4 spawns, got %d", len(spawned))
	}
}

func TestSupervisorCleanExitResetsBackoff(t *testing.T) {
	spawn := func(cmdPath string, args []string, env []string, dir string) (Process, error) {
		return &fakeProcess{pid: 1}, nil
	}
	sup := New(testSupervisorConfig(), zerolog.Nop(), spawn)

	start := time.Now()
	sup.now = func() time.Time { return start }
	_ = sup.SpawnWorker()

	sup.now = func() time.Time { return start.Add(10 * time.Millisecond) }
	sup.process = nil
	sup.HandleExit(false)
	if sup.state.CurrentBackoff == 0 {
		t.Fatalf("expected nonzero backoff after a failure")
	}

	_ = sup.SpawnWorker()
	sup.now = func() time.Time { return start.Add(2 * time.Second) }
	sup.process = nil
	sup.HandleExit(true)
	if sup.state.Status != StatusStopped {
		t.Fatalf("expected Stopped after clean exit, got %v", sup.state.Status)
	}
	if sup.state.CurrentBackoff != 0 || sup.state.ConsecutiveFailures != 0 {
		t.Fatalf("expected backoff reset after clean exit, got backoff=%v failures=%d", sup.state.CurrentBackoff, sup.state.ConsecutiveFailures)
	}
}

func TestCheckMemoryBands(t *testing.T) {
	spawn := func(cmdPath string, args []string, env []string, dir string) (Process, error) {
		return &fakeProcess{pid: 1}, nil
	}
	sup := New(testSupervisorConfig(), zerolog.Nop(), spawn)
	sup.memory.LowThresholdBytes = 512 * 1024 * 1024
	sup.memory.CriticalThresholdBytes = 128 * 1024 * 1024

	sup.memory.Read = func() (uint64, uint64, error) { return 1024 * 1024 * 1024, 4 * 1024 * 1024 * 1024, nil }
	if restarted := sup.CheckMemory(); restarted {
		t.Errorf("expected no restart when memory is ok")
	}

	sup.memory.Read = func() (uint64, uint64, error) { return 64 * 1024 * 1024, 4 * 1024 * 1024 * 1024, nil }
	_ = sup.SpawnWorker()
	if restarted := sup.CheckMemory(); !restarted {
		t.Errorf("expected restart signal when memory is critical")
	}
}
