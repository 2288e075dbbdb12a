// Package supervisor implements the Worker Supervisor (spec.md §4.1):
// spawn/monitor/restart-with-backoff for a single supervised worker
// process, plus host-memory polling and a graceful-then-forced stop
// sequence.
//
// Grounded on original_source/crates/autopilot/src/daemon/supervisor.rs
// (WorkerSupervisor), adapted from tokio::select!-driven async methods
// into a single goroutine driven by a ticker and a shutdown channel.
package supervisor

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/boshu2/autopilotd/internal/config"
)

// Sentinel errors (spec.md §7).
var (
	ErrAlreadyRunning = fmt.Errorf("supervisor: worker already running")
	ErrNotRunning     = fmt.Errorf("supervisor: worker not running")
)

// DaemonMetrics is the status-reporting shape (spec.md §6 Metrics
// output).
type DaemonMetrics struct {
	WorkerStatus          string `json:"worker_status"`
	WorkerPID             int    `json:"worker_pid"`
	UptimeSeconds         uint64 `json:"uptime_seconds"`
	TotalRestarts         uint64 `json:"total_restarts"`
	ConsecutiveFailures   int    `json:"consecutive_failures"`
	MemoryAvailableBytes  uint64 `json:"memory_available_bytes"`
	MemoryTotalBytes      uint64 `json:"memory_total_bytes"`
}

// WorkerSupervisor owns a single supervised worker process.
type WorkerSupervisor struct {
	cfg     config.SupervisorConfig
	log     zerolog.Logger
	spawn   Spawner
	memory  *MemoryMonitor
	state   *State
	process Process
	now     func() time.Time
}

// New constructs a WorkerSupervisor. spawn is typically SpawnOSProcess;
// tests inject a fake.
func New(cfg config.SupervisorConfig, log zerolog.Logger, spawn Spawner) *WorkerSupervisor {
	return &WorkerSupervisor{
		cfg:    cfg,
		log:    log,
		spawn:  spawn,
		memory: NewMemoryMonitor(cfg.MemoryLowThresholdBytes, cfg.MemoryCriticalThresholdBytes),
		state:  NewState(),
		now:    time.Now,
	}
}

// State returns a copy of the current worker state.
func (s *WorkerSupervisor) State() State {
	return *s.state
}

// SpawnWorker starts the worker process. Returns ErrAlreadyRunning if
// one is already active.
func (s *WorkerSupervisor) SpawnWorker() error {
	if s.process != nil {
		return ErrAlreadyRunning
	}

	args := append([]string{}, s.cfg.Args...)
	args = append(args,
		"--model", s.cfg.Model,
		"--max-budget", fmt.Sprintf("%d", s.cfg.MaxBudgetSats),
		"--max-turns", fmt.Sprintf("%d", s.cfg.MaxTurns),
	)
	if s.cfg.ProjectPath != "" {
		args = append(args, "--project", s.cfg.ProjectPath)
	}

	env := append(os.Environ(), "AUTOPILOTD_SUPERVISED=1")

	s.log.Info().Str("command", s.cfg.Command).Strs("args", args).Msg("spawning worker")
	proc, err := s.spawn(s.cfg.Command, args, env, s.cfg.ProjectPath)
	if err != nil {
		return err
	}

	s.process = proc
	s.state.recordStart(proc.PID(), s.now())
	s.log.Info().Int("pid", proc.PID()).Msg("worker started")
	return nil
}

// CheckLiveness polls the worker non-blockingly, returning the exit
// success flag and true if it has exited.
func (s *WorkerSupervisor) CheckLiveness() (success bool, exited bool) {
	if s.process == nil {
		return false, false
	}

	ok, ranSuccessfully, err := s.process.TryWait()
	if err != nil {
		s.log.Warn().Err(err).Msg("error checking worker liveness")
		return false, false
	}
	if !ok {
		return false, false
	}

	s.process = nil
	return ranSuccessfully, true
}

// HandleExit applies the restart-backoff state machine to an observed
// exit (spec.md §4.1 handle_exit, exact sequence verified by scenario 4
// in supervisor_test.go).
func (s *WorkerSupervisor) HandleExit(success bool) {
	if success {
		s.state.recordCleanExit()
		s.log.Info().Msg("worker exited cleanly")
		return
	}

	if s.state.Status == StatusRunning && s.now().Sub(s.state.StartedAt) >= s.cfg.SuccessThreshold {
		s.state.resetBackoff()
	}

	s.state.recordFailure(s.cfg.BackoffStart, s.cfg.BackoffMultiplier, s.cfg.MaxBackoff)

	if s.state.canRestart(s.cfg.MaxConsecutiveRestarts) {
		s.state.Attempt = s.state.ConsecutiveFailures
		s.state.NextAttemptAt = s.now().Add(s.state.CurrentBackoff)
		s.state.Status = StatusRestarting
		s.log.Warn().
			Int("attempt", s.state.Attempt).
			Dur("backoff", s.state.CurrentBackoff).
			Msg("worker crashed, restarting")
		return
	}

	s.state.Reason = fmt.Sprintf("max consecutive restarts (%d) exceeded", s.cfg.MaxConsecutiveRestarts)
	s.state.Status = StatusFailed
	s.log.Error().Str("reason", s.state.Reason).Msg("worker supervisor giving up")
}

// CheckMemory polls host memory once and classifies it. Low is only
// logged: no cleanup of other processes is attempted. Critical stops
// the worker at once, with no cleanup and no second poll. Returns true
// if the worker was stopped; the caller respawns it.
func (s *WorkerSupervisor) CheckMemory() bool {
	status, err := s.memory.Check()
	if err != nil {
		s.log.Warn().Err(err).Msg("memory check failed")
		return false
	}

	switch status.Band {
	case MemoryOK:
		return false
	case MemoryLow:
		s.log.Warn().Str("available", FormatBytes(status.Available)).Msg("memory low")
		return false
	case MemoryCritical:
		s.log.Error().Str("available", FormatBytes(status.Available)).Msg("memory critical, stopping worker")
		s.StopWorker()
		return true
	}
	return false
}

// StopWorker sends SIGTERM to the worker's process group, waits up to
// GracefulStopWindow, then SIGKILLs if it is still alive
// (original_source/crates/autopilot/src/daemon/supervisor.rs:stop_worker).
func (s *WorkerSupervisor) StopWorker() {
	if s.process == nil {
		return
	}

	s.state.Status = StatusStopping
	pid := s.process.PID()

	s.log.Info().Int("pid", pid).Msg("sending SIGTERM to process group")
	_ = s.process.Signal(syscall.SIGTERM)

	exited := make(chan error, 1)
	go func() { exited <- s.process.Wait() }()

	select {
	case <-exited:
		s.log.Info().Msg("worker stopped gracefully")
	case <-time.After(s.cfg.GracefulStopWindow):
		s.log.Warn().Msg("worker did not stop, sending SIGKILL")
		_ = s.process.Kill()
		<-exited
	}

	s.process = nil
	s.state.Status = StatusStopped
	s.state.PID = 0
}

// RestartWorker force-restarts: stop then spawn.
func (s *WorkerSupervisor) RestartWorker() error {
	s.StopWorker()
	return s.SpawnWorker()
}

// Metrics returns the current status snapshot (spec.md §6).
func (s *WorkerSupervisor) Metrics() DaemonMetrics {
	status, _ := s.memory.Check()
	return DaemonMetrics{
		WorkerStatus:         string(s.state.Status),
		WorkerPID:            s.state.PID,
		UptimeSeconds:        uint64(s.state.uptime(s.now()).Seconds()),
		TotalRestarts:        s.state.TotalRestarts,
		ConsecutiveFailures:  s.state.ConsecutiveFailures,
		MemoryAvailableBytes: status.Available,
		MemoryTotalBytes:     status.Total,
	}
}

// Run is the cooperative monitoring loop (spec.md §4.1 run): every
// PollInterval it checks liveness and memory, honours the restart state
// machine, and breaks on shutdown.
func (s *WorkerSupervisor) Run(shutdown <-chan struct{}) error {
	if err := s.SpawnWorker(); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if success, exited := s.CheckLiveness(); exited {
				s.HandleExit(success)

				if s.state.Status == StatusRestarting {
					if delay := time.Until(s.state.NextAttemptAt); delay > 0 {
						time.Sleep(delay)
					}
					if err := s.SpawnWorker(); err != nil {
						s.log.Error().Err(err).Msg("failed to restart worker")
					}
				}
			}

			if s.CheckMemory() {
				if err := s.SpawnWorker(); err != nil {
					s.log.Error().Err(err).Msg("failed to restart worker after memory-critical stop")
				}
			}

			if s.state.Status == StatusFailed {
				s.log.Error().Str("reason", s.state.Reason).Msg("worker in failed state")
			}
		case <-shutdown:
			s.log.Info().Msg("shutdown signal received")
			s.StopWorker()
			return nil
		}
	}
}
