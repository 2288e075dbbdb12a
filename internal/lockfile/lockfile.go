// Package lockfile implements the crash-detection protocol (spec.md
// §4.1.a): a per-user lockfile is written at process start and is
// deliberately NOT removed on crash, so its presence on the next
// start-up is the crash signal itself.
//
// Grounded on original_source/crates/autopilot/src/lockfile.rs
// (write_lockfile/check_and_handle_stale_lockfile/cleanup_lockfile),
// substituting Rust's OnceLock<PathBuf> process-wide registries with
// mutex-guarded package state.
package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Lockfile is the persisted crash-detection record (spec.md §3).
type Lockfile struct {
	IssueNumber      *int    `json:"issue_number,omitempty"`
	SessionID        *string `json:"session_id,omitempty"`
	TrajectoryLogPath *string `json:"rlog_path,omitempty"`
	StartedAt        string  `json:"started_at"`
}

var registry struct {
	mu         sync.Mutex
	lockfile   string
	mcpConfig  string
}

// DefaultPath returns the well-known per-user lockfile path,
// ~/.autopilotd/run.lock.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".autopilotd", "run.lock")
}

// RegisteredPath returns the lockfile path remembered by the most
// recent WriteLockfile call, for signal handlers to consult so they
// never delete it themselves.
func RegisteredPath() (string, bool) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.lockfile, registry.lockfile != ""
}

// RegisterMCPConfigPath remembers the active MCP config path for signal
// handlers to clean up on exit.
func RegisterMCPConfigPath(path string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.mcpConfig = path
}

// CleanupMCPConfig removes the registered MCP config file, if any. Safe
// to call from a signal handler or panic recovery path.
func CleanupMCPConfig() {
	registry.mu.Lock()
	path := registry.mcpConfig
	registry.mu.Unlock()

	if path == "" {
		return
	}
	_ = os.Remove(path)
}

// WriteLockfile writes the lockfile at DefaultPath() and registers its
// path. Intentionally never called from a signal handler — only from
// normal process start-up.
func WriteLockfile(issueNumber *int, sessionID *string, trajectoryLogPath *string, now time.Time) error {
	path := DefaultPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	lf := Lockfile{
		IssueNumber:       issueNumber,
		SessionID:         sessionID,
		TrajectoryLogPath: trajectoryLogPath,
		StartedAt:         now.UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	registry.mu.Lock()
	registry.lockfile = path
	registry.mu.Unlock()

	return nil
}

// CleanupLockfile removes the registered lockfile. Only clean shutdown
// calls this — crash paths (panic recovery, signal handlers) must not
// (spec.md §3 Lockfile lifecycle: "explicitly not removed on crash").
func CleanupLockfile() {
	registry.mu.Lock()
	path := registry.lockfile
	registry.mu.Unlock()

	if path == "" {
		return
	}
	_ = os.Remove(path)
}

// IssueBlocker is the collaborator that records a block action against
// an issue tracker; production wiring is outside this package's scope
// (spec.md's Non-goals exclude issue-tracker storage design).
type IssueBlocker interface {
	BlockIssue(issueNumber int, reason string) error
}

// StaleLockfileReport describes the crash notice and resume hint
// produced by CheckAndHandleStaleLockfile.
type StaleLockfileReport struct {
	Found       bool
	StartedAt   string
	IssueNumber *int
	Blocked     bool
	ResumeHint  string
}

// CheckAndHandleStaleLockfile implements spec.md §4.1.a / §8 scenario
// 6: detect an existing lockfile, block the referenced issue with a
// reason naming started_at and the trajectory log path, build a resume
// hint, then remove the stale file. A lockfile that cannot be read or
// parsed is returned as an error and left in place.
func CheckAndHandleStaleLockfile(blocker IssueBlocker) (StaleLockfileReport, error) {
	path := DefaultPath()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return StaleLockfileReport{}, nil
	}
	if err != nil {
		return StaleLockfileReport{}, err
	}

	var lf Lockfile
	if err := json.Unmarshal(data, &lf); err != nil {
		return StaleLockfileReport{}, err
	}

	report := StaleLockfileReport{
		Found:       true,
		StartedAt:   lf.StartedAt,
		IssueNumber: lf.IssueNumber,
	}

	if lf.IssueNumber != nil && blocker != nil {
		rlog := "none"
		if lf.TrajectoryLogPath != nil {
			rlog = *lf.TrajectoryLogPath
		}
		reason := fmt.Sprintf("crashed during execution at %s, trajectory at %s", lf.StartedAt, rlog)
		if err := blocker.BlockIssue(*lf.IssueNumber, reason); err == nil {
			report.Blocked = true
		}
	}

	if lf.TrajectoryLogPath != nil {
		report.ResumeHint = fmt.Sprintf("autopilotd resume %s", *lf.TrajectoryLogPath)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return report, err
	}

	return report, nil
}
