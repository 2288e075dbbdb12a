package lockfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func withTempHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return dir
}

func TestDefaultPath(t *testing.T) {
	dir := withTempHome(t)
	want := filepath.Join(dir, ".autopilotd", "run.lock")
	if got := DefaultPath(); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}

func TestWriteLockfileCreatesDirectoryAndRegistersPath(t *testing.T) {
	withTempHome(t)
	path := DefaultPath()
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Fatalf("expected parent dir to not exist yet")
	}

	issue := 42
	session := "sess-1"
	if err := WriteLockfile(&issue, &session, nil, time.Now()); err != nil {
		t.Fatalf("WriteLockfile: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected lockfile to exist: %v", err)
	}
	if got, ok := RegisteredPath(); !ok || got != path {
		t.Errorf("RegisteredPath() = (%q, %v), want (%q, true)", got, ok, path)
	}
}

func TestCleanupLockfileRemovesFile(t *testing.T) {
	withTempHome(t)
	issue := 1
	if err := WriteLockfile(&issue, nil, nil, time.Now()); err != nil {
		t.Fatalf("WriteLockfile: %v", err)
	}

	CleanupLockfile()

	if _, err := os.Stat(DefaultPath()); !os.IsNotExist(err) {
		t.Errorf("expected lockfile removed, stat err = %v", err)
	}
}

type fakeBlocker struct {
	blockedIssue  int
	blockedReason string
	called        bool
}

func (f *fakeBlocker) BlockIssue(issueNumber int, reason string) error {
	f.blockedIssue = issueNumber
	f.blockedReason = reason
	f.called = true
	return nil
}

// TestCheckAndHandleStaleLockfile is spec.md §8 scenario 6: a lockfile
// referencing issue 42 with a started_at and rlog_path is detected,
// blocked with a reason naming both, given a resume hint, and removed.
func TestCheckAndHandleStaleLockfile(t *testing.T) {
	withTempHome(t)

	issue := 42
	rlog := "/tmp/t.rlog"
	startedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := WriteLockfile(&issue, nil, &rlog, startedAt); err != nil {
		t.Fatalf("WriteLockfile: %v", err)
	}

	blocker := &fakeBlocker{}
	report, err := CheckAndHandleStaleLockfile(blocker)
	if err != nil {
		t.Fatalf("CheckAndHandleStaleLockfile: %v", err)
	}

	if !report.Found {
		t.Fatalf("expected Found=true")
	}
	if !blocker.called || blocker.blockedIssue != 42 {
		t.Fatalf("expected issue 42 to be blocked, got called=%v issue=%d", blocker.called, blocker.blockedIssue)
	}
	if !report.Blocked {
		t.Errorf("expected report.Blocked=true")
	}
	wantReasonSubstr := "2025-01-01T00:00:00Z"
	if !contains(blocker.blockedReason, wantReasonSubstr) || !contains(blocker.blockedReason, rlog) {
		t.Errorf("reason %q should reference started_at and rlog path", blocker.blockedReason)
	}
	if report.ResumeHint == "" || !contains(report.ResumeHint, rlog) {
		t.Errorf("expected resume hint referencing %q, got %q", rlog, report.ResumeHint)
	}

	if _, statErr := os.Stat(DefaultPath()); !os.IsNotExist(statErr) {
		t.Errorf("expected stale lockfile removed after handling")
	}
}

func TestCheckAndHandleStaleLockfileWhenNoneExists(t *testing.T) {
	withTempHome(t)

	report, err := CheckAndHandleStaleLockfile(&fakeBlocker{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Found {
		t.Errorf("expected Found=false when no lockfile exists")
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
