// Package task implements Task/Subtask types and decomposition
// heuristics (spec.md §3, §4.5).
//
// Grounded on original_source/crates/agent/src/decompose.rs: the same
// regex-keyword heuristics, decomposition rules, subtask id format, and
// SubtaskList persistence shape, ported from Rust's regex crate to Go's
// regexp package and from serde_json to encoding/json.
package task

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Task is the unit of work a user or orchestrator submits.
type Task struct {
	ID          string
	Title       string
	Description string
	Status      string
}

// SubtaskStatus is the lifecycle state of a single Subtask.
type SubtaskStatus string

const (
	SubtaskPending    SubtaskStatus = "pending"
	SubtaskInProgress SubtaskStatus = "in_progress"
	SubtaskDone       SubtaskStatus = "done"
	SubtaskVerified   SubtaskStatus = "verified"
	SubtaskFailed     SubtaskStatus = "failed"
)

// Subtask is one decomposed unit of a Task.
type Subtask struct {
	ID          string        `json:"id"`
	Text        string        `json:"text"`
	Status      SubtaskStatus `json:"status"`
	Error       string        `json:"error,omitempty"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	VerifiedAt  *time.Time    `json:"verified_at,omitempty"`
}

// SubtaskList is the persisted decomposition record for one Task.
type SubtaskList struct {
	TaskID    string     `json:"task_id"`
	TaskTitle string     `json:"task_title"`
	Subtasks  []Subtask  `json:"subtasks"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// generateSubtaskID formats a 1-based, zero-padded subtask id.
func generateSubtaskID(taskID string, index int) string {
	return fmt.Sprintf("%s-sub-%03d", taskID, index+1)
}

var (
	filePattern   = regexp.MustCompile(`(?i)\b(file|component|module|service|class|function|test|spec)\b`)
	actionPattern = regexp.MustCompile(`(?i)\b(add|create|update|modify|fix|remove|delete|implement|refactor|test|document)\b`)
	testPattern   = regexp.MustCompile(`(?i)\b(tests?|specs?|coverage|verify|validate|unit test|e2e)\b`)
	docsPattern   = regexp.MustCompile(`(?i)\b(docs?|documentation|readme|comments?|jsdoc|tsdoc)\b`)
)

// Heuristics holds the analysis results for a Task's title+description.
type Heuristics struct {
	HasMultipleTargets bool
	HasMultipleActions bool
	IsComplex          bool
	RequiresTesting    bool
	RequiresDocs       bool
}

// Analyze computes decomposition heuristics from a Task's title and
// description (spec.md §4.5).
func Analyze(t Task) Heuristics {
	text := strings.ToLower(t.Title + " " + t.Description)

	targetMatches := filePattern.FindAllString(text, -1)

	actionMatches := actionPattern.FindAllString(text, -1)
	distinct := make(map[string]struct{}, len(actionMatches))
	for _, m := range actionMatches {
		distinct[strings.ToLower(m)] = struct{}{}
	}

	return Heuristics{
		HasMultipleTargets: len(targetMatches) > 2,
		HasMultipleActions: len(distinct) > 2,
		IsComplex:          len(t.Description) > 500,
		RequiresTesting:    testPattern.MatchString(text),
		RequiresDocs:       docsPattern.MatchString(text),
	}
}

// Options configures decomposition.
type Options struct {
	MaxSubtasks int // default 5 when <= 0
	ForceSingle bool
}

// DecomposeByRules applies the fixed decomposition rules (spec.md §4.5)
// without the max_subtasks cap; DecomposeTask applies the cap.
func DecomposeByRules(t Task) []string {
	h := Analyze(t)

	if !h.HasMultipleActions && !h.IsComplex && !h.HasMultipleTargets {
		return []string{strings.TrimSpace(t.Title + "\n\n" + t.Description)}
	}

	var texts []string
	texts = append(texts, fmt.Sprintf("Implement: %s\n\n%s", t.Title, t.Description))

	if h.RequiresTesting && !strings.Contains(strings.ToLower(t.Title), "test") {
		texts = append(texts, fmt.Sprintf("Add tests for: %s\n\nVerify the implementation works correctly with unit tests.", t.Title))
	}
	if h.RequiresDocs {
		texts = append(texts, fmt.Sprintf("Document: %s\n\nAdd appropriate documentation/comments.", t.Title))
	}
	return texts
}

// DecomposeTask produces a capped, id-assigned SubtaskList for t.
func DecomposeTask(t Task, opts Options) SubtaskList {
	maxSubtasks := opts.MaxSubtasks
	if maxSubtasks <= 0 {
		maxSubtasks = 5
	}

	var texts []string
	if opts.ForceSingle {
		texts = []string{strings.TrimSpace(t.Title + "\n\n" + t.Description)}
	} else {
		texts = DecomposeByRules(t)
	}

	if len(texts) > maxSubtasks {
		texts = texts[:maxSubtasks]
	}

	now := time.Now()
	subtasks := make([]Subtask, 0, len(texts))
	for i, text := range texts {
		subtasks = append(subtasks, Subtask{
			ID:     generateSubtaskID(t.ID, i),
			Text:   text,
			Status: SubtaskPending,
		})
	}

	return SubtaskList{
		TaskID:    t.ID,
		TaskTitle: t.Title,
		Subtasks:  subtasks,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NextSubtask prefers an InProgress subtask (resume), else the first
// Pending one. Returns nil if none qualify.
func (l *SubtaskList) NextSubtask() *Subtask {
	for i := range l.Subtasks {
		if l.Subtasks[i].Status == SubtaskInProgress {
			return &l.Subtasks[i]
		}
	}
	for i := range l.Subtasks {
		if l.Subtasks[i].Status == SubtaskPending {
			return &l.Subtasks[i]
		}
	}
	return nil
}

// IsAllComplete requires every subtask to be Done or Verified.
func (l *SubtaskList) IsAllComplete() bool {
	for _, s := range l.Subtasks {
		if s.Status != SubtaskDone && s.Status != SubtaskVerified {
			return false
		}
	}
	return true
}

// HasFailedSubtasks reports whether any subtask is Failed.
func (l *SubtaskList) HasFailedSubtasks() bool {
	for _, s := range l.Subtasks {
		if s.Status == SubtaskFailed {
			return true
		}
	}
	return false
}

// UpdateSubtaskStatus rewrites the named subtask's status in place,
// stamping the appropriate timestamp and bumping UpdatedAt.
func (l *SubtaskList) UpdateSubtaskStatus(subtaskID string, status SubtaskStatus, errMsg string) error {
	now := time.Now()
	for i := range l.Subtasks {
		if l.Subtasks[i].ID != subtaskID {
			continue
		}
		s := &l.Subtasks[i]
		s.Status = status
		s.Error = errMsg
		switch status {
		case SubtaskInProgress:
			if s.StartedAt == nil {
				s.StartedAt = &now
			}
		case SubtaskDone:
			if s.StartedAt == nil {
				s.StartedAt = &now
			}
			s.CompletedAt = &now
		case SubtaskVerified:
			if s.StartedAt == nil {
				s.StartedAt = &now
			}
			s.VerifiedAt = &now
			if s.CompletedAt == nil {
				s.CompletedAt = &now
			}
		}
		l.UpdatedAt = now
		return nil
	}
	return fmt.Errorf("task: subtask %q not found in list for task %q", subtaskID, l.TaskID)
}
