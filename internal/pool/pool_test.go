package pool

import (
	"testing"
	"time"
)

func TestAddAgent(t *testing.T) {
	p := New(2)

	if err := p.AddAgent(AgentConfig{ID: "a1"}); err != nil {
		t.Fatalf("AddAgent(a1) error = %v", err)
	}
	// The duplicate is checked while the pool still has room: at capacity
	// AddAgent reports ErrPoolFull before looking at the id.
	if err := p.AddAgent(AgentConfig{ID: "a1"}); err != ErrDuplicateAgent {
		t.Fatalf("AddAgent(a1 dup) error = %v, want ErrDuplicateAgent", err)
	}
	if err := p.AddAgent(AgentConfig{ID: "a2"}); err != nil {
		t.Fatalf("AddAgent(a2) error = %v", err)
	}
	if err := p.AddAgent(AgentConfig{ID: "a3"}); err != ErrPoolFull {
		t.Fatalf("AddAgent(a3) error = %v, want ErrPoolFull", err)
	}
	if err := p.AddAgent(AgentConfig{ID: ""}); err != ErrInvalidConfig {
		t.Fatalf("AddAgent(empty) error = %v, want ErrInvalidConfig", err)
	}
}

func TestGetAvailableAgentEmptyPool(t *testing.T) {
	p := New(2)
	if got := p.GetAvailableAgent(); got != nil {
		t.Fatalf("GetAvailableAgent() = %+v, want nil", got)
	}
}

// TestLoadBalanceFairSelection is the concrete scenario from spec.md §8
// scenario 1: pool of a1, a2; assign T1, T2, T3 in sequence, completing
// each before the next assignment. Expected selection order a1, a2, a1.
func TestLoadBalanceFairSelection(t *testing.T) {
	p := New(2)
	_ = p.AddAgent(AgentConfig{ID: "a1"})
	_ = p.AddAgent(AgentConfig{ID: "a2"})

	assignAndComplete := func(task string) string {
		agent := p.GetAvailableAgent()
		if agent == nil {
			t.Fatalf("GetAvailableAgent() = nil for task %s", task)
		}
		if err := p.AssignTask(agent.Config.ID, task); err != nil {
			t.Fatalf("AssignTask(%s, %s) error = %v", agent.Config.ID, task, err)
		}
		if err := p.ReportCompletion(agent.Config.ID, task, true, 0, "", time.Millisecond); err != nil {
			t.Fatalf("ReportCompletion error = %v", err)
		}
		return agent.Config.ID
	}

	got := []string{assignAndComplete("T1"), assignAndComplete("T2"), assignAndComplete("T3")}
	want := []string{"a1", "a2", "a1"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("selection[%d] = %s, want %s (got %v)", i, got[i], want[i], got)
		}
	}

	for _, tc := range []string{"T1", "T2", "T3"} {
		comp, ok := p.WaitForCompletion()
		if !ok {
			t.Fatalf("WaitForCompletion() closed early")
		}
		if comp.TaskID == "" {
			t.Errorf("completion for %s had empty TaskID", tc)
		}
	}
}

func TestAssignTaskNotAvailable(t *testing.T) {
	p := New(1)
	_ = p.AddAgent(AgentConfig{ID: "a1"})
	if err := p.AssignTask("a1", "T1"); err != nil {
		t.Fatalf("first AssignTask error = %v", err)
	}
	if err := p.AssignTask("a1", "T2"); err != ErrNotAvailable {
		t.Fatalf("second AssignTask error = %v, want ErrNotAvailable", err)
	}
	if err := p.AssignTask("missing", "T3"); err != ErrAgentNotFound {
		t.Fatalf("AssignTask(missing) error = %v, want ErrAgentNotFound", err)
	}
}

func TestMaxTasksCapsAvailability(t *testing.T) {
	p := New(1)
	max := 1
	_ = p.AddAgent(AgentConfig{ID: "a1", MaxTasks: &max})

	_ = p.AssignTask("a1", "T1")
	_ = p.ReportCompletion("a1", "T1", true, 10, "", time.Millisecond)
	<-p.completion

	if got := p.GetAvailableAgent(); got != nil {
		t.Fatalf("GetAvailableAgent() = %+v, want nil once MaxTasks reached", got)
	}
}

func TestShutdownAllAndAllDone(t *testing.T) {
	p := New(2)
	_ = p.AddAgent(AgentConfig{ID: "a1"})
	_ = p.AddAgent(AgentConfig{ID: "a2"})

	_ = p.AssignTask("a1", "T1") // a1 now Working, not pre-empted

	if p.AllDone() {
		t.Fatal("AllDone() = true before any terminal state")
	}

	p.ShutdownAll()

	a1 := p.Get("a1")
	a2 := p.Get("a2")
	if a1.State != StateWorking {
		t.Errorf("a1.State = %s, want Working (must not be preempted)", a1.State)
	}
	if a2.State != StateShuttingDown {
		t.Errorf("a2.State = %s, want ShuttingDown", a2.State)
	}
}

func TestStats(t *testing.T) {
	p := New(2)
	_ = p.AddAgent(AgentConfig{ID: "a1"})
	_ = p.AddAgent(AgentConfig{ID: "a2"})

	_ = p.AssignTask("a1", "T1")
	_ = p.ReportCompletion("a1", "T1", true, 100, "", time.Millisecond)
	<-p.completion

	_ = p.AssignTask("a2", "T2")
	_ = p.ReportCompletion("a2", "T2", false, 50, "boom", time.Millisecond)
	<-p.completion

	s := p.Stats()
	if s.TotalAgents != 2 {
		t.Errorf("TotalAgents = %d, want 2", s.TotalAgents)
	}
	if s.IdleAgents != 2 {
		t.Errorf("IdleAgents = %d, want 2", s.IdleAgents)
	}
	if s.TotalTasksCompleted != 1 || s.TotalTasksFailed != 1 {
		t.Errorf("completed=%d failed=%d, want 1,1", s.TotalTasksCompleted, s.TotalTasksFailed)
	}
	if s.TotalTokensUsed != 150 {
		t.Errorf("TotalTokensUsed = %d, want 150", s.TotalTokensUsed)
	}
}

func TestRemoveAgent(t *testing.T) {
	p := New(2)
	_ = p.AddAgent(AgentConfig{ID: "a1"})
	_ = p.AddAgent(AgentConfig{ID: "a2"})

	removed := p.RemoveAgent("a1")
	if removed == nil || removed.Config.ID != "a1" {
		t.Fatalf("RemoveAgent(a1) = %+v", removed)
	}
	if got := p.RemoveAgent("a1"); got != nil {
		t.Fatalf("RemoveAgent(a1) second call = %+v, want nil", got)
	}
	if err := p.AddAgent(AgentConfig{ID: "a3"}); err != nil {
		t.Fatalf("AddAgent(a3) after remove error = %v", err)
	}
}
