package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/boshu2/autopilotd/internal/budget"
	"github.com/boshu2/autopilotd/internal/config"
	"github.com/boshu2/autopilotd/internal/lockfile"
	"github.com/boshu2/autopilotd/internal/metrics"
	"github.com/boshu2/autopilotd/internal/pool"
	"github.com/boshu2/autopilotd/internal/storage"
	"github.com/boshu2/autopilotd/internal/supervisor"
)

// localAgentID identifies the single in-process pool slot backing the
// supervised worker child. Multi-agent pools are populated the same way
// by future callers (AddAgent per worker slot); this daemon supervises
// exactly one child process per spec.md §5 ("one monitor task").
const localAgentID = "local"

var (
	runIssueNumber int
	runSessionID   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Spawn and supervise the worker",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVar(&runIssueNumber, "issue", 0, "issue number this run addresses")
	runCmd.Flags().StringVar(&runSessionID, "session-id", "", "identifier for this supervised session")
	rootCmd.AddCommand(runCmd)
}

type noopBlocker struct{}

func (noopBlocker) BlockIssue(issueNumber int, reason string) error {
	logger.Warn().Int("issue", issueNumber).Str("reason", reason).Msg("previous run crashed; issue-block action recorded")
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return configError(err)
	}

	report, err := lockfile.CheckAndHandleStaleLockfile(noopBlocker{})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to check stale lockfile")
	}
	if report.Found {
		logger.Warn().Str("started_at", report.StartedAt).Msg("previous run crashed")
		if report.ResumeHint != "" {
			fmt.Fprintln(os.Stderr, "To resume the crashed session:")
			fmt.Fprintln(os.Stderr, "  "+report.ResumeHint)
		}
	}

	var issuePtr *int
	if runIssueNumber != 0 {
		issuePtr = &runIssueNumber
	}
	var sessionPtr *string
	if runSessionID != "" {
		sessionPtr = &runSessionID
	}
	trajectoryPath := filepath.Join(cfg.BaseDir, "trajectory.jsonl")
	if err := lockfile.WriteLockfile(issuePtr, sessionPtr, &trajectoryPath, time.Now()); err != nil {
		return configError(fmt.Errorf("writing lockfile: %w", err))
	}

	store, err := storage.Open(filepath.Join(cfg.BaseDir, "state.db"))
	if err != nil {
		return configError(fmt.Errorf("opening state store: %w", err))
	}
	defer store.Close()

	agentPool := pool.New(cfg.Pool.MaxAgents)
	if err := agentPool.AddAgent(pool.AgentConfig{ID: localAgentID, WorktreePath: cfg.Supervisor.ProjectPath}); err != nil {
		return configError(fmt.Errorf("registering local agent: %w", err))
	}

	limits := budget.Limits{
		DailyLimitSats:   cfg.Budget.DailyLimitSats,
		PerTickLimitSats: cfg.Budget.PerTickLimitSats,
		ReservedSats:     cfg.Budget.ReservedSats,
	}
	ledger := budget.NewTracker(limits)
	if cp, found, err := store.ReadBudgetCheckpoint(localAgentID); err != nil {
		logger.Warn().Err(err).Msg("failed to read budget checkpoint")
	} else if found {
		ledger.Restore(cp.CurrentDate, cp.DailySpent, cp.TickSpent, cp.Violations)
	}

	sup := supervisor.New(cfg.Supervisor, logger, supervisor.SpawnOSProcess)
	promReg := prometheus.NewRegistry()
	reg := metrics.NewRegistry(promReg)

	shutdown := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	caughtSignalCh := make(chan os.Signal, 1)
	go func() {
		sig := <-sigCh
		caughtSignalCh <- sig
		lockfile.CleanupMCPConfig()
		close(shutdown)
	}()

	snapshotTicker := time.NewTicker(5 * time.Second)
	defer snapshotTicker.Stop()
	var lastRestarts uint64
	go func() {
		for {
			select {
			case <-snapshotTicker.C:
				m := sup.Metrics()
				if err := writeMetricsSnapshot(cfg, m); err != nil {
					logger.Warn().Err(err).Msg("failed to write metrics snapshot")
				}
				if m.TotalRestarts > lastRestarts {
					reg.SupervisorRestartsTotal.Add(float64(m.TotalRestarts - lastRestarts))
					lastRestarts = m.TotalRestarts
				}
				updatePrometheusMetrics(reg, m)
				reg.PoolAgents.Set(float64(agentPool.Stats().TotalAgents))
				if err := writePrometheusSnapshot(cfg, promReg); err != nil {
					logger.Warn().Err(err).Msg("failed to write prometheus snapshot")
				}
				if err := checkpointBudget(store, ledger); err != nil {
					logger.Warn().Err(err).Msg("failed to write budget checkpoint")
				}
			case <-shutdown:
				return
			}
		}
	}()

	if err := sup.Run(shutdown); err != nil {
		return fmt.Errorf("supervisor run: %w", err)
	}

	if err := checkpointBudget(store, ledger); err != nil {
		logger.Warn().Err(err).Msg("failed to write final budget checkpoint")
	}

	select {
	case sig := <-caughtSignalCh:
		// Signal deaths intentionally leave the lockfile in place — its
		// presence is the crash signal for the next run.
		return signalError(sig)
	default:
	}

	lockfile.CleanupLockfile()
	return nil
}

// checkpointBudget persists the local agent's current ledger counters so
// a subsequent run resumes today's spend accounting instead of starting
// the daily/tick counters from zero.
func checkpointBudget(store *storage.Store, ledger *budget.Tracker) error {
	return store.WriteBudgetCheckpoint(storage.BudgetCheckpoint{
		AgentID:     localAgentID,
		CurrentDate: ledger.CurrentDate(),
		DailySpent:  ledger.DailySpent(),
		TickSpent:   ledger.TickSpent(),
		Violations:  ledger.ViolationsToday(),
		SavedAt:     time.Now(),
	})
}

func writeMetricsSnapshot(cfg *config.Config, m supervisor.DaemonMetrics) error {
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cfg.BaseDir, "metrics.json"), data, 0o644)
}

// updatePrometheusMetrics refreshes the supervisor-derived gauges in reg
// from the latest DaemonMetrics snapshot. The marketplace and trajectory
// collectors are not updated here, and neither Buyer nor Tracker updates
// them.
func updatePrometheusMetrics(reg *metrics.Registry, m supervisor.DaemonMetrics) {
	reg.SupervisorUptimeSeconds.Set(float64(m.UptimeSeconds))
	reg.SupervisorFailures.Set(float64(m.ConsecutiveFailures))
}

// writePrometheusSnapshot gathers promReg into Prometheus text exposition
// format and writes it to BaseDir/metrics.prom, read back by the
// `metrics` subcommand.
func writePrometheusSnapshot(cfg *config.Config, promReg *prometheus.Registry) error {
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return err
	}
	families, err := promReg.Gather()
	if err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(cfg.BaseDir, "metrics.prom"))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := expfmt.NewEncoder(f, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
