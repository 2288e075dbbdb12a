package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/boshu2/autopilotd/internal/config"
	"github.com/boshu2/autopilotd/internal/trajectory"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <trajectory-log-path>",
	Short: "Rebuild a trajectory snapshot from a log on disk",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return configError(err)
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening trajectory log: %w", err)
	}
	defer f.Close()

	tracker, err := trajectory.LoadFromJSONL(f, cfg.Trajectory.WindowSize)
	if err != nil {
		return fmt.Errorf("parsing trajectory log: %w", err)
	}

	snap := tracker.Snapshot()
	if output == "table" {
		fmt.Printf("resumed session: %d actions, %.2f APM, %d tokens in / %d tokens out\n",
			snap.TotalActions, snap.APM, snap.TokensIn, snap.TokensOut)
		return nil
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
