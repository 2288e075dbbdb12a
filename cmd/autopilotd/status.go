package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/boshu2/autopilotd/internal/config"
	"github.com/boshu2/autopilotd/internal/supervisor"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Emit the current metrics snapshot as JSON",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return configError(err)
	}

	path := filepath.Join(cfg.BaseDir, "metrics.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		data, err = json.MarshalIndent(supervisor.DaemonMetrics{WorkerStatus: "stopped"}, "", "  ")
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	fmt.Println(string(data))
	return nil
}
