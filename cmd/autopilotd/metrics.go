package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/boshu2/autopilotd/internal/config"
)

// metricsCmd is additive to status: it dumps the Prometheus text-format
// snapshot the running daemon periodically writes, rather than the
// plain JSON status shape.
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Dump the last Prometheus text-format metrics snapshot",
	RunE:  runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return configError(err)
	}

	path := filepath.Join(cfg.BaseDir, "metrics.prom")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("no metrics snapshot at %s; is autopilotd running?", path)
	} else if err != nil {
		return err
	}

	fmt.Print(string(data))
	return nil
}
