// Package cli wires the scanhub commands: the API server, one-shot local
// scans, and version info.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scanhub/internal/config"
	"scanhub/internal/slogger"
)

var version = "dev"

var (
	listenFlag  string
	workersFlag int
	outputFlag  string
	tickFlag    time.Duration
	dbURLFlag   string
	amqpURLFlag string
)

// appConfig holds the loaded configuration, available after PersistentPreRunE.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "scanhub",
	Short: "ScanHub is a scan job orchestration service",
	Long: `ScanHub runs security scans as tracked jobs: submit a target, follow
live progress, cancel or retry runs, schedule recurring playbooks, and
diff the results of two scans of the same target.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		slogger.Init()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		config.ApplyFlags(cfg, cmd)

		// Sync config values back to flag variables so all commands pick up
		// config-file and env-var defaults transparently.
		listenFlag = cfg.ListenAddr
		workersFlag = cfg.Workers
		outputFlag = cfg.OutputFormat
		tickFlag = cfg.SchedulerTick
		dbURLFlag = cfg.DatabaseURL
		amqpURLFlag = cfg.AMQPURL

		appConfig = cfg
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&listenFlag, "listen", ":8080", "listen address (host:port)")
	rootCmd.PersistentFlags().IntVar(&workersFlag, "workers", 4, "max concurrent scan executions")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "output format: table, json")
	rootCmd.PersistentFlags().DurationVar(&tickFlag, "scheduler-tick", time.Minute, "playbook scheduler interval")
	rootCmd.PersistentFlags().StringVar(&dbURLFlag, "database-url", "", "postgres DSN (empty: in-memory stores)")
	rootCmd.PersistentFlags().StringVar(&amqpURLFlag, "amqp-url", "", "AMQP broker URL for audit events (empty: log only)")

	rootCmd.AddCommand(versionCmd)
}
