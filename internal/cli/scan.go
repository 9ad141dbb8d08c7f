package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"scanhub/internal/dispatch"
	"scanhub/internal/executor"
	"scanhub/internal/jobs"
	"scanhub/internal/output"
	"scanhub/internal/progress"
)

var (
	profileFlag string
	portsFlag   string
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Run a one-shot scan without the server",
	Long: `Runs a single scan locally and prints the result. The target is
classified the same way the API classifies it: URLs and hostnames get the
web profile, IP literals a network sweep.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&profileFlag, "profile", "p", "default", "scan profile (default, fast, full, quick, detailed, comprehensive, safe, web, enhanced)")
	scanCmd.Flags().StringVar(&portsFlag, "ports", "", "port specification for network scans (e.g. 22,80,443 or 1-1024)")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	formatter, err := output.GetFormatter(outputFlag)
	if err != nil {
		return err
	}

	store := jobs.NewMemoryStore()
	hub := progress.NewHub()
	dispatcher := dispatch.New(store, executor.Defaults(), hub, workersFlag)
	scans := jobs.NewService(store, dispatcher, hub, nil, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var config map[string]any
	if portsFlag != "" {
		config = map[string]any{"ports": portsFlag}
	}

	job, err := scans.Submit(ctx, args[0], profileFlag, config)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scanning %s (profile: %s)\n", job.Target, job.Profile)

	stream, err := scans.Subscribe(ctx, job.ID, "cli")
	if err != nil {
		return err
	}
	defer scans.Unsubscribe(job.ID, "cli")

	for {
		select {
		case <-ctx.Done():
			if _, err := scans.Cancel(context.Background(), job.ID, "cli"); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Scan cancelled.")
			return nil
		case snap, open := <-stream:
			if !open {
				return fmt.Errorf("progress stream closed unexpectedly")
			}
			if snap.Status == jobs.StatusRunning {
				fmt.Fprintf(cmd.OutOrStdout(), "  progress: %d%%\r", snap.Progress)
			}
			if !snap.Status.Terminal() {
				continue
			}

			final, err := scans.Get(ctx, job.ID)
			if err != nil {
				return err
			}
			if err := formatter.FormatJob(cmd.OutOrStdout(), final); err != nil {
				return err
			}

			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := dispatcher.Close(closeCtx); err != nil {
				return err
			}
			if final.Status == jobs.StatusFailed {
				return fmt.Errorf("scan failed: %s", final.Error)
			}
			return nil
		}
	}
}
