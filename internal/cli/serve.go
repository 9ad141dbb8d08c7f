package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"scanhub/internal/audit"
	"scanhub/internal/diffs"
	"scanhub/internal/dispatch"
	"scanhub/internal/executor"
	"scanhub/internal/jobs"
	"scanhub/internal/playbooks"
	"scanhub/internal/progress"
	"scanhub/internal/store/postgres"
	"scanhub/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ScanHub API server",
	Long: `Launches the HTTP API: scan submission and lifecycle, live progress
streams, playbook scheduling, and diff reports.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var (
		jobStore      jobs.Store      = jobs.NewMemoryStore()
		playbookStore playbooks.Store = playbooks.NewMemoryStore()
		diffStore     diffs.Store     = diffs.NewMemoryStore()
	)
	if dbURLFlag != "" {
		db, err := postgres.Open(dbURLFlag)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
		jobStore = db.Jobs()
		playbookStore = db.Playbooks()
		diffStore = db.Diffs()
	}

	var sink audit.Sink = audit.SlogSink{}
	if amqpURLFlag != "" {
		sink = audit.NewAMQPSink(amqpURLFlag, appConfig.AuditQueue)
	}

	hub := progress.NewHub()
	dispatcher := dispatch.New(jobStore, executor.Defaults(), hub, workersFlag)
	scans := jobs.NewService(jobStore, dispatcher, hub, nil, sink)
	scheduler := playbooks.NewScheduler(playbookStore, scans, sink)
	engine := diffs.NewEngine(jobStore, diffStore, nil, sink)

	server := web.NewServer(listenFlag, scans, scheduler, engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go scheduler.Loop(ctx, tickFlag, appConfig.SchedulerRuns)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	fmt.Fprintf(cmd.OutOrStdout(), "scanhub listening on %s\n", listenFlag)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return dispatcher.Close(shutdownCtx)
}
