// Package run implements the long-running sidecar command.
package run

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/timelapse/internal/cmdutil"
	"github.com/leefowlercu/timelapse/internal/config"
	"github.com/leefowlercu/timelapse/internal/daemon"
	"github.com/leefowlercu/timelapse/internal/host"
	"github.com/leefowlercu/timelapse/internal/metrics"
	"github.com/leefowlercu/timelapse/internal/version"
)

// metricsInterval is how often the collector refreshes archive gauges.
const metricsInterval = 15 * time.Second

var (
	runEvents    string
	runDetection string
)

// RunCmd reads host signals and archives captures until the host exits.
var RunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run beside the game host and archive a capture every day",
	Long: "Run beside the game host and archive a capture every day.\n\n" +
		"Reads host lifecycle signals as JSON lines from stdin, or from --events. " +
		"After the player first reaches the target location in a session, every new " +
		"in-game day triggers a map export, and the exported file is archived into the " +
		"session's directory. The command exits when the signal stream ends or on " +
		"SIGINT/SIGTERM.\n\n" +
		"With the default stdout trigger, export commands are written to stdout one per " +
		"line and exports are detected with filesystem notifications, since the host " +
		"runs the command after the trigger returns. Logs and errors go to stderr.",
	Example: `  # Run as a host sidecar over stdin/stdout
  timelapse run

  # Read signals from a FIFO and detect exports with filesystem notifications
  timelapse run --events /tmp/host-events --detection notify`,
	Args:    cobra.NoArgs,
	PreRunE: validateRun,
	RunE:    runRun,
}

func init() {
	RunCmd.Flags().StringVar(&runEvents, "events", "", "Read host signals from this file or FIFO instead of stdin")
	RunCmd.Flags().StringVar(&runDetection, "detection", "", "Override capture.detection (poll or notify)")
}

func validateRun(cmd *cobra.Command, args []string) error {
	if runDetection != "" && runDetection != config.DetectionPoll && runDetection != config.DetectionNotify {
		return fmt.Errorf("invalid detection %q; must be poll or notify", runDetection)
	}

	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events io.Reader = cmd.InOrStdin()
	if runEvents != "" {
		f, err := openEvents(ctx, runEvents)
		if err != nil {
			return err
		}
		defer f.Close()
		events = f
	}

	return Run(ctx, events, cmd.OutOrStdout(), runDetection, slog.Default())
}

// openEvents opens the signal file or FIFO at path and closes it when ctx is
// done, which releases a read blocked on a quiet FIFO.
func openEvents(ctx context.Context, path string) (*os.File, error) {
	resolved, err := cmdutil.ResolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve events path; %w", err)
	}
	f, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to open events source; %w", err)
	}

	go func() {
		<-ctx.Done()
		f.Close()
	}()
	return f, nil
}

// Run wires the capture pipeline and blocks until events ends or ctx is
// canceled. An empty detection uses the configured mode; the stdout trigger
// always detects with notify.
func Run(ctx context.Context, events io.Reader, out io.Writer, detection string, logger *slog.Logger) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}
	pipeline, err := cmdutil.NewPipeline(cfg, detection, out, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logger.Warn("failed to close capture pipeline", "error", err)
		}
	}()

	reader := host.NewReader(events, pipeline.Dispatcher, host.WithReaderLogger(logger))

	collector := metrics.NewCollector(metricsInterval, version.Get().Short())
	collector.Register("controller", pipeline.Controller)

	d := daemon.NewDaemon(daemon.DaemonConfigFrom(cfg), reader, pipeline.Controller,
		daemon.WithBus(pipeline.Bus),
		daemon.WithCollector(collector),
		daemon.WithLogger(logger),
	)

	logger.Info("starting timelapse",
		"version", version.Get().Short(),
		"game_root", pipeline.Settings.Root,
		"export_dir", pipeline.Settings.ExportDir,
		"naming", pipeline.Settings.Naming,
		"detection", pipeline.Detection,
		"mode", pipeline.Settings.Mode,
		"trigger", cfg.Trigger.Kind,
	)

	return d.Run(ctx)
}
