// Package capture implements a one-off capture cycle outside a host session.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/timelapse/internal/archive"
	"github.com/leefowlercu/timelapse/internal/cmdutil"
	"github.com/leefowlercu/timelapse/internal/config"
)

// Flag variables for the capture command.
var (
	capturePlayer string
	captureGameID string
	captureSeason string
	captureDay    int
)

// CaptureCmd runs one capture cycle.
var CaptureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Trigger one export and archive the result",
	Long: "Trigger one export and archive the result.\n\n" +
		"Resolves the archive directory for the given player, triggers the configured " +
		"export, and archives the export file found in the export directory afterwards. " +
		"The location gate does not apply. Date naming needs --season and --day; " +
		"sequence naming continues from the directory's highest index.\n\n" +
		"Without a host reading stdout there is nobody to run the stdout trigger's " +
		"command, so with trigger.kind stdout the export already in the directory " +
		"is archived as is.",
	Example: `  # Archive an export under today's in-game date
  timelapse capture --player Abby --game-id 123 --season spring --day 7

  # Archive into the next sequence slot with a configured export command
  TIMELAPSE_CAPTURE_NAMING=sequence timelapse capture --player Abby`,
	Args:    cobra.NoArgs,
	PreRunE: validateCapture,
	RunE:    runCapture,
}

func init() {
	CaptureCmd.Flags().StringVar(&capturePlayer, "player", "", "Player name (required)")
	CaptureCmd.Flags().StringVar(&captureGameID, "game-id", "", "Game identifier appended to the session key")
	CaptureCmd.Flags().StringVar(&captureSeason, "season", "", "In-game season for date naming")
	CaptureCmd.Flags().IntVar(&captureDay, "day", 0, "In-game day of the season for date naming")
}

func validateCapture(cmd *cobra.Command, args []string) error {
	if capturePlayer == "" {
		return errors.New("--player is required")
	}
	if (captureSeason == "") != (captureDay == 0) {
		return errors.New("--season and --day must be given together")
	}
	if captureDay < 0 {
		return fmt.Errorf("--day must be positive, got %d", captureDay)
	}

	// All validation passed - errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runCapture(cmd *cobra.Command, args []string) error {
	date := archive.Date{Season: captureSeason, Day: captureDay}
	return Capture(cmd.Context(), cmd.OutOrStdout(), capturePlayer, captureGameID, date, slog.Default())
}

// Capture runs a single poll-mode cycle for player and reports the archive
// result on out. A missing export file is reported but is not an error.
func Capture(ctx context.Context, out io.Writer, player, gameID string, date archive.Date, logger *slog.Logger) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	if cfg.Trigger.Kind == config.TriggerStdout {
		logger.Info("no host reads the stdout trigger; archiving the existing export")
		local := *cfg
		local.Trigger.Kind = config.TriggerNone
		cfg = &local
	}

	pipeline, err := cmdutil.NewPipeline(cfg, config.DetectionPoll, out, logger)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	c := pipeline.Controller
	if err := c.SessionStarted(ctx, player, gameID, date); err != nil {
		return err
	}
	if err := c.LocationChanged(ctx, pipeline.Settings.Location); err != nil {
		return err
	}

	st := c.Status()
	if st.LastCapture == nil {
		fmt.Fprintf(out, "No export file found in %s\n", filepath.Dir(st.ArchiveDir))
		return nil
	}

	switch st.LastCapture.Status {
	case string(archive.StatusArchived):
		fmt.Fprintf(out, "Archived %s\n", st.LastCapture.Destination)
	case string(archive.StatusSkipped):
		fmt.Fprintf(out, "Skipped: %s already exists\n", st.LastCapture.Destination)
	}
	return nil
}
