// Package list implements the list command for displaying archived frames.
package list

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/timelapse/internal/archive"
	"github.com/leefowlercu/timelapse/internal/cmdutil"
	"github.com/leefowlercu/timelapse/internal/config"
	"github.com/leefowlercu/timelapse/internal/tui/styles"
)

// Flag variables for the list command.
var (
	listPlayer string
	listGameID string
	listJSON   bool
)

// ListCmd is the list command for displaying archived frames.
var ListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the archived frames of a session",
	Long: "List the frames archived for a player's session.\n\n" +
		"Shows every frame in the session's archive directory in timelapse order, " +
		"with its size and image dimensions. The directory is never created by this " +
		"command.",
	Example: `  # List frames for a player and game
  timelapse list --player Abby --game-id 123

  # Emit the listing as JSON
  timelapse list --player Abby --json`,
	Args:    cobra.NoArgs,
	PreRunE: validateList,
	RunE:    runList,
}

func init() {
	ListCmd.Flags().StringVar(&listPlayer, "player", "", "Player name (required)")
	ListCmd.Flags().StringVar(&listGameID, "game-id", "", "Game identifier of the session")
	ListCmd.Flags().BoolVar(&listJSON, "json", false, "Output JSON instead of a table")
}

func validateList(cmd *cobra.Command, args []string) error {
	if listPlayer == "" {
		return errors.New("--player is required")
	}

	// All validation passed - errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

// FrameRow is one listed frame.
type FrameRow struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Format  string `json:"format,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	ModTime string `json:"mod_time"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	key, err := archive.SessionKey(listPlayer, listGameID)
	if err != nil {
		return err
	}

	dir, err := archive.Locate(config.ExpandPath(cfg.Game.Root), cfg.Game.ExportDir, cfg.Archive.Prefix, key)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(cmd.OutOrStdout(), "No frames archived for %s.\n", key)
		return nil
	}
	if err != nil {
		return err
	}

	rows, err := collectRows(dir)
	if err != nil {
		return err
	}

	if listJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	printTable(cmd.OutOrStdout(), dir, rows)
	return nil
}

func collectRows(dir archive.Directory) ([]FrameRow, error) {
	frames, err := dir.Frames()
	if err != nil {
		return nil, err
	}

	rows := make([]FrameRow, 0, len(frames))
	for _, f := range frames {
		row := FrameRow{
			Name:    f.Name,
			Path:    f.Path,
			Size:    f.Size,
			ModTime: f.ModTime.Format("2006-01-02 15:04:05"),
		}
		if info, err := archive.Inspect(f.Path); err == nil {
			row.Format = info.Format
			row.Width = info.Width
			row.Height = info.Height
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func printTable(out io.Writer, dir archive.Directory, rows []FrameRow) {
	fmt.Fprintln(out, styles.Title.Render(fmt.Sprintf("%s (%d frames)", dir.Path, len(rows))))

	if len(rows) == 0 {
		fmt.Fprintln(out, styles.MutedText.Render("No frames archived yet."))
		return
	}

	nameWidth := len("NAME")
	for _, r := range rows {
		nameWidth = max(nameWidth, len(r.Name))
	}

	name := styles.Column(nameWidth + 4)
	size := styles.Column(10)
	dims := styles.Column(14)

	fmt.Fprintln(out, styles.Row(
		name.Render(styles.Header.Render("NAME")),
		size.Render(styles.Header.Render("SIZE")),
		dims.Render(styles.Header.Render("DIMENSIONS")),
		styles.Header.Render("MODIFIED"),
	))

	for _, r := range rows {
		indicator := styles.SuccessText.Render(styles.FrameOK)
		dimensions := fmt.Sprintf("%dx%d", r.Width, r.Height)
		if r.Format == "" {
			indicator = styles.WarningText.Render(styles.FrameUnknown)
			dimensions = styles.MutedText.Render("unknown")
		}

		fmt.Fprintln(out, styles.Row(
			name.Render(indicator+" "+r.Name),
			size.Render(formatSize(r.Size)),
			dims.Render(dimensions),
			styles.MutedText.Render(r.ModTime),
		))
	}
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
