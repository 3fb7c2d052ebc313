// Package nextindex implements the next-index command.
package nextindex

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/timelapse/internal/archive"
	"github.com/leefowlercu/timelapse/internal/cmdutil"
)

// NextIndexCmd prints the sequence index the next capture in a directory
// would receive.
var NextIndexCmd = &cobra.Command{
	Use:   "next-index DIR",
	Short: "Print the next sequence index for an archive directory",
	Long: "Print the next sequence index for an archive directory.\n\n" +
		"Scans the directory for frames named by a non-negative integer and prints " +
		"one more than the highest, or 0 when there are none. Files with other names " +
		"are ignored.",
	Example: `  # Inspect a session archive
  timelapse next-index ~/game/MapExport/timelapse-Abby-123`,
	Args:    cobra.ExactArgs(1),
	PreRunE: validateNextIndex,
	RunE:    runNextIndex,
}

func validateNextIndex(cmd *cobra.Command, args []string) error {
	if args[0] == "" {
		return fmt.Errorf("directory must not be empty")
	}

	// All validation passed - errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runNextIndex(cmd *cobra.Command, args []string) error {
	dir, err := cmdutil.ResolvePath(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve directory; %w", err)
	}

	next, err := archive.ScanNextIndex(dir)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), next)
	return nil
}
