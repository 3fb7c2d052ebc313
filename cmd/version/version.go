// Package version implements the version command.
package version

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/timelapse/internal/version"
)

var (
	versionShort bool
	versionJSON  bool
)

// VersionCmd displays version and build information.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version and build information",
	Long: "Display version and build information.\n\n" +
		"Shows the semantic version, git commit hash, build date, and Go toolchain " +
		"of the current timelapse binary.",
	Example: `  # Display version information
  timelapse version

  # Print only the version and commit
  timelapse version --short`,
	PreRunE: validateVersion,
	RunE:    runVersion,
}

func init() {
	VersionCmd.Flags().BoolVar(&versionShort, "short", false, "Print a single line")
	VersionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print JSON")
}

func validateVersion(cmd *cobra.Command, args []string) error {
	if versionShort && versionJSON {
		return errors.New("--short and --json are mutually exclusive")
	}
	cmd.SilenceUsage = true
	return nil
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	switch {
	case versionJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case versionShort:
		fmt.Fprintln(out, info.Short())
	default:
		fmt.Fprintln(out, info.String())
	}
	return nil
}
