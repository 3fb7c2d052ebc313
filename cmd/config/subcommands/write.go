package subcommands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/timelapse/internal/config"
	"github.com/leefowlercu/timelapse/internal/fsutil"
)

var (
	writePath  string
	writeForce bool
)

// WriteCmd persists the effective configuration.
var WriteCmd = &cobra.Command{
	Use:   "write",
	Short: "Write the effective configuration to a file",
	Long: "Write the effective configuration to a file.\n\n" +
		"Writes the current configuration, with defaults and environment overrides " +
		"applied, as YAML. An existing file is only replaced with --force, and a " +
		"timestamped backup of it is kept next to the new file.",
	Example: `  # Write a starter config to the default location
  timelapse config write

  # Pin the current environment overrides into a file
  TIMELAPSE_CAPTURE_NAMING=sequence timelapse config write --path ./config.yaml --force`,
	PreRunE: validateWrite,
	RunE:    runWrite,
}

func init() {
	WriteCmd.Flags().StringVar(&writePath, "path", "", "Destination file (default: the active config path)")
	WriteCmd.Flags().BoolVar(&writeForce, "force", false, "Replace an existing file, keeping a backup")
}

func validateWrite(cmd *cobra.Command, args []string) error {
	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("refusing to write invalid configuration; %w", err)
	}

	path := writePath
	if path == "" {
		path = config.GetConfigPath()
	}
	path = config.ExpandPath(path)

	if config.ConfigExistsAt(path) {
		if !writeForce {
			return fmt.Errorf("config file %s already exists; use --force to replace it", path)
		}
		backupPath := fmt.Sprintf("%s.backup.%d", path, time.Now().Unix())
		if err := fsutil.CopyExclusive(path, backupPath); err != nil {
			return fmt.Errorf("failed to create backup; %w", err)
		}
		fmt.Fprintf(out, "Backup created: %s\n", backupPath)
	}

	if err := config.Write(cfg, path); err != nil {
		return err
	}

	fmt.Fprintf(out, "Configuration written: %s\n", path)
	return nil
}
