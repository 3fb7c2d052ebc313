package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leefowlercu/timelapse/cmd/capture"
	"github.com/leefowlercu/timelapse/cmd/config"
	"github.com/leefowlercu/timelapse/cmd/list"
	"github.com/leefowlercu/timelapse/cmd/nextindex"
	"github.com/leefowlercu/timelapse/cmd/run"
	"github.com/leefowlercu/timelapse/cmd/version"
	appconfig "github.com/leefowlercu/timelapse/internal/config"
	"github.com/leefowlercu/timelapse/internal/logging"
)

// logManager is the global logging manager, created in init() and upgraded after config loads
var logManager *logging.Manager

var timelapseCmd = &cobra.Command{
	Use:   "timelapse",
	Short: "Archive periodic map exports from a game host into a timelapse",
	Long: "Timelapse runs beside a game host and turns its map export into a timelapse.\n\n" +
		"Once the player first reaches the target location in a session, every new in-game day " +
		"triggers the host's export command. The exported image is moved or copied into a " +
		"per-player archive directory and named by in-game date or by sequence number.\n\n",
	PersistentPreRunE: runInitialize,
}

func init() {
	logManager = logging.NewManager()

	timelapseCmd.AddCommand(run.RunCmd)
	timelapseCmd.AddCommand(capture.CaptureCmd)
	timelapseCmd.AddCommand(list.ListCmd)
	timelapseCmd.AddCommand(nextindex.NextIndexCmd)
	timelapseCmd.AddCommand(config.ConfigCmd)
	timelapseCmd.AddCommand(version.VersionCmd)
}

func runInitialize(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	if err := appconfig.Init(); err != nil {
		return err
	}

	levelStr := appconfig.GetString("log_level")
	level, ok := logging.ParseLevel(levelStr)
	if !ok {
		level = logging.DefaultLevel
		if levelStr != "" {
			logger.Warn("invalid log level configured, using default", "configured", levelStr, "default", "info")
		}
	}

	rotation := logging.Rotation{
		MaxSizeMB:  appconfig.GetInt("log_max_size_mb"),
		MaxBackups: appconfig.GetInt("log_max_backups"),
	}
	if err := logManager.Upgrade(appconfig.GetPath("log_file"), level, rotation); err != nil {
		logger.Warn("failed to enable file logging, continuing with stderr only", "error", err)
	}

	return nil
}

func Execute() error {
	timelapseCmd.SilenceErrors = true
	timelapseCmd.SilenceUsage = true

	defer func() { _ = logManager.Close() }()

	err := timelapseCmd.Execute()

	if err != nil {
		cmd, _, _ := timelapseCmd.Find(os.Args[1:])
		if cmd == nil {
			cmd = timelapseCmd
		}

		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if !cmd.SilenceUsage {
			fmt.Fprintf(os.Stderr, "\n")
			cmd.SetOut(os.Stderr)
			_ = cmd.Usage()
		}

		return err
	}

	return nil
}
