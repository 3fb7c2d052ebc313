// Package config provides the config parent command and subcommands.
package config

import (
	"github.com/spf13/cobra"

	"github.com/leefowlercu/timelapse/cmd/config/subcommands"
)

// ConfigCmd is the parent command for all config-related subcommands.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage timelapse configuration",
	Long: "Manage timelapse configuration.\n\n" +
		"The config command shows, validates, and writes the timelapse " +
		"configuration. Configuration is read from a YAML file located at " +
		"~/.config/timelapse/config.yaml by default, and every key can be " +
		"overridden with a TIMELAPSE_* environment variable.",
}

func init() {
	ConfigCmd.AddCommand(subcommands.ShowCmd)
	ConfigCmd.AddCommand(subcommands.ValidateCmd)
	ConfigCmd.AddCommand(subcommands.WriteCmd)
}
