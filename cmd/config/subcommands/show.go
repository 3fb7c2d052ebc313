package subcommands

import (
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leefowlercu/timelapse/internal/config"
)

var (
	showRaw    bool
	showFormat string
)

// ShowCmd displays the current configuration.
var ShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the current configuration",
	Long: "Display the current configuration.\n\n" +
		"Shows the effective timelapse configuration with defaults and environment " +
		"overrides applied. Use --raw to print the config file as written, and " +
		"--format toml to render the effective configuration as TOML.",
	Example: `  # Show effective configuration
  timelapse config show

  # Show it as TOML
  timelapse config show --format toml

  # Show only the config file contents
  timelapse config show --raw`,
	PreRunE: validateShow,
	RunE:    runShow,
}

func init() {
	ShowCmd.Flags().BoolVar(&showRaw, "raw", false, "Show the config file as written (no defaults)")
	ShowCmd.Flags().StringVar(&showFormat, "format", "yaml", "Output format: yaml or toml")
}

func validateShow(cmd *cobra.Command, args []string) error {
	if showFormat != "yaml" && showFormat != "toml" {
		return fmt.Errorf("invalid format %q; must be yaml or toml", showFormat)
	}

	// All errors after this are runtime errors
	cmd.SilenceUsage = true
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if showRaw {
		return showRawConfig(out)
	}
	return showEffectiveConfig(out, showFormat)
}

func showRawConfig(out io.Writer) error {
	configPath := config.GetConfigPath()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "# No configuration file found")
			fmt.Fprintf(out, "# Default location: %s\n", configPath)
			return nil
		}
		return fmt.Errorf("failed to read config file; %w", err)
	}

	fmt.Fprintf(out, "# Configuration file: %s\n", configPath)
	fmt.Fprintln(out, string(data))
	return nil
}

func showEffectiveConfig(out io.Writer, format string) error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	data, err := marshalConfig(cfg, format)
	if err != nil {
		return fmt.Errorf("failed to format configuration; %w", err)
	}

	fmt.Fprintln(out, "# Effective configuration (with defaults)")
	fmt.Fprintf(out, "# Config file: %s\n", config.GetConfigPath())
	fmt.Fprintln(out, string(data))
	return nil
}

func marshalConfig(cfg *config.Config, format string) ([]byte, error) {
	if format == "toml" {
		return toml.Marshal(cfg)
	}
	return yaml.Marshal(cfg)
}
