package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml"
	"github.com/spf13/cobra"

	"github.com/cpptrim/cpptrim/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validates a cpptrim configuration file for syntax errors.

Examples:
  cpptrim config validate                     # Validates default config locations
  cpptrim config validate -c cpptrim.toml     # Validates specific file`,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Shows the merged configuration from defaults and config file.

Examples:
  cpptrim config show                  # Show effective config
  cpptrim config show -c cpptrim.toml  # Show config from specific file`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func configLoadOpts() []config.LoadOption {
	var opts []config.LoadOption
	if cfgFile != "" {
		opts = append(opts, config.WithPath(cfgFile))
	}
	return opts
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	result, err := config.LoadConfig(configLoadOpts()...)
	if err != nil {
		color.Red("Configuration validation failed:")
		fmt.Printf("  - %s\n", err)
		return err
	}

	if result.Source != "" {
		color.Green("Configuration valid: %s", result.Source)
	} else {
		color.Yellow("No config file found. Default configuration is valid.")
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	result, err := config.LoadConfig(configLoadOpts()...)
	if err != nil {
		return err
	}

	if result.Source != "" {
		fmt.Printf("# Configuration from: %s\n\n", result.Source)
	} else {
		fmt.Println("# Default configuration (no config file found)")
	}

	content, err := toml.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(content))

	return nil
}
