package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igfeed/pkg/config"
	"igfeed/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igfeed configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (IGFEED_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file holding every option at its default value.

The file is created as '.igfeed.yaml' in the current directory unless a
different path is given with --config. Secrets are left empty; provide them
through IGFEED_JWT_SECRET and IGFEED_SESSION_PASSPHRASE instead.`,
	Args: cobra.NoArgs,
	Run:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. Secrets are masked.`,
	Args:  cobra.NoArgs,
	Run:   runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Args:  cobra.NoArgs,
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" {
		path = ".igfeed.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", path)
		os.Exit(1)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	ui.Println("\nNext steps:")
	ui.Println("1. export IGFEED_JWT_SECRET=<random secret>")
	ui.Println("2. igfeed config validate")
	ui.Println("3. igfeed serve")
}

func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) > 8:
		return s[:4] + "..." + s[len(s)-4:]
	default:
		return "***"
	}
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	display := *cfg
	display.Auth.JWTSecret = mask(display.Auth.JWTSecret)
	display.Sessions.Passphrase = mask(display.Sessions.Passphrase)

	data, err := yaml.Marshal(&display)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	ui.Println()
	fmt.Print(string(data))
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)

	var warnings []string
	if err := cfg.RequireSecret(); err != nil {
		warnings = append(warnings, "no JWT secret configured, 'igfeed serve' will refuse to start")
	}
	if cfg.Server.Debug {
		warnings = append(warnings, "debug mode exposes /generate, which mints tokens without credentials")
	}
	for _, backend := range cfg.Sessions.Backends {
		if backend == config.BackendEncrypted && cfg.Sessions.Passphrase == "" {
			warnings = append(warnings, "encrypted session backend selected without a passphrase")
		}
	}

	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		for _, w := range warnings {
			ui.Println("  - " + w)
		}
		ui.Println()
	}

	ui.PrintSuccess("Configuration is valid")
	ui.Println("\nConfiguration summary:")
	ui.Println(fmt.Sprintf("  Address: %s", cfg.Server.Address))
	ui.Println(fmt.Sprintf("  Inbound limit: %.1f requests/second, burst %d", cfg.Server.RequestsPerSecond, cfg.Server.Burst))
	ui.Println(fmt.Sprintf("  Upstream limit: %d requests/minute", cfg.Instagram.RequestsPerMinute))
	ui.Println(fmt.Sprintf("  Session backends: %v", cfg.Sessions.Backends))
	ui.Println(fmt.Sprintf("  Log level: %s", cfg.Logging.Level))
}
