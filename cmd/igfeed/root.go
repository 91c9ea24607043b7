package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"igfeed/pkg/config"
	"igfeed/pkg/logger"
	"igfeed/pkg/ui"
)

var (
	// Build information, set with -ldflags
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile      string
	logLevel        string
	sessionsDir     string
	sessionBackends []string
	jwtSecret       string
	noColor         bool
	quiet           bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igfeed",
	Short: "JSON API for Instagram profile feeds, stories and highlights",
	Long: `igfeed serves Instagram profile content over a small JSON API.

Clients log in once with their Instagram credentials and receive a bearer
token. Stories and highlights require a stored session; profile feeds and
profile pictures fall back to anonymous access.

Configuration sources, highest priority first:
  - Command line flags
  - Environment variables (IGFEED_*)
  - .env files
  - Configuration file (.igfeed.yaml)
  - Default values`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", logger.Version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetColor(!noColor)
		ui.SetQuietMode(quiet)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.igfeed.yaml or $HOME/.config/igfeed/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&sessionsDir, "sessions-dir", "", "directory holding stored sessions")
	rootCmd.PersistentFlags().StringSliceVar(&sessionBackends, "session-backends", nil, "session stores in lookup order (file, encrypted, keyring, env)")
	rootCmd.PersistentFlags().StringVar(&jwtSecret, "jwt-secret", "", "secret used to sign bearer tokens")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`igfeed {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// commandFlags collects the flags the user actually set, keyed the way
// config.MergeCommandLineFlags expects
func commandFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	set := func(name string, value interface{}) {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			flags[name] = value
		}
	}
	set("log-level", logLevel)
	set("sessions-dir", sessionsDir)
	set("session-backends", sessionBackends)
	set("jwt-secret", jwtSecret)
	set("addr", serveAddr)
	set("debug", serveDebug)
	return flags
}

// loadConfig loads the configuration and initializes the global logger,
// exiting on failure
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load(configFile, commandFlags(cmd))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}
	return cfg
}
