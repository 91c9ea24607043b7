package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"igfeed/internal/metrics"
	"igfeed/internal/server"
	"igfeed/pkg/instagram"
	"igfeed/pkg/logger"
	"igfeed/pkg/session"
	"igfeed/pkg/ui"
)

var (
	serveAddr  string
	serveDebug bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API until interrupted.

A JWT secret is required (--jwt-secret or IGFEED_JWT_SECRET). With --debug
the /generate/{username} route mints tokens without credentials; never
enable it on a reachable address.`,
	Example: `  # Listen on the default address
  igfeed serve --jwt-secret "$(openssl rand -hex 32)"

  # Custom address with debug routes
  igfeed serve --addr 127.0.0.1:8080 --debug`,
	Args: cobra.NoArgs,
	Run:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :5000)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "enable debug routes and logging")
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	if err := cfg.RequireSecret(); err != nil {
		ui.PrintError("Cannot start server", err.Error())
		os.Exit(1)
	}

	ui.PrintBanner()
	log := logger.GetLogger()

	sessions, err := session.Open(cfg.Sessions, log)
	if err != nil {
		ui.PrintError("Failed to open session stores", err.Error())
		os.Exit(1)
	}

	var m *metrics.Metrics
	if cfg.Server.MetricsEnabled {
		m = metrics.New()
	}

	srv, err := server.New(cfg, server.Deps{
		Engine:   instagram.NewEngine(cfg.Instagram, log.WithField("component", "instagram")),
		Sessions: sessions,
		Logger:   log,
		Metrics:  m,
	})
	if err != nil {
		ui.PrintError("Failed to build server", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintInfo("Listening on", cfg.Server.Address)
	if cfg.Server.Debug {
		ui.PrintWarning("Debug mode is on, /generate is reachable")
	}

	if err := srv.Run(ctx); err != nil {
		log.WithError(err).Error("Server stopped with error")
		ui.PrintError("Server stopped", err.Error())
		stop()
		os.Exit(1)
	}
	ui.PrintSuccess("Server stopped")
}
