package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"igfeed/pkg/token"
	"igfeed/pkg/ui"
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token <username>",
	Short: "Mint a bearer token offline",
	Long: `Mint a bearer token for username with the configured secret.

The token only grants stories and highlights when a session for username is
stored; use 'igfeed session login' or 'igfeed session import' first.`,
	Args: cobra.ExactArgs(1),
	Run:  runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	if err := cfg.RequireSecret(); err != nil {
		ui.PrintError("Cannot mint token", err.Error())
		os.Exit(1)
	}

	issuer, err := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		ui.PrintError("Cannot mint token", err.Error())
		os.Exit(1)
	}
	tok, err := issuer.Issue(args[0])
	if err != nil {
		ui.PrintError("Cannot mint token", err.Error())
		os.Exit(1)
	}

	// printed unconditionally so it can be piped
	fmt.Println(tok)
}
