package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igfeed/pkg/config"
	"igfeed/pkg/instagram"
	"igfeed/pkg/logger"
	"igfeed/pkg/models"
	"igfeed/pkg/scraper"
	"igfeed/pkg/session"
	"igfeed/pkg/ui"
)

// sessionCmd represents the session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored Instagram sessions",
	Long: `Manage the Instagram sessions the API reads stories and highlights with.

Sessions are stored per username in the configured backends:
  - file       plain JSON files in the sessions directory
  - encrypted  one AES-GCM vault, key derived from IGFEED_SESSION_PASSPHRASE
  - keyring    the system keychain
  - env        IGFEED_SESSION_* variables (read only)

Session cookies grant full access to the account. Never share them!`,
}

var sessionLoginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in with a password and store the session",
	Long: `Log in to Instagram with username and password and store the resulting
session. The password and any verification code are read without echo.`,
	Example: `  # Interactive login
  igfeed session login

  # Login with username
  igfeed session login myusername`,
	Args: cobra.MaximumNArgs(1),
	Run:  runSessionLogin,
}

var sessionImportCmd = &cobra.Command{
	Use:   "import <username>",
	Short: "Store a session copied from a browser",
	Long: `Store a session from the cookies of a browser that is already logged in.
Useful when the password login is blocked by a checkpoint.`,
	Args: cobra.ExactArgs(1),
	Run:  runSessionImport,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Long:  `List all stored sessions with masked cookie values.`,
	Args:  cobra.NoArgs,
	Run:   runSessionList,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Remove a stored session",
	Args:  cobra.ExactArgs(1),
	Run:   runSessionDelete,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLoginCmd)
	sessionCmd.AddCommand(sessionImportCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
}

func openSessions(cfg *config.Config) *session.Manager {
	manager, err := session.Open(cfg.Sessions, logger.GetLogger())
	if err != nil {
		ui.PrintError("Failed to open session stores", err.Error())
		os.Exit(1)
	}
	return manager
}

func runSessionLogin(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	manager := openSessions(cfg)
	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		username = prompt(reader, "Instagram username: ")
	}
	username = instagram.SanitizeUsername(username)
	if err := session.ValidUsername(username); err != nil {
		ui.PrintError("Invalid username", err.Error())
		os.Exit(1)
	}

	if manager.Exists(username) && !confirm(reader, fmt.Sprintf("Session for '%s' already exists. Replace it? (y/N): ", username)) {
		return
	}

	fmt.Print("Password: ")
	password, err := readSecret(reader)
	if err != nil {
		ui.PrintError("Failed to read password", err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine := instagram.NewEngine(cfg.Instagram, logger.GetLogger().WithField("component", "instagram"))
	s, err := engine.Login(ctx, username, password)

	var tfa *scraper.TwoFactorRequiredError
	if errors.As(err, &tfa) {
		ui.PrintWarning("Two-factor authentication required")
		fmt.Print("Verification code: ")
		code, readErr := readSecret(reader)
		if readErr != nil {
			ui.PrintError("Failed to read verification code", readErr.Error())
			os.Exit(1)
		}
		s, err = engine.TwoFactorLogin(ctx, tfa.Challenge, code)
	}
	if err != nil {
		logger.LogLogin(logger.GetLogger(), username, "cli", "failed")
		ui.PrintError("Login failed", err.Error())
		os.Exit(1)
	}

	saveSession(manager, s)
}

func runSessionImport(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	manager := openSessions(cfg)
	reader := bufio.NewReader(os.Stdin)

	username := instagram.SanitizeUsername(args[0])
	session.WriteCookieGuide(os.Stdout)
	fmt.Println()

	if manager.Exists(username) && !confirm(reader, fmt.Sprintf("Session for '%s' already exists. Replace it? (y/N): ", username)) {
		return
	}

	fmt.Print("Cookie header (hidden): ")
	header, err := readSecret(reader)
	if err != nil {
		ui.PrintError("Failed to read cookies", err.Error())
		os.Exit(1)
	}

	s, err := session.ParseCookieHeader(username, header)
	if err != nil {
		ui.PrintError("Invalid cookies", err.Error())
		os.Exit(1)
	}
	s.UserAgent = cfg.Instagram.UserAgent

	saveSession(manager, s)
}

func saveSession(manager *session.Manager, s *models.Session) {
	if err := manager.Save(s); err != nil {
		ui.PrintError("Failed to store session", err.Error())
		os.Exit(1)
	}
	logger.GetLogger().WithField("username", s.Username).Info("Session stored")
	ui.PrintSuccess("Session stored: " + s.Username)
	ui.Println("\nMint a token for it with:")
	ui.Println("  igfeed token " + s.Username)
}

func runSessionList(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	manager := openSessions(cfg)

	sessions, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list sessions", err.Error())
		os.Exit(1)
	}
	if len(sessions) == 0 {
		ui.PrintInfo("No stored sessions", "Use 'igfeed session login' to add one")
		return
	}

	ui.PrintHighlight("Stored Sessions")
	ui.Println()
	for i, s := range sessions {
		masked := session.Sanitize(s)
		ui.Println(fmt.Sprintf("%d. Username: %s", i+1, masked.Username))
		if masked.UserID != "" {
			ui.Println(fmt.Sprintf("   User ID: %s", masked.UserID))
		}
		names := make([]string, 0, len(masked.Cookies))
		for name := range masked.Cookies {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ui.Println(fmt.Sprintf("   %s: %s", name, masked.Cookies[name]))
		}
		if !masked.UpdatedAt.IsZero() {
			ui.Println(fmt.Sprintf("   Last Modified: %s", masked.UpdatedAt.Format("2006-01-02 15:04:05")))
		}
		ui.Println()
	}
}

func runSessionDelete(cmd *cobra.Command, args []string) {
	cfg := loadConfig(cmd)
	manager := openSessions(cfg)

	username := instagram.SanitizeUsername(args[0])
	if err := manager.Delete(username); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			ui.PrintError("No stored session", username)
		} else {
			ui.PrintError("Failed to remove session", err.Error())
		}
		os.Exit(1)
	}
	ui.PrintSuccess("Session removed: " + username)
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		ui.PrintError("Failed to read input", err.Error())
		os.Exit(1)
	}
	return strings.TrimSpace(input)
}

func confirm(reader *bufio.Reader, label string) bool {
	return strings.HasPrefix(strings.ToLower(prompt(reader, label)), "y")
}

// readSecret reads a line from stdin without echoing when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
