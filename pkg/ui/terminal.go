// Package ui prints the CLI's human facing output. Logs go through the
// logger package; this is only for prompts, banners and results.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Banner is printed by the long running commands
const Banner = `
    ╔════════════════════════════════════════════╗
    ║  ██╗ ██████╗ ███████╗███████╗███████╗██████╗  ║
    ║  ██║██╔════╝ ██╔════╝██╔════╝██╔════╝██╔══██╗ ║
    ║  ██║██║  ███╗█████╗  █████╗  █████╗  ██║  ██║ ║
    ║  ██║██║   ██║██╔══╝  ██╔══╝  ██╔══╝  ██║  ██║ ║
    ║  ██║╚██████╔╝██║     ███████╗███████╗██████╔╝ ║
    ║  ╚═╝ ╚═════╝ ╚═╝     ╚══════╝╚══════╝╚═════╝  ║
    ║        PROFILE FEED API FOR INSTAGRAM         ║
    ╚════════════════════════════════════════════╝
`

var (
	mu      sync.Mutex
	out     io.Writer = os.Stdout
	noColor bool
	quiet   bool
)

// Color functions for terminal output
var (
	Cyan    = colorize("\033[36m%s\033[0m")
	Yellow  = colorize("\033[33m%s\033[0m")
	Red     = colorize("\033[31m%s\033[0m")
	Green   = colorize("\033[32m%s\033[0m")
	Magenta = colorize("\033[35m%s\033[0m")
	Dim     = colorize("\033[2m%s\033[0m")
)

// SetOutput redirects all output, mostly for tests
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetColor toggles ANSI colors
func SetColor(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	noColor = !enabled
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = enabled
}

// colorize returns a function that wraps text with ANSI color codes
func colorize(colorString string) func(string) string {
	return func(text string) string {
		mu.Lock()
		plain := noColor
		mu.Unlock()
		if plain {
			return text
		}
		return fmt.Sprintf(colorString, text)
	}
}

func write(always bool, s string) {
	mu.Lock()
	defer mu.Unlock()
	if quiet && !always {
		return
	}
	fmt.Fprint(out, s)
}

// PrintBanner prints the banner with color
func PrintBanner() {
	write(false, Cyan(Banner))
}

// PrintError prints an error message in red. It is shown even in quiet mode.
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		msg = msg + ": " + fmt.Sprint(args[0])
	}
	write(true, Red(msg)+"\n")
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	write(false, Green(msg)+"\n")
}

// PrintInfo prints a label and its value
func PrintInfo(label string, value string) {
	write(false, fmt.Sprintf("%s: %s\n", Cyan(label), Yellow(value)))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		msg = msg + ": " + fmt.Sprint(args[0])
	}
	write(false, Yellow(msg)+"\n")
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	write(false, Magenta(msg)+"\n")
}

// Println prints plain text, honoring quiet mode
func Println(a ...interface{}) {
	write(false, fmt.Sprintln(a...))
}
