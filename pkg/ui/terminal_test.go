package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetColor(false)
	SetQuietMode(false)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetColor(true)
		SetQuietMode(false)
	})
	return &buf
}

func TestPrintHelpers(t *testing.T) {
	buf := capture(t)

	PrintInfo("Listening on", ":5000")
	PrintError("Failed to load configuration", "bad yaml")
	PrintError("Username is required", "")
	PrintSuccess("Session saved")

	assert.Equal(t, "Listening on: :5000\n"+
		"Failed to load configuration: bad yaml\n"+
		"Username is required\n"+
		"Session saved\n", buf.String())
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := capture(t)
	SetQuietMode(true)

	PrintBanner()
	PrintWarning("Keyring unavailable")
	PrintError("Login failed", "wrong password")

	assert.Equal(t, "Login failed: wrong password\n", buf.String())
}

func TestColors(t *testing.T) {
	capture(t)
	assert.Equal(t, "plain", Red("plain"))

	SetColor(true)
	assert.Equal(t, "\033[31mred\033[0m", Red("red"))
}
