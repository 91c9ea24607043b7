package session

import (
	"fmt"
	"io"
	"strings"
	"time"

	"igfeed/pkg/models"
)

// WriteCookieGuide prints step-by-step instructions for copying the session
// cookies out of a logged in browser
func WriteCookieGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	lines := []string{
		rule,
		"IMPORTING AN EXISTING BROWSER SESSION",
		rule,
		"",
		"1. Open https://www.instagram.com in your browser and log in.",
		"2. Open Developer Tools (F12, or Cmd+Option+I on macOS).",
		"3. Network tab: refresh, click any request to instagram.com,",
		"   then copy the whole 'Cookie:' request header.",
		"   Alternatively: Application/Storage tab > Cookies > instagram.com.",
		"",
		"Required cookies:",
		"   sessionid   long string containing %3A",
		"   csrftoken   32 character token",
		"Optional but recommended: ds_user_id, mid, ig_did",
		"",
		"These cookies grant full access to the account. Never share them.",
		rule,
	}
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}

// ParseCookieHeader turns a browser "Cookie:" header into a session for
// username. Unknown cookies are kept.
func ParseCookieHeader(username, header string) (*models.Session, error) {
	header = strings.TrimSpace(header)
	header = strings.TrimPrefix(header, "Cookie:")
	header = strings.TrimPrefix(header, "cookie:")

	cookies := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		cookies[strings.TrimSpace(name)] = strings.Trim(strings.TrimSpace(value), `"`)
	}

	now := time.Now()
	s := &models.Session{
		Username:  username,
		UserID:    cookies[models.CookieUserID],
		Cookies:   cookies,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validate(s); err != nil {
		return nil, err
	}
	return s, nil
}
