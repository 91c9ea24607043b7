package instagram

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// AppID is the web client id Instagram expects on API calls
	AppID = "936619743392459"

	// LoginEndpoint accepts the password login form
	LoginEndpoint = "/api/v1/web/accounts/login/ajax/"

	// TwoFactorEndpoint accepts the verification code of a pending login
	TwoFactorEndpoint = "/accounts/login/ajax/two_factor/"

	// ProfileEndpoint is the endpoint pattern for user profiles
	ProfileEndpoint = "/api/v1/users/web_profile_info/"

	// MediaEndpoint is the endpoint pattern for user media
	MediaEndpoint = "/graphql/query/"

	// MediaQueryHash is the query hash for fetching user media
	MediaQueryHash = "e769aa130647d2354c40ea6a439bfc08"

	// ReelsMediaEndpoint returns story and highlight items by reel id
	ReelsMediaEndpoint = "/api/v1/feed/reels_media/"

	// DefaultMediaLimit is the default number of media items to fetch per request
	DefaultMediaLimit = 12

	// MaxMediaLimit is the maximum number of media items that can be fetched per request
	MaxMediaLimit = 50

	highlightPrefix = "highlight:"
)

// HighlightsTrayPath lists the highlight reels of a user
func HighlightsTrayPath(userID string) string {
	return fmt.Sprintf("/api/v1/highlights/%s/highlights_tray/", url.PathEscape(userID))
}

// UserInfoPath returns the private info endpoint of a user
func UserInfoPath(userID string) string {
	return fmt.Sprintf("/api/v1/users/%s/info/", url.PathEscape(userID))
}

// ProfileQuery builds the query of ProfileEndpoint
func ProfileQuery(username string) url.Values {
	params := url.Values{}
	params.Set("username", username)
	return params
}

// MediaQuery builds the query of MediaEndpoint for one timeline page
func MediaQuery(userID, after string, limit int) url.Values {
	// Ensure limit is within bounds
	if limit <= 0 {
		limit = DefaultMediaLimit
	} else if limit > MaxMediaLimit {
		limit = MaxMediaLimit
	}

	variables := struct {
		ID    string `json:"id"`
		First int    `json:"first"`
		After string `json:"after,omitempty"`
	}{ID: userID, First: limit, After: after}
	encoded, _ := json.Marshal(variables)

	params := url.Values{}
	params.Set("query_hash", MediaQueryHash)
	params.Set("variables", string(encoded))
	return params
}

// ReelsQuery builds the query of ReelsMediaEndpoint
func ReelsQuery(reelIDs ...string) url.Values {
	params := url.Values{}
	for _, id := range reelIDs {
		params.Add("reel_ids", id)
	}
	return params
}

// HighlightReelID turns a numeric highlight id into its reel id
func HighlightReelID(id int64) string {
	return highlightPrefix + strconv.FormatInt(id, 10)
}

// ParseHighlightID extracts the numeric id from "highlight:<id>"
func ParseHighlightID(reelID string) (int64, error) {
	return strconv.ParseInt(strings.TrimPrefix(reelID, highlightPrefix), 10, 64)
}

// EncryptPassword formats a password the way the web login form submits it
func EncryptPassword(password string, unix int64) string {
	return fmt.Sprintf("#PWD_INSTAGRAM_BROWSER:0:%d:%s", unix, password)
}

// SanitizeUsername strips a leading "@" and trailing slashes or spaces,
// so pasted handles and profile links resolve
func SanitizeUsername(username string) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	return strings.TrimRight(username, "/ ")
}
