package models

import (
	"iter"
	"time"
)

// Profile is the subset of a public profile the API needs
type Profile struct {
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	FullName        string `json:"full_name"`
	IsPrivate       bool   `json:"is_private"`
	MediaCount      int    `json:"media_count"`
	ProfilePicURL   string `json:"profile_pic_url"`
	ProfilePicURLHD string `json:"profile_pic_url_hd"`
}

// MediaItem is a single post, story or highlight item.
// VideoURL is empty unless IsVideo is set.
type MediaItem struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	IsVideo  bool   `json:"is_video"`
	VideoURL string `json:"video_url,omitempty"`
}

// Story groups the currently live story items of one user
type Story struct {
	UserID string
	Items  []MediaItem
}

// Reel is a highlight reel. Items is lazy and may hit the network.
type Reel struct {
	UniqueID        int64
	Title           string
	CoverCroppedURL string
	ItemCount       int
	Items           iter.Seq2[MediaItem, error]
}

// Session is the persisted cookie state of one logged in account
type Session struct {
	Username  string            `json:"username"`
	UserID    string            `json:"user_id,omitempty"`
	Cookies   map[string]string `json:"cookies"`
	UserAgent string            `json:"user_agent,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Cookie names the upstream session relies on
const (
	CookieSessionID = "sessionid"
	CookieCSRFToken = "csrftoken"
	CookieUserID    = "ds_user_id"
	CookieMachineID = "mid"
	CookieDeviceID  = "ig_did"
)

// Valid reports whether the session carries the cookies required for authenticated calls
func (s *Session) Valid() bool {
	return s != nil && s.Username != "" && s.Cookies[CookieSessionID] != "" && s.Cookies[CookieCSRFToken] != ""
}

// TwoFactorChallenge is the engine state kept between a password login
// and the matching verification code
type TwoFactorChallenge struct {
	Username   string
	Identifier string
	Cookies    map[string]string
	UserAgent  string
}
