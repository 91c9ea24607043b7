package instagram

import (
	"encoding/json"

	"igfeed/pkg/models"
)

// ProfileResponse is the body of ProfileEndpoint
type ProfileResponse struct {
	RequiresToLogin bool        `json:"requires_to_login"`
	Data            ProfileData `json:"data"`
	Status          string      `json:"status"`
}

// ProfileData wraps the user information in the response
type ProfileData struct {
	User *User `json:"user"`
}

// User represents an Instagram user profile
type User struct {
	ID                       string        `json:"id"`
	Username                 string        `json:"username"`
	FullName                 string        `json:"full_name"`
	IsPrivate                bool          `json:"is_private"`
	ProfilePicURL            string        `json:"profile_pic_url"`
	ProfilePicURLHD          string        `json:"profile_pic_url_hd"`
	EdgeOwnerToTimelineMedia TimelineMedia `json:"edge_owner_to_timeline_media"`
}

// TimelineMedia contains one page of the user's posts
type TimelineMedia struct {
	Count    int      `json:"count"`
	PageInfo PageInfo `json:"page_info"`
	Edges    []Edge   `json:"edges"`
}

// PageInfo contains pagination information
type PageInfo struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor"`
}

// Edge wraps a single media node
type Edge struct {
	Node Node `json:"node"`
}

// Node represents a single media item (photo or video)
type Node struct {
	ID         string `json:"id"`
	Shortcode  string `json:"shortcode"`
	DisplayURL string `json:"display_url"`
	IsVideo    bool   `json:"is_video"`
	VideoURL   string `json:"video_url"`
}

// MediaResponse is the body of MediaEndpoint
type MediaResponse struct {
	Data struct {
		User *struct {
			EdgeOwnerToTimelineMedia TimelineMedia `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"data"`
	Status string `json:"status"`
}

// ReelsMediaResponse is the body of ReelsMediaEndpoint
type ReelsMediaResponse struct {
	ReelsMedia []ReelMedia `json:"reels_media"`
	Status     string      `json:"status"`
}

// ReelMedia is one story reel or highlight reel with its items
type ReelMedia struct {
	User  ReelOwner  `json:"user"`
	Items []ReelItem `json:"items"`
}

// ReelOwner identifies the owner of a reel
type ReelOwner struct {
	PK json.Number `json:"pk"`
}

// Media types used by reel items
const (
	MediaTypeImage = 1
	MediaTypeVideo = 2
)

// ReelItem is a story or highlight item
type ReelItem struct {
	ID             string          `json:"id"`
	MediaType      int             `json:"media_type"`
	ImageVersions2 ImageVersions   `json:"image_versions2"`
	VideoVersions  []ImageResource `json:"video_versions"`
}

// ImageVersions lists the renditions of an image
type ImageVersions struct {
	Candidates []ImageResource `json:"candidates"`
}

// ImageResource is one rendition of an image or video
type ImageResource struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// HighlightsTrayResponse is the body of the highlights tray endpoint
type HighlightsTrayResponse struct {
	Tray   []TrayReel `json:"tray"`
	Status string     `json:"status"`
}

// TrayReel is the summary of a highlight reel
type TrayReel struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	MediaCount int    `json:"media_count"`
	CoverMedia struct {
		CroppedImageVersion ImageResource `json:"cropped_image_version"`
	} `json:"cover_media"`
}

// UserInfoResponse is the body of the user info endpoint
type UserInfoResponse struct {
	User struct {
		HDProfilePicURLInfo  ImageResource   `json:"hd_profile_pic_url_info"`
		HDProfilePicVersions []ImageResource `json:"hd_profile_pic_versions"`
	} `json:"user"`
	Status string `json:"status"`
}

// LoginResponse is the body of the login endpoints
type LoginResponse struct {
	Authenticated     bool   `json:"authenticated"`
	User              bool   `json:"user"`
	UserID            string `json:"userId"`
	Status            string `json:"status"`
	Message           string `json:"message"`
	CheckpointURL     string `json:"checkpoint_url"`
	TwoFactorRequired bool   `json:"two_factor_required"`
	TwoFactorInfo     struct {
		TwoFactorIdentifier string `json:"two_factor_identifier"`
	} `json:"two_factor_info"`
}

// best returns the resource with the largest area
func best(resources []ImageResource) (ImageResource, bool) {
	var chosen ImageResource
	found := false
	for _, r := range resources {
		if r.URL == "" {
			continue
		}
		if !found || r.Width*r.Height > chosen.Width*chosen.Height {
			chosen = r
			found = true
		}
	}
	return chosen, found
}

func (n Node) mediaItem() models.MediaItem {
	item := models.MediaItem{ID: n.ID, URL: n.DisplayURL, IsVideo: n.IsVideo}
	if n.IsVideo {
		item.VideoURL = n.VideoURL
	}
	return item
}

func (i ReelItem) mediaItem() models.MediaItem {
	item := models.MediaItem{ID: i.ID}
	if img, ok := best(i.ImageVersions2.Candidates); ok {
		item.URL = img.URL
	}
	if i.MediaType == MediaTypeVideo {
		item.IsVideo = true
		if video, ok := best(i.VideoVersions); ok {
			item.VideoURL = video.URL
		}
	}
	return item
}

func (u *User) profile() *models.Profile {
	return &models.Profile{
		UserID:          u.ID,
		Username:        u.Username,
		FullName:        u.FullName,
		IsPrivate:       u.IsPrivate,
		MediaCount:      u.EdgeOwnerToTimelineMedia.Count,
		ProfilePicURL:   u.ProfilePicURL,
		ProfilePicURLHD: u.ProfilePicURLHD,
	}
}
