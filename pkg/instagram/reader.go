package instagram

import (
	"context"
	"errors"
	"iter"
	"net/http"

	errs "igfeed/pkg/errors"
	"igfeed/pkg/models"
)

// ResolveProfile looks a profile up by username. The first timeline page
// of the response is kept so Posts does not fetch it again.
func (c *Client) ResolveProfile(ctx context.Context, username string) (*models.Profile, error) {
	username = SanitizeUsername(username)
	c.logger.DebugWithFields("fetching user profile", map[string]interface{}{
		"username": username,
	})

	var response ProfileResponse
	err := c.getJSON(ctx, ProfileEndpoint, ProfileQuery(username), &response)
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return nil, profileNotFound(username)
	case errs.KindUnauthorized:
		return nil, loginRequired(username)
	}
	if err != nil {
		c.logger.ErrorWithFields("failed to fetch user profile", map[string]interface{}{
			"username": username,
			"error":    err.Error(),
		})
		return nil, err
	}

	// Check if login is required
	if response.RequiresToLogin {
		c.logger.WarnWithFields("authentication required for profile", map[string]interface{}{
			"username": username,
		})
		return nil, loginRequired(username)
	}
	if response.Data.User == nil || response.Data.User.ID == "" {
		return nil, profileNotFound(username)
	}

	user := response.Data.User
	if user.Username == "" {
		user.Username = username
	}

	c.mu.Lock()
	c.timeline[user.ID] = user.EdgeOwnerToTimelineMedia
	c.mu.Unlock()

	return user.profile(), nil
}

func profileNotFound(username string) error {
	return errs.Newf(errs.KindNotFound, http.StatusNotFound, "Profile %s does not exist.", username)
}

func loginRequired(username string) error {
	return errs.Newf(errs.KindUnauthorized, http.StatusUnauthorized, "Login required to view profile %s.", username)
}

func (c *Client) cachedTimeline(userID string) (TimelineMedia, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	media, ok := c.timeline[userID]
	return media, ok
}

// fetchTimeline fetches the timeline page following cursor
func (c *Client) fetchTimeline(ctx context.Context, userID, cursor string) (TimelineMedia, error) {
	c.logger.DebugWithFields("fetching user media", map[string]interface{}{
		"user_id": userID,
		"after":   cursor,
	})

	var response MediaResponse
	if err := c.getJSON(ctx, MediaEndpoint, MediaQuery(userID, cursor, DefaultMediaLimit), &response); err != nil {
		return TimelineMedia{}, err
	}
	if response.Data.User == nil {
		return TimelineMedia{}, errs.New(errs.KindParsing, 0, "timeline response carries no user")
	}
	return response.Data.User.EdgeOwnerToTimelineMedia, nil
}

// Posts walks the timeline of profile page by page. A page is only fetched
// once the consumer has ranged past the previous one.
func (c *Client) Posts(ctx context.Context, profile *models.Profile) iter.Seq2[models.MediaItem, error] {
	return func(yield func(models.MediaItem, error) bool) {
		media, ok := c.cachedTimeline(profile.UserID)
		if !ok {
			var err error
			if media, err = c.fetchTimeline(ctx, profile.UserID, ""); err != nil {
				yield(models.MediaItem{}, err)
				return
			}
		}

		for {
			for _, edge := range media.Edges {
				if !yield(edge.Node.mediaItem(), nil) {
					return
				}
			}
			if !media.PageInfo.HasNextPage || media.PageInfo.EndCursor == "" {
				return
			}

			var err error
			if media, err = c.fetchTimeline(ctx, profile.UserID, media.PageInfo.EndCursor); err != nil {
				yield(models.MediaItem{}, err)
				return
			}
		}
	}
}

func (c *Client) reelsMedia(ctx context.Context, reelIDs ...string) ([]ReelMedia, error) {
	var response ReelsMediaResponse
	if err := c.getJSON(ctx, ReelsMediaEndpoint, ReelsQuery(reelIDs...), &response); err != nil {
		return nil, err
	}
	return response.ReelsMedia, nil
}

// Stories yields the live story reel of every user that has one
func (c *Client) Stories(ctx context.Context, userIDs ...string) iter.Seq2[models.Story, error] {
	return func(yield func(models.Story, error) bool) {
		if len(userIDs) == 0 {
			return
		}
		reels, err := c.reelsMedia(ctx, userIDs...)
		if err != nil {
			yield(models.Story{}, err)
			return
		}
		for _, reel := range reels {
			story := models.Story{UserID: reel.User.PK.String()}
			for _, item := range reel.Items {
				story.Items = append(story.Items, item.mediaItem())
			}
			if !yield(story, nil) {
				return
			}
		}
	}
}

// Highlights yields the highlight reels of userID. Reel items are fetched
// only when a reel's Items sequence is ranged over.
func (c *Client) Highlights(ctx context.Context, userID string) iter.Seq2[models.Reel, error] {
	return func(yield func(models.Reel, error) bool) {
		var response HighlightsTrayResponse
		if err := c.getJSON(ctx, HighlightsTrayPath(userID), nil, &response); err != nil {
			yield(models.Reel{}, err)
			return
		}

		for _, tray := range response.Tray {
			id, err := ParseHighlightID(tray.ID)
			if err != nil {
				c.logger.WarnWithFields("skipping highlight with unexpected id", map[string]interface{}{
					"id": tray.ID,
				})
				continue
			}
			reel := models.Reel{
				UniqueID:        id,
				Title:           tray.Title,
				CoverCroppedURL: tray.CoverMedia.CroppedImageVersion.URL,
				ItemCount:       tray.MediaCount,
				Items:           c.highlightItems(ctx, id),
			}
			if !yield(reel, nil) {
				return
			}
		}
	}
}

func (c *Client) highlightItems(ctx context.Context, id int64) iter.Seq2[models.MediaItem, error] {
	return func(yield func(models.MediaItem, error) bool) {
		reels, err := c.reelsMedia(ctx, HighlightReelID(id))
		if err != nil {
			yield(models.MediaItem{}, err)
			return
		}
		for _, reel := range reels {
			for _, item := range reel.Items {
				if !yield(item.mediaItem(), nil) {
					return
				}
			}
		}
	}
}

// ProfilePicture returns the largest picture available to this reader.
// The HD info endpoint needs a session; without one the profile's own
// URLs are used.
func (c *Client) ProfilePicture(ctx context.Context, profile *models.Profile) (string, error) {
	if profile.UserID != "" {
		var response UserInfoResponse
		err := c.getJSON(ctx, UserInfoPath(profile.UserID), nil, &response)
		if err == nil {
			if response.User.HDProfilePicURLInfo.URL != "" {
				return response.User.HDProfilePicURLInfo.URL, nil
			}
			if hd, ok := best(response.User.HDProfilePicVersions); ok {
				return hd.URL, nil
			}
		} else if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		} else {
			c.logger.DebugWithFields("HD profile picture unavailable", map[string]interface{}{
				"username": profile.Username,
				"error":    err.Error(),
			})
		}
	}

	if profile.ProfilePicURLHD != "" {
		return profile.ProfilePicURLHD, nil
	}
	if profile.ProfilePicURL != "" {
		return profile.ProfilePicURL, nil
	}
	return "", errs.Newf(errs.KindNotFound, http.StatusNotFound, "Profile %s has no profile picture.", profile.Username)
}
