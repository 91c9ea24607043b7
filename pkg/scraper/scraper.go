package scraper

import (
	"context"

	"igfeed/pkg/feed"
	"igfeed/pkg/logger"
	"igfeed/pkg/models"
)

// Service runs the read paths of the API against a Reader. Every path
// resolves the profile first so a missing or hidden profile is reported
// with the upstream message before anything else is fetched.
type Service struct {
	logger logger.Logger
}

// New creates a Service
func New(log logger.Logger) *Service {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Service{logger: log}
}

func (s *Service) resolve(ctx context.Context, r Reader, username string) (*models.Profile, error) {
	profile, err := r.ResolveProfile(ctx, username)
	if err != nil {
		s.logger.WithError(err).WithField("username", username).Debug("Profile lookup failed")
		return nil, err
	}
	return profile, nil
}

// Gate hands out the reader of a session-gated path. It is only called
// once the profile lookup has succeeded.
type Gate func() (Reader, error)

// Allow returns a Gate that always hands out r
func Allow(r Reader) Gate {
	return func() (Reader, error) { return r, nil }
}

// gated resolves username with lookup, then passes the gate
func (s *Service) gated(ctx context.Context, lookup Reader, gate Gate, username string) (Reader, *models.Profile, error) {
	profile, err := s.resolve(ctx, lookup, username)
	if err != nil {
		return nil, nil, err
	}
	r, err := gate()
	if err != nil {
		return nil, nil, err
	}
	return r, profile, nil
}

// Stories returns every live story item of username
func (s *Service) Stories(ctx context.Context, lookup Reader, gate Gate, username string) ([]feed.Entry, error) {
	r, profile, err := s.gated(ctx, lookup, gate, username)
	if err != nil {
		return nil, err
	}

	entries, err := feed.CollectStories(r.Stories(ctx, profile.UserID))
	if err != nil {
		return nil, err
	}

	s.logger.DebugWithFields("Stories collected", map[string]interface{}{
		"username": username,
		"items":    len(entries),
	})
	return entries, nil
}

// Highlights lists the highlight reels of username
func (s *Service) Highlights(ctx context.Context, lookup Reader, gate Gate, username string) ([]feed.HighlightSummary, error) {
	r, profile, err := s.gated(ctx, lookup, gate, username)
	if err != nil {
		return nil, err
	}
	return feed.SummarizeHighlights(r.Highlights(ctx, profile.UserID))
}

// HighlightPage returns one page of the reel reelID of username
func (s *Service) HighlightPage(ctx context.Context, lookup Reader, gate Gate, username string, reelID int64, page int) ([]feed.Entry, error) {
	r, profile, err := s.gated(ctx, lookup, gate, username)
	if err != nil {
		return nil, err
	}

	entries, err := feed.SelectHighlightPage(r.Highlights(ctx, profile.UserID), reelID, page)
	if err != nil {
		return nil, err
	}

	s.logger.DebugWithFields("Highlight page served", map[string]interface{}{
		"username": username,
		"reel_id":  reelID,
		"page":     page,
		"items":    len(entries),
	})
	return entries, nil
}

// ProfilePage returns one page of the timeline of username.
// The profile's post count lets pages past the end skip the timeline fetch.
func (s *Service) ProfilePage(ctx context.Context, r Reader, username string, page int) ([]feed.Entry, error) {
	profile, err := s.resolve(ctx, r, username)
	if err != nil {
		return nil, err
	}

	entries, err := feed.Paginate(r.Posts(ctx, profile), profile.MediaCount, page)
	if err != nil {
		return nil, err
	}

	s.logger.DebugWithFields("Profile page served", map[string]interface{}{
		"username":    username,
		"page":        page,
		"items":       len(entries),
		"media_count": profile.MediaCount,
	})
	return entries, nil
}

// ProfilePicture returns the best available profile picture URL of username
func (s *Service) ProfilePicture(ctx context.Context, r Reader, username string) (string, error) {
	profile, err := s.resolve(ctx, r, username)
	if err != nil {
		return "", err
	}
	return r.ProfilePicture(ctx, profile)
}
