package scraper

import (
	"context"
	"iter"
	"net/http"

	errs "igfeed/pkg/errors"
	"igfeed/pkg/models"
)

// Reader retrieves public or session-scoped data for profiles.
// Sequences are lazy: nothing is fetched until they are ranged over, and
// stopping early stops fetching further pages.
type Reader interface {
	ResolveProfile(ctx context.Context, username string) (*models.Profile, error)
	Posts(ctx context.Context, profile *models.Profile) iter.Seq2[models.MediaItem, error]
	Stories(ctx context.Context, userIDs ...string) iter.Seq2[models.Story, error]
	Highlights(ctx context.Context, userID string) iter.Seq2[models.Reel, error]
	ProfilePicture(ctx context.Context, profile *models.Profile) (string, error)
}

// Engine authenticates accounts and hands out readers. Every reader it
// returns owns its cookie state, so readers for different sessions can be
// used concurrently.
type Engine interface {
	// Login returns *TwoFactorRequiredError when a verification code is needed
	Login(ctx context.Context, username, password string) (*models.Session, error)
	TwoFactorLogin(ctx context.Context, challenge *models.TwoFactorChallenge, code string) (*models.Session, error)
	Anonymous() Reader
	WithSession(s *models.Session) (Reader, error)
}

// TwoFactorMessage is reported to clients when a login needs a code
const TwoFactorMessage = "Login error: two-factor authentication required."

// TwoFactorRequiredError carries the state needed to finish a login
type TwoFactorRequiredError struct {
	Challenge *models.TwoFactorChallenge
}

func (e *TwoFactorRequiredError) Error() string {
	return TwoFactorMessage
}

// Unwrap exposes the challenge as a kinded error
func (e *TwoFactorRequiredError) Unwrap() error {
	return errs.New(errs.KindChallengeRequired, http.StatusOK, TwoFactorMessage)
}
