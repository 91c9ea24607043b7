package session

import (
	"os"

	"igfeed/pkg/models"
)

// Environment variables read by EnvironmentStore
const (
	EnvUsername  = "IGFEED_SESSION_USERNAME"
	EnvSessionID = "IGFEED_SESSIONID"
	EnvCSRFToken = "IGFEED_CSRFTOKEN"
	EnvUserID    = "IGFEED_DS_USER_ID"
)

// EnvironmentStore exposes a single read-only session taken from the
// environment. It is meant for containers where the cookies are injected
// as secrets.
type EnvironmentStore struct {
	getenv func(string) string
}

// NewEnvironmentStore creates a new environment-based session store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{getenv: os.Getenv}
}

// Save is not supported for environment variables
func (e *EnvironmentStore) Save(s *models.Session) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) session() *models.Session {
	s := &models.Session{
		Username: e.getenv(EnvUsername),
		UserID:   e.getenv(EnvUserID),
		Cookies: map[string]string{
			models.CookieSessionID: e.getenv(EnvSessionID),
			models.CookieCSRFToken: e.getenv(EnvCSRFToken),
		},
	}
	if s.UserID != "" {
		s.Cookies[models.CookieUserID] = s.UserID
	}
	if !s.Valid() {
		return nil
	}
	return s
}

func (e *EnvironmentStore) Load(username string) (*models.Session, error) {
	s := e.session()
	if s == nil || s.Username != username {
		return nil, ErrNotFound
	}
	return s, nil
}

func (e *EnvironmentStore) List() ([]*models.Session, error) {
	if s := e.session(); s != nil {
		return []*models.Session{s}, nil
	}
	return []*models.Session{}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(username string) bool {
	s := e.session()
	return s != nil && s.Username == username
}
