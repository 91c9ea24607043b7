// Package session persists per-username upstream sessions. The presence of
// a loadable session is what makes a request "accessed" rather than
// anonymous.
package session

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"igfeed/pkg/models"
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrInvalidSession   = errors.New("invalid session")
	ErrInvalidUsername  = errors.New("invalid username")
	ErrStoreUnavailable = errors.New("session store unavailable")
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._]{1,30}$`)

// ValidUsername checks name against the upstream username alphabet.
// Valid names are also safe file names.
func ValidUsername(name string) error {
	if !usernamePattern.MatchString(name) || name[0] == '.' {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, name)
	}
	return nil
}

// Store is the interface for storing and retrieving sessions
type Store interface {
	// Save persists s under s.Username, replacing any previous session
	Save(s *models.Session) error

	// Load returns the session of username or ErrNotFound
	Load(username string) (*models.Session, error)

	// List returns all stored sessions
	List() ([]*models.Session, error)

	// Delete removes the session of username or returns ErrNotFound
	Delete(username string) error

	// Exists checks if a session exists for username
	Exists(username string) bool
}

// Manager handles session storage with fallback across backends
type Manager struct {
	stores []Store
	now    func() time.Time
}

// NewManager creates a manager trying stores in order
func NewManager(stores ...Store) *Manager {
	return &Manager{stores: stores, now: time.Now}
}

func validate(s *models.Session) error {
	if s == nil {
		return fmt.Errorf("%w: nil session", ErrInvalidSession)
	}
	if err := ValidUsername(s.Username); err != nil {
		return err
	}
	if !s.Valid() {
		return fmt.Errorf("%w: sessionid and csrftoken cookies are required", ErrInvalidSession)
	}
	return nil
}

// Save writes the session to the first store that accepts it
func (m *Manager) Save(s *models.Session) error {
	if err := validate(s); err != nil {
		return err
	}

	now := m.now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	var lastErr error
	for _, store := range m.stores {
		err := store.Save(s)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store session: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Load returns the session from the first store that has it.
// A store failing for reasons other than a missing session is reported
// only when no other store has the session.
func (m *Manager) Load(username string) (*models.Session, error) {
	if err := ValidUsername(username); err != nil {
		return nil, err
	}

	var failure error
	for _, store := range m.stores {
		s, err := store.Load(username)
		if err == nil && s != nil {
			return s, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) && failure == nil {
			failure = err
		}
	}

	if failure != nil {
		return nil, fmt.Errorf("failed to load session for %s: %w", username, failure)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, username)
}

// List merges all stores, keeping the most recently updated copy per username
func (m *Manager) List() ([]*models.Session, error) {
	byUser := make(map[string]*models.Session)

	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			continue
		}
		for _, s := range sessions {
			if existing, ok := byUser[s.Username]; !ok || s.UpdatedAt.After(existing.UpdatedAt) {
				byUser[s.Username] = s
			}
		}
	}

	result := make([]*models.Session, 0, len(byUser))
	for _, s := range byUser {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

// Delete removes the session from every store holding it
func (m *Manager) Delete(username string) error {
	if err := ValidUsername(username); err != nil {
		return err
	}

	deleted := false
	var lastErr error
	for _, store := range m.stores {
		err := store.Delete(username)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	return fmt.Errorf("%w: %s", ErrNotFound, username)
}

// Exists checks if any store holds a session for username
func (m *Manager) Exists(username string) bool {
	if ValidUsername(username) != nil {
		return false
	}
	for _, store := range m.stores {
		if store.Exists(username) {
			return true
		}
	}
	return false
}

// Sanitize returns a copy with cookie values masked, for display
func Sanitize(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}

	masked := *s
	masked.Cookies = make(map[string]string, len(s.Cookies))
	for k, v := range s.Cookies {
		masked.Cookies[k] = maskString(v)
	}
	return &masked
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
