package session

import (
	"sync"

	"igfeed/pkg/models"
)

// MemoryStore implements Store in memory. Tests use the error fields to
// inject failures.
type MemoryStore struct {
	sessions map[string]*models.Session
	mu       sync.RWMutex

	SaveError   error
	LoadError   error
	ListError   error
	DeleteError error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.Session)}
}

func (m *MemoryStore) Save(s *models.Session) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if err := validate(s); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.Username] = clone(s)
	return nil
}

func (m *MemoryStore) Load(username string) (*models.Session, error) {
	if m.LoadError != nil {
		return nil, m.LoadError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[username]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

func (m *MemoryStore) List() ([]*models.Session, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, clone(s))
	}
	return sessions, nil
}

func (m *MemoryStore) Delete(username string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[username]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, username)
	return nil
}

func (m *MemoryStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.sessions[username]
	return ok
}

func clone(s *models.Session) *models.Session {
	c := *s
	c.Cookies = make(map[string]string, len(s.Cookies))
	for k, v := range s.Cookies {
		c.Cookies[k] = v
	}
	return &c
}
