package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"igfeed/pkg/models"
	"igfeed/pkg/storage"
)

// FileStore keeps one plain JSON file per username in a directory
type FileStore struct {
	files *storage.Manager
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) (*FileStore, error) {
	files, err := storage.NewManager(dir, 0600)
	if err != nil {
		return nil, err
	}
	return &FileStore{files: files}, nil
}

func (f *FileStore) Save(s *models.Session) error {
	if err := validate(s); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return f.files.Save(s.Username, bytes.NewReader(data))
}

func (f *FileStore) Load(username string) (*models.Session, error) {
	if err := ValidUsername(username); err != nil {
		return nil, err
	}

	data, err := f.files.Load(username)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if s.Username == "" {
		s.Username = username
	}
	return &s, nil
}

func (f *FileStore) List() ([]*models.Session, error) {
	names, err := f.files.Names()
	if err != nil {
		return nil, err
	}

	sessions := make([]*models.Session, 0, len(names))
	for _, name := range names {
		if ValidUsername(name) != nil {
			continue
		}
		s, err := f.Load(name)
		if err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (f *FileStore) Delete(username string) error {
	if err := ValidUsername(username); err != nil {
		return err
	}

	if err := f.files.Remove(username); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (f *FileStore) Exists(username string) bool {
	return ValidUsername(username) == nil && f.files.Exists(username)
}
