package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidName is returned for names that would escape the directory
var ErrInvalidName = errors.New("invalid file name")

// Manager stores named blobs in one directory. Every write goes to a
// temporary file first and is renamed into place, so readers never see a
// partially written blob.
type Manager struct {
	dir  string
	perm os.FileMode
	mu   sync.RWMutex
}

// NewManager creates the directory if needed. perm applies to written files.
func NewManager(dir string, perm os.FileMode) (*Manager, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Manager{dir: dir, perm: perm}, nil
}

// ValidName rejects empty names, names with path separators and dot files
func ValidName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.HasSuffix(name, ".tmp") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Dir returns the managed directory
func (m *Manager) Dir() string {
	return m.dir
}

func (m *Manager) path(name string) (string, error) {
	if err := ValidName(name); err != nil {
		return "", err
	}
	return filepath.Join(m.dir, name), nil
}

// Save writes the contents of r under name atomically
func (m *Manager) Save(name string, r io.Reader) error {
	filename, err := m.path(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := os.CreateTemp(m.dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := out.Name()

	_, err = io.Copy(out, r)
	if err == nil {
		err = out.Chmod(m.perm)
	}
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// Load reads the blob stored under name. A missing blob wraps fs.ErrNotExist.
func (m *Manager) Load(name string) ([]byte, error) {
	filename, err := m.path(name)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return os.ReadFile(filename)
}

// Exists reports whether name is stored
func (m *Manager) Exists(name string) bool {
	filename, err := m.path(name)
	if err != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	info, err := os.Stat(filename)
	return err == nil && info.Mode().IsRegular()
}

// Remove deletes name. A missing blob wraps fs.ErrNotExist.
func (m *Manager) Remove(name string) error {
	filename, err := m.path(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return os.Remove(filename)
}

// Names lists stored blobs in lexical order, skipping temporary files
func (m *Manager) Names() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || ValidName(entry.Name()) != nil {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
