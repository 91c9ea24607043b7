package session

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
	"igfeed/pkg/models"
	"igfeed/pkg/storage"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000

	// vaultName cannot collide with a username: '-' is outside the username alphabet
	vaultName = "sessions-vault"
)

// ErrWrongPassphrase is returned when the vault cannot be decrypted
var ErrWrongPassphrase = errors.New("failed to decrypt session vault")

// EncryptedFileStore keeps all sessions in one AES-GCM encrypted file.
// The key is derived from a passphrase with PBKDF2.
type EncryptedFileStore struct {
	files      *storage.Manager
	passphrase string
	mu         sync.RWMutex
}

type vaultFile struct {
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Version   int       `json:"version"`
	Modified  time.Time `json:"modified"`
}

type vault struct {
	salt     []byte
	sessions map[string]models.Session
}

// NewEncryptedFileStore creates an encrypted store inside dir
func NewEncryptedFileStore(dir, passphrase string) (*EncryptedFileStore, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required for the encrypted session store")
	}
	files, err := storage.NewManager(dir, 0600)
	if err != nil {
		return nil, err
	}
	return &EncryptedFileStore{files: files, passphrase: passphrase}, nil
}

func (e *EncryptedFileStore) Save(s *models.Session) error {
	if err := validate(s); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.load()
	if err != nil {
		return err
	}
	v.sessions[s.Username] = *s
	return e.save(v)
}

func (e *EncryptedFileStore) Load(username string) (*models.Session, error) {
	if err := ValidUsername(username); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	v, err := e.load()
	if err != nil {
		return nil, err
	}
	s, ok := v.sessions[username]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (e *EncryptedFileStore) List() ([]*models.Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, err := e.load()
	if err != nil {
		return nil, err
	}

	sessions := make([]*models.Session, 0, len(v.sessions))
	for _, s := range v.sessions {
		sessions = append(sessions, &s)
	}
	return sessions, nil
}

func (e *EncryptedFileStore) Delete(username string) error {
	if err := ValidUsername(username); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.load()
	if err != nil {
		return err
	}
	if _, ok := v.sessions[username]; !ok {
		return ErrNotFound
	}
	delete(v.sessions, username)

	if len(v.sessions) == 0 {
		return e.files.Remove(vaultName)
	}
	return e.save(v)
}

func (e *EncryptedFileStore) Exists(username string) bool {
	s, err := e.Load(username)
	return err == nil && s != nil
}

// load returns an empty vault when the file does not exist yet
func (e *EncryptedFileStore) load() (*vault, error) {
	content, err := e.files.Load(vaultName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &vault{sessions: make(map[string]models.Session)}, nil
		}
		return nil, fmt.Errorf("failed to read session vault: %w", err)
	}

	var file vaultFile
	if err := json.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse session vault: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(file.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	encrypted, err := base64.StdEncoding.DecodeString(file.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	plaintext, err := decrypt(encrypted, e.key(salt))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrongPassphrase, err)
	}

	sessions := make(map[string]models.Session)
	if err := json.Unmarshal(plaintext, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse sessions: %w", err)
	}
	return &vault{salt: salt, sessions: sessions}, nil
}

func (e *EncryptedFileStore) save(v *vault) error {
	if len(v.salt) == 0 {
		v.salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, v.salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plaintext, err := json.Marshal(v.sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	encrypted, err := encrypt(plaintext, e.key(v.salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt sessions: %w", err)
	}

	content, err := json.MarshalIndent(vaultFile{
		Salt:      base64.StdEncoding.EncodeToString(v.salt),
		Encrypted: base64.StdEncoding.EncodeToString(encrypted),
		Version:   1,
		Modified:  time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vault: %w", err)
	}

	return e.files.Save(vaultName, bytes.NewReader(content))
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
}

// encrypt seals plaintext with AES-GCM, prefixing the nonce
func encrypt(plaintext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
