package session

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"igfeed/pkg/config"
	"igfeed/pkg/logger"
	"igfeed/pkg/models"
)

func newSession(username string) *models.Session {
	return &models.Session{
		Username: username,
		UserID:   "1234567",
		Cookies: map[string]string{
			models.CookieSessionID: "1234567%3AabcDEF%3A12",
			models.CookieCSRFToken: "YTQHujAgMhyveLvvuwCfw9CPI8ROAHoy",
			models.CookieUserID:    "1234567",
		},
		UserAgent: "TestAgent/1.0",
	}
}

func TestValidUsername(t *testing.T) {
	for _, name := range []string{"alice", "alice.smith", "a_b_c", "user123", "x"} {
		assert.NoError(t, ValidUsername(name), name)
	}
	for _, name := range []string{"", ".alice", "../etc", "a/b", "has space", "dash-name", "waytoolongusername_waytoolongusername"} {
		assert.ErrorIs(t, ValidUsername(name), ErrInvalidUsername, name)
	}
}

// storeContract runs the behaviour every writable backend must share
func storeContract(t *testing.T, store Store) {
	t.Helper()

	_, err := store.Load("alice")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, store.Exists("alice"))

	require.NoError(t, store.Save(newSession("alice")))
	require.NoError(t, store.Save(newSession("bob")))
	assert.True(t, store.Exists("alice"))

	got, err := store.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "YTQHujAgMhyveLvvuwCfw9CPI8ROAHoy", got.Cookies[models.CookieCSRFToken])
	assert.Equal(t, "TestAgent/1.0", got.UserAgent)

	updated := newSession("alice")
	updated.Cookies[models.CookieSessionID] = "rotated"
	require.NoError(t, store.Save(updated))
	got, err = store.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got.Cookies[models.CookieSessionID])

	all, err := store.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.Delete("alice"))
	assert.False(t, store.Exists("alice"))
	assert.ErrorIs(t, store.Delete("alice"), ErrNotFound)

	assert.Error(t, store.Save(&models.Session{Username: "carol"}), "session without cookies")
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(newSession("alice")))

	got, err := store.Load("alice")
	require.NoError(t, err)
	got.Cookies[models.CookieSessionID] = "mutated"

	again, err := store.Load("alice")
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", again.Cookies[models.CookieSessionID])
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	storeContract(t, store)

	// one plain file per username
	_, err = os.Stat(filepath.Join(dir, "bob"))
	assert.NoError(t, err)
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice"), []byte("{not json"), 0600))

	_, err = store.Load("alice")
	assert.ErrorIs(t, err, ErrInvalidSession)

	// corrupt entries are skipped when listing
	sessions, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load("../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidUsername)
	assert.False(t, store.Exists("../x"))
}

func TestEncryptedFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewEncryptedFileStore(dir, "correct horse battery staple")
	require.NoError(t, err)
	storeContract(t, store)

	raw, err := os.ReadFile(filepath.Join(dir, vaultName))
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, []byte("YTQHujAgMhyveLvvuwCfw9CPI8ROAHoy")), "cookies must not be stored in clear text")

	wrong, err := NewEncryptedFileStore(dir, "wrong")
	require.NoError(t, err)
	_, err = wrong.Load("bob")
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestEncryptedFileStoreRemovesEmptyVault(t *testing.T) {
	dir := t.TempDir()
	store, err := NewEncryptedFileStore(dir, "pass")
	require.NoError(t, err)

	require.NoError(t, store.Save(newSession("alice")))
	require.NoError(t, store.Delete("alice"))

	_, err = os.Stat(filepath.Join(dir, vaultName))
	assert.True(t, os.IsNotExist(err))
}

func TestEncryptedFileStoreRequiresPassphrase(t *testing.T) {
	_, err := NewEncryptedFileStore(t.TempDir(), "")
	assert.Error(t, err)
}

func TestFileAndEncryptedShareDirectory(t *testing.T) {
	dir := t.TempDir()
	plain, err := NewFileStore(dir)
	require.NoError(t, err)
	enc, err := NewEncryptedFileStore(dir, "pass")
	require.NoError(t, err)

	require.NoError(t, enc.Save(newSession("alice")))
	require.NoError(t, plain.Save(newSession("bob")))

	sessions, err := plain.List()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "bob", sessions[0].Username)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)
	storeContract(t, store)

	sessions, err := store.List()
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "bob", sessions[0].Username)
}

func TestKeyringStoreUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("no dbus"))
	t.Cleanup(keyring.MockInit)

	_, err := NewKeyringStore()
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestEnvironmentStore(t *testing.T) {
	env := map[string]string{
		EnvUsername:  "alice",
		EnvSessionID: "sid",
		EnvCSRFToken: "csrf",
		EnvUserID:    "42",
	}
	store := &EnvironmentStore{getenv: func(k string) string { return env[k] }}

	s, err := store.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, "sid", s.Cookies[models.CookieSessionID])
	assert.Equal(t, "42", s.Cookies[models.CookieUserID])
	assert.True(t, store.Exists("alice"))

	_, err = store.Load("bob")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Save(newSession("alice")), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete("alice"), ErrStoreUnavailable)

	delete(env, EnvCSRFToken)
	all, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestManagerFallback(t *testing.T) {
	broken := NewMemoryStore()
	broken.SaveError = errors.New("disk full")
	broken.LoadError = errors.New("disk unreadable")
	backup := NewMemoryStore()

	m := NewManager(broken, backup)
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	s := newSession("alice")
	require.NoError(t, m.Save(s))
	assert.Equal(t, fixed, s.CreatedAt)
	assert.Equal(t, fixed, s.UpdatedAt)
	assert.True(t, backup.Exists("alice"))

	got, err := m.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	// a failing store is reported when nobody has the session
	_, err = m.Load("bob")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "disk unreadable")
}

func TestManagerLoadNotFound(t *testing.T) {
	m := NewManager(NewMemoryStore(), NewMemoryStore())

	_, err := m.Load("ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Load("../ghost")
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

func TestManagerSaveValidates(t *testing.T) {
	m := NewManager(NewMemoryStore())

	assert.ErrorIs(t, m.Save(nil), ErrInvalidSession)
	assert.ErrorIs(t, m.Save(&models.Session{Username: "bad name"}), ErrInvalidUsername)
	assert.ErrorIs(t, m.Save(&models.Session{Username: "alice"}), ErrInvalidSession)
}

func TestManagerSaveAllStoresFail(t *testing.T) {
	a := NewMemoryStore()
	a.SaveError = errors.New("nope")
	m := NewManager(a)

	err := m.Save(newSession("alice"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store session")
}

func TestManagerListKeepsNewest(t *testing.T) {
	older := newSession("alice")
	older.UpdatedAt = time.Unix(100, 0)
	older.UserAgent = "old"
	newer := newSession("alice")
	newer.UpdatedAt = time.Unix(200, 0)
	newer.UserAgent = "new"

	a, b := NewMemoryStore(), NewMemoryStore()
	require.NoError(t, a.Save(older))
	require.NoError(t, b.Save(newer))
	require.NoError(t, b.Save(newSession("bob")))

	broken := NewMemoryStore()
	broken.ListError = errors.New("offline")

	sessions, err := NewManager(a, broken, b).List()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "alice", sessions[0].Username)
	assert.Equal(t, "new", sessions[0].UserAgent)
	assert.Equal(t, "bob", sessions[1].Username)
}

func TestManagerDelete(t *testing.T) {
	a, b := NewMemoryStore(), NewMemoryStore()
	require.NoError(t, a.Save(newSession("alice")))
	require.NoError(t, b.Save(newSession("alice")))

	m := NewManager(a, NewEnvironmentStore(), b)
	require.NoError(t, m.Delete("alice"))
	assert.False(t, m.Exists("alice"))
	assert.ErrorIs(t, m.Delete("alice"), ErrNotFound)
}

func TestSanitize(t *testing.T) {
	s := newSession("alice")
	masked := Sanitize(s)

	assert.Equal(t, "YTQH...AHoy", masked.Cookies[models.CookieCSRFToken])
	assert.Equal(t, "********", masked.Cookies[models.CookieUserID])
	// the original is untouched
	assert.Equal(t, "YTQHujAgMhyveLvvuwCfw9CPI8ROAHoy", s.Cookies[models.CookieCSRFToken])
	assert.Nil(t, Sanitize(nil))
}

func TestParseCookieHeader(t *testing.T) {
	s, err := ParseCookieHeader("alice", `Cookie: mid=ZZZ; sessionid=123%3Aabc; csrftoken="tok"; ds_user_id=123; junk`)
	require.NoError(t, err)

	assert.Equal(t, "alice", s.Username)
	assert.Equal(t, "123", s.UserID)
	assert.Equal(t, "123%3Aabc", s.Cookies[models.CookieSessionID])
	assert.Equal(t, "tok", s.Cookies[models.CookieCSRFToken])
	assert.Equal(t, "ZZZ", s.Cookies[models.CookieMachineID])

	_, err = ParseCookieHeader("alice", "mid=ZZZ")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestWriteCookieGuide(t *testing.T) {
	var buf bytes.Buffer
	WriteCookieGuide(&buf)
	assert.Contains(t, buf.String(), "sessionid")
	assert.Contains(t, buf.String(), "csrftoken")
}

func TestOpen(t *testing.T) {
	keyring.MockInit()
	dir := t.TempDir()

	m, err := Open(config.SessionsConfig{
		Backends:   []string{config.BackendKeyring, config.BackendEncrypted, config.BackendFile, config.BackendEnv},
		Directory:  dir,
		Passphrase: "pass",
	}, logger.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, m.stores, 4)

	require.NoError(t, m.Save(newSession("alice")))
	assert.True(t, m.stores[0].Exists("alice"), "keyring is tried first")
}

func TestOpenSkipsUnavailableKeyring(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	t.Cleanup(keyring.MockInit)
	tl := logger.NewTestLogger()

	m, err := Open(config.SessionsConfig{
		Backends:  []string{config.BackendKeyring, config.BackendFile},
		Directory: t.TempDir(),
	}, tl)
	require.NoError(t, err)
	assert.Len(t, m.stores, 1)
	assert.True(t, tl.HasMessage("Keyring session store unavailable, skipping"))

	_, err = Open(config.SessionsConfig{Backends: []string{config.BackendKeyring}}, tl)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
