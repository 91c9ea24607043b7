package auth

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "igfeed/pkg/errors"
	"igfeed/pkg/logger"
	"igfeed/pkg/models"
	"igfeed/pkg/scraper"
	"igfeed/pkg/session"
	"igfeed/pkg/token"
)

// nopReader remembers the session it was built from
type nopReader struct {
	session *models.Session
}

func (nopReader) ResolveProfile(context.Context, string) (*models.Profile, error) {
	return &models.Profile{}, nil
}
func (nopReader) Posts(context.Context, *models.Profile) iter.Seq2[models.MediaItem, error] {
	return func(func(models.MediaItem, error) bool) {}
}
func (nopReader) Stories(context.Context, ...string) iter.Seq2[models.Story, error] {
	return func(func(models.Story, error) bool) {}
}
func (nopReader) Highlights(context.Context, string) iter.Seq2[models.Reel, error] {
	return func(func(models.Reel, error) bool) {}
}
func (nopReader) ProfilePicture(context.Context, *models.Profile) (string, error) {
	return "", nil
}

// fakeEngine accepts password "secret" and code "123456"
type fakeEngine struct {
	mu        sync.Mutex
	twoFactor bool
	loginErr  error
	logins    int
	codes     int
}

func validSession(username string) *models.Session {
	return &models.Session{
		Username: username,
		Cookies: map[string]string{
			models.CookieSessionID: "sess-" + username,
			models.CookieCSRFToken: "csrf",
		},
	}
}

func (e *fakeEngine) Login(_ context.Context, username, password string) (*models.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logins++
	switch {
	case e.loginErr != nil:
		return nil, e.loginErr
	case password != "secret":
		return nil, errs.New(errs.KindUnauthorized, http.StatusUnauthorized, "Login error: Wrong password.")
	case e.twoFactor:
		return nil, &scraper.TwoFactorRequiredError{Challenge: &models.TwoFactorChallenge{
			Username:   username,
			Identifier: "tfa",
		}}
	}
	return validSession(username), nil
}

func (e *fakeEngine) TwoFactorLogin(_ context.Context, challenge *models.TwoFactorChallenge, code string) (*models.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.codes++
	if code != "123456" {
		return nil, errs.New(errs.KindUnauthorized, http.StatusUnauthorized, "2FA error: Please check the security code.")
	}
	return validSession(challenge.Username), nil
}

func (e *fakeEngine) Anonymous() scraper.Reader {
	return nopReader{}
}

func (e *fakeEngine) WithSession(s *models.Session) (scraper.Reader, error) {
	if !s.Valid() {
		return nil, errs.New(errs.KindUnauthorized, http.StatusUnauthorized, "Session is incomplete, log in again.")
	}
	return nopReader{session: s}, nil
}

type flowFixture struct {
	flow    *Flow
	engine  *fakeEngine
	store   *session.MemoryStore
	issuer  *token.Issuer
	log     *logger.TestLogger
	pending *PendingTable
}

func newFlowFixture(t *testing.T) *flowFixture {
	t.Helper()
	issuer, err := token.NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	fx := &flowFixture{
		engine:  &fakeEngine{},
		store:   session.NewMemoryStore(),
		issuer:  issuer,
		log:     logger.NewTestLogger(),
		pending: NewPendingTable(time.Minute),
	}
	fx.flow = NewFlow(fx.engine, session.NewManager(fx.store), issuer, fx.pending, fx.log)
	return fx
}

func TestLoginSuccess(t *testing.T) {
	fx := newFlowFixture(t)

	result := fx.flow.Login(context.Background(), "alice", "secret")
	require.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, MessageLoggedIn, result.Message)
	assert.Equal(t, http.StatusOK, result.Status())

	identity, err := fx.issuer.Validate(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)

	stored, err := fx.store.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, "sess-alice", stored.Cookies[models.CookieSessionID])
	assert.True(t, fx.log.HasMessage("Login attempt finished"))
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		loginErr error
		kind     errs.Kind
		status   int
		message  string
	}{
		{
			name: "empty password", username: "alice",
			kind: errs.KindBadRequest, status: http.StatusBadRequest,
			message: "Login error: username and password are required.",
		},
		{
			name: "wrong password", username: "alice", password: "nope",
			kind: errs.KindUnauthorized, status: http.StatusUnauthorized,
			message: "Login error: Wrong password.",
		},
		{
			name: "unknown user", username: "ghost", password: "secret",
			loginErr: errs.New(errs.KindBadRequest, http.StatusBadRequest, "Login error: User ghost does not exist."),
			kind:     errs.KindBadRequest, status: http.StatusBadRequest,
			message: "Login error: User ghost does not exist.",
		},
		{
			name: "connection failure", username: "alice", password: "secret",
			loginErr: errs.Wrap(errors.New("dial tcp"), errs.KindUnauthorized, http.StatusUnauthorized, "Login error: Connection to Instagram failed."),
			kind:     errs.KindUnauthorized, status: http.StatusUnauthorized,
			message: "Login error: Connection to Instagram failed.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFlowFixture(t)
			fx.engine.loginErr = tt.loginErr

			result := fx.flow.Login(context.Background(), tt.username, tt.password)
			assert.Equal(t, OutcomeFailed, result.Outcome)
			assert.Equal(t, tt.kind, result.Kind)
			assert.Equal(t, tt.status, result.Status())
			assert.Equal(t, tt.message, result.Message)
			assert.Empty(t, result.Token)
			assert.False(t, fx.store.Exists(tt.username))
		})
	}
}

func TestLoginStoreFailure(t *testing.T) {
	fx := newFlowFixture(t)
	fx.store.SaveError = errors.New("disk full")

	result := fx.flow.Login(context.Background(), "alice", "secret")
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, http.StatusInternalServerError, result.Status())
	assert.True(t, fx.log.HasMessage("Failed to store session"))
}

func TestTwoFactorFlow(t *testing.T) {
	fx := newFlowFixture(t)
	fx.engine.twoFactor = true
	ctx := context.Background()

	result := fx.flow.Login(ctx, "alice", "secret")
	require.Equal(t, OutcomeChallengeRequired, result.Outcome)
	assert.Equal(t, scraper.TwoFactorMessage, result.Message)
	assert.Equal(t, http.StatusOK, result.Status())
	assert.Empty(t, result.Token)
	assert.Equal(t, 1, fx.pending.Len())
	assert.False(t, fx.store.Exists("alice"))

	// a wrong code keeps the challenge
	result = fx.flow.Login2FA(ctx, "alice", "000000")
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, errs.KindUnauthorized, result.Kind)
	assert.Equal(t, 1, fx.pending.Len())

	result = fx.flow.Login2FA(ctx, "ALICE", "123456")
	require.Equal(t, OutcomeSuccess, result.Outcome)
	assert.NotEmpty(t, result.Token)
	assert.Zero(t, fx.pending.Len())
	assert.True(t, fx.store.Exists("alice"))

	// the challenge is consumed
	result = fx.flow.Login2FA(ctx, "alice", "123456")
	assert.Equal(t, OutcomeFailed, result.Outcome)
	assert.Equal(t, errs.KindBadRequest, result.Kind)
	assert.Equal(t, MessageNoPending, result.Message)
}

func TestLogin2FAValidation(t *testing.T) {
	fx := newFlowFixture(t)
	ctx := context.Background()

	result := fx.flow.Login2FA(ctx, "alice", "")
	assert.Equal(t, errs.KindBadRequest, result.Kind)

	result = fx.flow.Login2FA(ctx, "bob", "123456")
	assert.Equal(t, errs.KindBadRequest, result.Kind)
	assert.Equal(t, MessageNoPending, result.Message)
	assert.Zero(t, fx.engine.codes)
}

func TestPendingTableExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	p := NewPendingTable(0)
	p.now = func() time.Time { return now }
	assert.Equal(t, DefaultChallengeTTL, p.ttl)

	p.Put(&models.TwoFactorChallenge{Username: "alice"})
	p.Put(&models.TwoFactorChallenge{Username: "bob"})

	now = now.Add(5 * time.Minute)
	_, ok := p.Get("alice")
	assert.True(t, ok)

	now = now.Add(5 * time.Minute)
	_, ok = p.Get("alice")
	assert.False(t, ok)
	assert.Equal(t, 1, p.Len())

	assert.Equal(t, 1, p.Sweep())
	assert.Zero(t, p.Len())
}

func TestRequire(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(validSession("alice")))
	log := logger.NewTestLogger()
	r := NewResolver(&fakeEngine{}, session.NewManager(store), log)

	access, err := r.Require("alice")
	require.NoError(t, err)
	assert.Equal(t, ModeAccessed, access.Mode)
	assert.Equal(t, "alice", access.Identity)
	assert.Equal(t, "sess-alice", access.Reader.(nopReader).session.Cookies[models.CookieSessionID])

	for _, identity := range []string{"", "bob"} {
		_, err = r.Require(identity)
		require.Error(t, err)
		assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
		assert.Equal(t, MessageLoginFirst, errs.MessageOf(err))
	}
	assert.False(t, log.HasMessage("Failed to open stored session"))

	store.LoadError = errors.New("decrypt failed")
	_, err = r.Require("alice")
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
	assert.True(t, log.HasMessage("Failed to open stored session"))
}

func TestGated(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(validSession("alice")))
	r := NewResolver(&fakeEngine{}, session.NewManager(store), logger.NewTestLogger())

	access, gate := r.Gated("alice")
	assert.Equal(t, ModeAccessed, access.Mode)
	reader, err := gate()
	require.NoError(t, err)
	assert.Equal(t, access.Reader, reader)

	// without a session the lookup reader is anonymous and the gate refuses
	access, gate = r.Gated("bob")
	assert.Equal(t, ModeAnonymous, access.Mode)
	require.NotNil(t, access.Reader)
	assert.Nil(t, access.Reader.(nopReader).session)
	_, err = gate()
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
	assert.Equal(t, MessageLoginFirst, errs.MessageOf(err))
}

func TestOptional(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Save(validSession("alice")))
	log := logger.NewTestLogger()
	r := NewResolver(&fakeEngine{}, session.NewManager(store), log)

	access := r.Optional("alice")
	assert.Equal(t, ModeAccessed, access.Mode)
	assert.Empty(t, access.Reason)

	access = r.Optional("")
	assert.Equal(t, ModeAnonymous, access.Mode)
	assert.Equal(t, "no token", access.Reason)
	assert.NotNil(t, access.Reader)

	access = r.Optional("bob")
	assert.Equal(t, ModeAnonymous, access.Mode)
	assert.Equal(t, "no stored session", access.Reason)
	assert.Equal(t, "bob", access.Identity)

	store.LoadError = errors.New("decrypt failed")
	access = r.Optional("alice")
	assert.Equal(t, ModeAnonymous, access.Mode)
	assert.Equal(t, "stored session unusable", access.Reason)
	assert.True(t, log.HasMessage("Stored session unusable, reading anonymously"))
	assert.True(t, log.HasMessage("Access resolved"))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "challenge_required", OutcomeChallengeRequired.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}
