package auth

import (
	"context"
	"errors"
	"net/http"

	errs "igfeed/pkg/errors"
	"igfeed/pkg/logger"
	"igfeed/pkg/models"
	"igfeed/pkg/scraper"
)

// Messages returned by the login endpoint
const (
	MessageLoggedIn        = "Logged in."
	MessageAlreadyLoggedIn = "You're already logged in."
	MessageNoPending       = "No two-factor authentication pending."
)

// Outcome tags a LoginResult
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeChallengeRequired
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeChallengeRequired:
		return "challenge_required"
	default:
		return "failed"
	}
}

// LoginResult is the result of a login step. Token is only set on success,
// Kind only on failure.
type LoginResult struct {
	Outcome Outcome
	Token   string
	Message string
	Kind    errs.Kind
}

// Status is the HTTP status the result is answered with. A pending
// challenge is answered with 200 like a success; clients tell them apart
// by the missing token.
func (r LoginResult) Status() int {
	if r.Outcome == OutcomeFailed {
		return errs.HTTPStatus(r.Kind)
	}
	return http.StatusOK
}

// SessionSaver persists sessions after a login
type SessionSaver interface {
	Save(s *models.Session) error
}

// TokenIssuer mints bearer tokens for an identity
type TokenIssuer interface {
	Issue(identity string) (string, error)
}

// Flow drives the two step login against an engine
type Flow struct {
	engine   scraper.Engine
	sessions SessionSaver
	tokens   TokenIssuer
	pending  *PendingTable
	logger   logger.Logger
}

// NewFlow creates a login flow
func NewFlow(engine scraper.Engine, sessions SessionSaver, tokens TokenIssuer, pending *PendingTable, log logger.Logger) *Flow {
	if pending == nil {
		pending = NewPendingTable(DefaultChallengeTTL)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Flow{
		engine:   engine,
		sessions: sessions,
		tokens:   tokens,
		pending:  pending,
		logger:   log,
	}
}

// Pending exposes the challenge table
func (f *Flow) Pending() *PendingTable {
	return f.pending
}

// Login runs the password step
func (f *Flow) Login(ctx context.Context, username, password string) LoginResult {
	if username == "" || password == "" {
		return f.fail(username, "password", errs.New(errs.KindBadRequest, http.StatusBadRequest,
			"Login error: username and password are required."))
	}

	session, err := f.engine.Login(ctx, username, password)
	var tfa *scraper.TwoFactorRequiredError
	if errors.As(err, &tfa) {
		f.pending.Put(tfa.Challenge)
		logger.LogLogin(f.logger, username, "password", OutcomeChallengeRequired.String())
		return LoginResult{Outcome: OutcomeChallengeRequired, Message: tfa.Error()}
	}
	if err != nil {
		return f.fail(username, "password", err)
	}

	return f.complete(username, "password", session)
}

// Login2FA runs the verification code step of a pending login. A wrong
// code keeps the challenge so the user can try again.
func (f *Flow) Login2FA(ctx context.Context, username, code string) LoginResult {
	if username == "" || code == "" {
		return f.fail(username, "two_factor", errs.New(errs.KindBadRequest, http.StatusBadRequest,
			"2FA error: username and verification code are required."))
	}

	challenge, ok := f.pending.Get(username)
	if !ok {
		return f.fail(username, "two_factor", errs.New(errs.KindBadRequest, http.StatusBadRequest, MessageNoPending))
	}

	session, err := f.engine.TwoFactorLogin(ctx, challenge, code)
	if err != nil {
		return f.fail(username, "two_factor", err)
	}

	f.pending.Delete(username)
	return f.complete(username, "two_factor", session)
}

func (f *Flow) complete(username, step string, session *models.Session) LoginResult {
	if session.Username == "" {
		session.Username = username
	}
	if err := f.sessions.Save(session); err != nil {
		f.logger.WithError(err).WithField("username", username).Error("Failed to store session")
		return f.fail(username, step, errs.Wrap(err, errs.KindUnknown, http.StatusInternalServerError,
			"Login error: could not store session."))
	}

	token, err := f.tokens.Issue(session.Username)
	if err != nil {
		return f.fail(username, step, errs.Wrap(err, errs.KindUnknown, http.StatusInternalServerError,
			"Login error: could not issue token."))
	}

	logger.LogLogin(f.logger, username, step, OutcomeSuccess.String())
	return LoginResult{Outcome: OutcomeSuccess, Token: token, Message: MessageLoggedIn}
}

func (f *Flow) fail(username, step string, err error) LoginResult {
	kind := errs.KindOf(err)
	if kind == errs.KindChallengeRequired {
		kind = errs.KindUnauthorized
	}
	logger.LogLogin(f.logger.WithError(err), username, step, OutcomeFailed.String())
	return LoginResult{Outcome: OutcomeFailed, Message: errs.MessageOf(err), Kind: kind}
}
