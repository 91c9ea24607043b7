package auth

import (
	"errors"
	"net/http"

	errs "igfeed/pkg/errors"
	"igfeed/pkg/logger"
	"igfeed/pkg/models"
	"igfeed/pkg/scraper"
	"igfeed/pkg/session"
)

// MessageLoginFirst is returned when a route needs a stored session
const MessageLoginFirst = "You need to log in first."

// Mode tells whether a request reads as an account or anonymously
type Mode string

const (
	ModeAnonymous Mode = "anonymous"
	ModeAccessed  Mode = "accessed"
)

// Access is the reader a request runs with. Reason explains an anonymous
// fallback.
type Access struct {
	Mode     Mode
	Identity string
	Reader   scraper.Reader
	Reason   string
}

// SessionLoader loads stored sessions by username
type SessionLoader interface {
	Load(username string) (*models.Session, error)
}

// Resolver turns a token identity into an Access. Every Access it returns
// owns an independent reader.
type Resolver struct {
	engine   scraper.Engine
	sessions SessionLoader
	logger   logger.Logger
}

// NewResolver creates a Resolver
func NewResolver(engine scraper.Engine, sessions SessionLoader, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Resolver{engine: engine, sessions: sessions, logger: log}
}

func (r *Resolver) accessed(identity string) (Access, error) {
	s, err := r.sessions.Load(identity)
	if err != nil {
		return Access{}, err
	}
	reader, err := r.engine.WithSession(s)
	if err != nil {
		return Access{}, err
	}
	return Access{Mode: ModeAccessed, Identity: identity, Reader: reader}, nil
}

// Require returns an accessed reader or an unauthorized error
func (r *Resolver) Require(identity string) (Access, error) {
	if identity == "" {
		return Access{}, errs.New(errs.KindUnauthorized, http.StatusUnauthorized, MessageLoginFirst)
	}

	access, err := r.accessed(identity)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			r.logger.WithError(err).WithField("identity", identity).Warn("Failed to open stored session")
		}
		return Access{}, errs.Wrap(err, errs.KindUnauthorized, http.StatusUnauthorized, MessageLoginFirst)
	}

	logger.LogAccessMode(r.logger, identity, string(access.Mode), "")
	return access, nil
}

// Gated serves the session-gated read paths. The profile is looked up
// with the returned Access's reader, which carries the session when there
// is one; the gate then insists on the session, reporting the same error
// Require would.
func (r *Resolver) Gated(identity string) (Access, scraper.Gate) {
	access, err := r.Require(identity)
	if err != nil {
		anon := Access{Mode: ModeAnonymous, Identity: identity, Reader: r.engine.Anonymous(), Reason: "no usable session"}
		return anon, func() (scraper.Reader, error) { return nil, err }
	}
	return access, scraper.Allow(access.Reader)
}

// Optional returns an accessed reader when identity has a usable session
// and an anonymous one otherwise
func (r *Resolver) Optional(identity string) Access {
	if identity == "" {
		return r.anonymous(identity, "no token")
	}

	access, err := r.accessed(identity)
	switch {
	case err == nil:
		logger.LogAccessMode(r.logger, identity, string(access.Mode), "")
		return access
	case errors.Is(err, session.ErrNotFound):
		return r.anonymous(identity, "no stored session")
	default:
		r.logger.WithError(err).WithField("identity", identity).Warn("Stored session unusable, reading anonymously")
		return r.anonymous(identity, "stored session unusable")
	}
}

func (r *Resolver) anonymous(identity, reason string) Access {
	logger.LogAccessMode(r.logger, identity, string(ModeAnonymous), reason)
	return Access{Mode: ModeAnonymous, Identity: identity, Reader: r.engine.Anonymous(), Reason: reason}
}
