package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"igfeed/pkg/auth"
	errs "igfeed/pkg/errors"
	"igfeed/pkg/scraper"
)

const maxLoginBody = 64 << 10

// looseString accepts a JSON string or number, so {"code": 123456} works
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

type loginRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Code     looseString `json:"code"`
}

func decodeLogin(w http.ResponseWriter, r *http.Request) (loginRequest, error) {
	var req loginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxLoginBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return req, err
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
		req.Code = looseString(r.PostFormValue("code"))
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (s *Server) handleAlive(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "alive")
}

// handleGenerate mints a token without credentials; debug builds only
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Debug {
		writeMessage(w, http.StatusNotFound, "Not Found")
		return
	}
	tok, err := s.tokens.Issue(chi.URLParam(r, "username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: tok})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if Identity(r.Context()) != "" {
		writeMessage(w, http.StatusOK, auth.MessageAlreadyLoggedIn)
		return
	}

	req, err := decodeLogin(w, r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Request body must be JSON or a form with username and password.")
		return
	}

	var (
		result auth.LoginResult
		step   string
	)
	if req.Code != "" {
		step = "two_factor"
		result = s.flow.Login2FA(r.Context(), req.Username, string(req.Code))
	} else {
		step = "password"
		result = s.flow.Login(r.Context(), req.Username, req.Password)
	}
	s.metrics.ObserveLogin(step, result.Outcome.String())

	if result.Outcome == auth.OutcomeSuccess {
		writeJSON(w, result.Status(), tokenResponse{Token: result.Token, Message: result.Message})
		return
	}
	writeMessage(w, result.Status(), result.Message)
}

// gated returns the lookup reader and session gate of a session-gated route
func (s *Server) gated(r *http.Request) (scraper.Reader, scraper.Gate) {
	access, gate := s.resolver.Gated(Identity(r.Context()))
	s.metrics.ObserveAccess(string(access.Mode))
	return access.Reader, gate
}

func (s *Server) optional(r *http.Request) auth.Access {
	access := s.resolver.Optional(Identity(r.Context()))
	s.metrics.ObserveAccess(string(access.Mode))
	return access
}

func pathInt(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, errs.Newf(errs.KindBadRequest, http.StatusBadRequest, "Invalid %s.", name)
	}
	return v, nil
}

func pathPage(r *http.Request) (int, error) {
	page, err := pathInt(r, "page")
	if err != nil {
		return 0, err
	}
	if page > math.MaxInt32 {
		return 0, errs.New(errs.KindBadRequest, http.StatusBadRequest, "Invalid page.")
	}
	return int(page), nil
}

func (s *Server) handleStory(w http.ResponseWriter, r *http.Request) {
	lookup, gate := s.gated(r)
	entries, err := s.service.Stories(r.Context(), lookup, gate, chi.URLParam(r, "username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHighlights(w http.ResponseWriter, r *http.Request) {
	lookup, gate := s.gated(r)
	summaries, err := s.service.Highlights(r.Context(), lookup, gate, chi.URLParam(r, "username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleHighlightPage(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := pathPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	lookup, gate := s.gated(r)
	entries, err := s.service.HighlightPage(r.Context(), lookup, gate, chi.URLParam(r, "username"), id, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	page, err := pathPage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	access := s.optional(r)
	entries, err := s.service.ProfilePage(r.Context(), access.Reader, chi.URLParam(r, "username"), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleProfilePicture(w http.ResponseWriter, r *http.Request) {
	access := s.optional(r)
	url, err := s.service.ProfilePicture(r.Context(), access.Reader, chi.URLParam(r, "username"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, urlResponse{URL: url})
}
