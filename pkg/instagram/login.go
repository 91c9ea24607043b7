package instagram

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	errs "igfeed/pkg/errors"
	"igfeed/pkg/models"
	"igfeed/pkg/scraper"
)

// Login performs the web password login. When Instagram asks for a
// verification code the returned error is a *scraper.TwoFactorRequiredError
// holding everything TwoFactorLogin needs.
func (e *Engine) Login(ctx context.Context, username, password string) (*models.Session, error) {
	if username == "" || password == "" {
		return nil, errs.New(errs.KindBadRequest, http.StatusBadRequest, "Login error: username and password are required.")
	}

	c := e.newClient(username, nil, e.userAgent)
	if err := c.primeCSRF(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("enc_password", EncryptPassword(password, e.now().Unix()))
	form.Set("queryParams", "{}")
	form.Set("optIntoOneTap", "false")

	var resp LoginResponse
	if _, err := c.postForm(ctx, LoginEndpoint, form, &resp); err != nil {
		return nil, loginFailure(err)
	}

	switch {
	case resp.TwoFactorRequired:
		c.logger.Info("Two-factor authentication required")
		return nil, &scraper.TwoFactorRequiredError{Challenge: &models.TwoFactorChallenge{
			Username:   username,
			Identifier: resp.TwoFactorInfo.TwoFactorIdentifier,
			Cookies:    c.Cookies(),
			UserAgent:  c.userAgent,
		}}
	case resp.CheckpointURL != "":
		return nil, errs.Newf(errs.KindUnauthorized, http.StatusUnauthorized,
			"Login: Checkpoint required. Point your browser to %s, follow the instructions, then retry.", resp.CheckpointURL)
	case resp.Status != "ok":
		if resp.Message != "" {
			return nil, errs.Newf(errs.KindUnauthorized, http.StatusUnauthorized,
				"Login error: %q status, message %q.", resp.Status, resp.Message)
		}
		return nil, errs.Newf(errs.KindUnauthorized, http.StatusUnauthorized, "Login error: %q status.", resp.Status)
	case !resp.Authenticated && resp.User:
		return nil, errs.New(errs.KindUnauthorized, http.StatusUnauthorized, "Login error: Wrong password.")
	case !resp.Authenticated:
		return nil, errs.Newf(errs.KindBadRequest, http.StatusBadRequest, "Login error: User %s does not exist.", username)
	}

	return c.session(resp.UserID)
}

// TwoFactorLogin finishes a login paused by a verification code request
func (e *Engine) TwoFactorLogin(ctx context.Context, challenge *models.TwoFactorChallenge, code string) (*models.Session, error) {
	if challenge == nil || challenge.Username == "" {
		return nil, errs.New(errs.KindBadRequest, http.StatusBadRequest, "No two-factor authentication pending.")
	}
	if code == "" {
		return nil, errs.New(errs.KindBadRequest, http.StatusBadRequest, "2FA error: verification code is required.")
	}

	ua := challenge.UserAgent
	if ua == "" {
		ua = e.userAgent
	}
	c := e.newClient(challenge.Username, challenge.Cookies, ua)

	form := url.Values{}
	form.Set("username", challenge.Username)
	form.Set("verificationCode", code)
	form.Set("identifier", challenge.Identifier)

	var resp LoginResponse
	if _, err := c.postForm(ctx, TwoFactorEndpoint, form, &resp); err != nil {
		return nil, loginFailure(err)
	}
	if resp.Status != "ok" {
		if resp.Message != "" {
			return nil, errs.Newf(errs.KindUnauthorized, http.StatusUnauthorized, "2FA error: %s", resp.Message)
		}
		return nil, errs.Newf(errs.KindUnauthorized, http.StatusUnauthorized, "2FA error: %q status.", resp.Status)
	}

	return c.session(resp.UserID)
}

// primeCSRF loads the landing page so Instagram sets a csrftoken cookie
func (c *Client) primeCSRF(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/", nil, nil)
	if err != nil {
		return err
	}
	resp, err := c.doRequest(req)
	if err != nil {
		return loginFailure(err)
	}
	resp.Body.Close()

	if c.cookie(models.CookieCSRFToken) == "" {
		return errs.New(errs.KindUnauthorized, http.StatusUnauthorized, "Login error: Instagram did not issue a CSRF token.")
	}
	return nil
}

func (c *Client) session(userID string) (*models.Session, error) {
	cookies := c.Cookies()
	if cookies[models.CookieSessionID] == "" {
		return nil, errs.New(errs.KindUnauthorized, http.StatusUnauthorized, "Login error: Instagram did not issue a session.")
	}
	if userID == "" {
		userID = cookies[models.CookieUserID]
	}

	c.logger.Info("Login accepted")
	return &models.Session{
		Username:  c.username,
		UserID:    userID,
		Cookies:   cookies,
		UserAgent: c.userAgent,
	}, nil
}

// loginFailure reports transport problems during login as unauthorized
func loginFailure(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errs.KindOf(err) == errs.KindUnauthorized {
		return err
	}
	return errs.Wrap(err, errs.KindUnauthorized, http.StatusUnauthorized, "Login error: Connection to Instagram failed.")
}
