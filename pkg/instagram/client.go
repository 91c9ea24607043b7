package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"igfeed/pkg/config"
	errs "igfeed/pkg/errors"
	"igfeed/pkg/logger"
	"igfeed/pkg/models"
	"igfeed/pkg/ratelimit"
	"igfeed/pkg/retry"
	"igfeed/pkg/scraper"
)

var _ scraper.Engine = (*Engine)(nil)
var _ scraper.Reader = (*Client)(nil)

// Engine talks to Instagram's web API. It is safe for concurrent use; the
// cookie state of each account lives in the Client it hands out.
type Engine struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger
	now        func() time.Time
}

// NewEngine creates an engine from the instagram config section
func NewEngine(cfg config.InstagramConfig, log logger.Logger) *Engine {
	// Use default logger if none provided
	if log == nil {
		log = logger.GetLogger()
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = BaseURL
	}

	var limiter ratelimit.Limiter = ratelimit.Unlimited()
	if cfg.RequestsPerMinute > 0 {
		limiter = ratelimit.PerMinute(cfg.RequestsPerMinute, 1)
	}

	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	return &Engine{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			// redirects to the login page mean the call needs a session
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL:   baseURL,
		userAgent: cfg.UserAgent,
		limiter:   limiter,
		retry: &retry.Config{
			MaxAttempts: cfg.MaxRetries + 1,
			Backoff:     retry.NewKindBackoffFrom(delay),
			RetryIf:     retry.DefaultRetryIf,
			Logger:      log,
		},
		logger: log,
		now:    time.Now,
	}
}

// Anonymous returns a reader without any account attached
func (e *Engine) Anonymous() scraper.Reader {
	return e.newClient("", nil, e.userAgent)
}

// WithSession returns a reader acting as the session's account
func (e *Engine) WithSession(s *models.Session) (scraper.Reader, error) {
	if !s.Valid() {
		return nil, errs.New(errs.KindUnauthorized, http.StatusUnauthorized, "Session is incomplete, log in again.")
	}
	ua := s.UserAgent
	if ua == "" {
		ua = e.userAgent
	}
	return e.newClient(s.Username, s.Cookies, ua), nil
}

// Client is a reader bound to one cookie state
type Client struct {
	engine    *Engine
	username  string
	userAgent string
	logger    logger.Logger

	mu       sync.Mutex
	cookies  map[string]string
	timeline map[string]TimelineMedia
}

func (e *Engine) newClient(username string, cookies map[string]string, userAgent string) *Client {
	c := &Client{
		engine:    e,
		username:  username,
		userAgent: userAgent,
		logger:    e.logger,
		cookies:   make(map[string]string, len(cookies)),
		timeline:  make(map[string]TimelineMedia),
	}
	for k, v := range cookies {
		c.cookies[k] = v
	}
	if username != "" {
		c.logger = e.logger.WithField("account", username)
	}
	return c
}

// Cookies returns a copy of the current cookie state
func (c *Client) Cookies() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.cookies))
	for k, v := range c.cookies {
		out[k] = v
	}
	return out
}

func (c *Client) cookie(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cookies[name]
}

func (c *Client) storeCookies(resp *http.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ck := range resp.Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" || ck.Value == `""` {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck.Value
	}
}

func (c *Client) cookieHeader() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := make([]string, 0, len(c.cookies))
	for k, v := range c.cookies {
		parts = append(parts, (&http.Cookie{Name: k, Value: v}).String())
	}
	return strings.Join(parts, "; ")
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := c.engine.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errs.Wrap(err, errs.KindUnknown, 0, "failed to create request")
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("X-IG-App-ID", AppID)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", c.engine.baseURL+"/")
	if token := c.cookie(models.CookieCSRFToken); token != "" {
		req.Header.Set("X-CSRFToken", token)
	}
	if cookies := c.cookieHeader(); cookies != "" {
		req.Header.Set("Cookie", cookies)
	}
	return req, nil
}

// doRequest performs an HTTP request after waiting for the upstream limiter
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	if err := c.engine.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"path":   req.URL.Path,
	})

	resp, err := c.engine.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"path":     req.URL.Path,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(err, errs.KindNetwork, 0, "Connection to Instagram failed.")
	}

	c.storeCookies(resp)
	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": duration,
	})
	return resp, nil
}

// getJSON performs a GET with retries and decodes the JSON response
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target interface{}) error {
	return retry.Do(ctx, c.engine.retry, func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
		if err != nil {
			return err
		}
		resp, err := c.doRequest(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := c.checkResponseStatus(resp); err != nil {
			return err
		}
		return c.decode(resp, target)
	})
}

// postForm submits a form once; login calls are never retried
func (c *Client) postForm(ctx context.Context, path string, form url.Values, target interface{}) (int, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, nil, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.doRequest(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// login failures come back as 400 with a JSON body worth reading
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return resp.StatusCode, c.checkResponseStatus(resp)
	}
	return resp.StatusCode, c.decode(resp, target)
}

func (c *Client) decode(resp *http.Response, target interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(err, errs.KindNetwork, resp.StatusCode, "failed to read response body")
	}

	if err := json.Unmarshal(body, target); err != nil {
		// Create a preview of the body for debugging
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"path":         resp.Request.URL.Path,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return errs.Wrap(err, errs.KindParsing, resp.StatusCode, fmt.Sprintf("failed to parse JSON: %v", err))
	}
	return nil
}

// checkResponseStatus maps HTTP status codes to error kinds
func (c *Client) checkResponseStatus(resp *http.Response) error {
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"path":   resp.Request.URL.Path,
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
		(resp.StatusCode >= 300 && resp.StatusCode < 400):
		c.logger.WarnWithFields("authentication error", fields)
		return errs.New(errs.KindUnauthorized, http.StatusUnauthorized, "authentication required")
	case resp.StatusCode == http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", fields)
		return errs.New(errs.KindNotFound, resp.StatusCode, "resource not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", fields)
		return errs.New(errs.KindRateLimit, resp.StatusCode, "rate limit exceeded")
	case resp.StatusCode >= 500:
		c.logger.ErrorWithFields("server error", fields)
		return errs.New(errs.KindServerError, resp.StatusCode, "server error")
	case resp.StatusCode >= 400:
		c.logger.ErrorWithFields("unexpected API error", fields)
		return errs.Newf(errs.KindUnknown, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	default:
		return nil
	}
}
