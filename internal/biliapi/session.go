// Package biliapi implements the bilibili web API client: a shared
// authenticated session, transport-level retry, the 412 cooldown loop,
// pagination, and the typed endpoints the pipeline consumes.
package biliapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kevinlinvk/bilifavdown/internal/retry"
	"github.com/kevinlinvk/bilifavdown/internal/types"
)

const (
	defaultAPIBase   = "https://api.bilibili.com"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0"
	siteOrigin = "https://www.bilibili.com"

	defaultTimeout          = 60 * time.Second
	defaultTransportRetries = 5
	initialBackoff          = 500 * time.Millisecond
	maxBackoff              = 30 * time.Second
)

// transportRetryStatus lists the transient status codes retried at the
// transport layer. 412 is deliberately absent: it has its own loop.
var transportRetryStatus = map[int]struct{}{
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// HTTPClient is the underlying client. If nil a client with the
	// default timeout is used.
	HTTPClient *http.Client

	// Cookies is the raw Cookie header value carrying the auth session.
	Cookies string

	// APIBase overrides the API host, for tests.
	APIBase string

	// UserAgent overrides the browser User-Agent.
	UserAgent string

	// TransportRetries bounds transient-status retries per request.
	TransportRetries int

	// Retry412 bounds the dedicated precondition-failed cooldown loop:
	// MaxAttempts total tries of the same request, Delay between them.
	Retry412 retry.Policy

	Logger types.Logger
}

// Session is the configuration-scoped API client. Every remote call of
// the paginator and the pipelines routes through it, so auth headers
// and retry behavior are applied uniformly.
type Session struct {
	client     *http.Client
	apiBase    string
	headers    http.Header
	transport  int
	retry412   retry.Policy
	log        types.Logger
	rawCookies string
}

// NewSession builds a Session. The header set mirrors what the site's
// own web player sends; several endpoints reject requests without it.
func NewSession(cfg SessionConfig) *Session {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	base := cfg.APIBase
	if base == "" {
		base = defaultAPIBase
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	transport := cfg.TransportRetries
	if transport <= 0 {
		transport = defaultTransportRetries
	}
	log := cfg.Logger
	if log == nil {
		log = types.NopLogger()
	}

	headers := make(http.Header)
	headers.Set("User-Agent", ua)
	headers.Set("Referer", siteOrigin)
	headers.Set("Origin", siteOrigin)
	headers.Set("Cookie", cfg.Cookies)
	headers.Set("Sec-Fetch-Dest", "empty")
	headers.Set("Sec-Fetch-Mode", "cors")
	headers.Set("Sec-Fetch-Site", "same-site")
	headers.Set("X-Requested-With", "com.bilibili.app")

	return &Session{
		client:     client,
		apiBase:    base,
		headers:    headers,
		transport:  transport,
		retry412:   cfg.Retry412,
		log:        log,
		rawCookies: cfg.Cookies,
	}
}

// HTTPClient exposes the underlying client for media downloads.
func (s *Session) HTTPClient() *http.Client { return s.client }

// Headers returns a copy of the session request headers.
func (s *Session) Headers() http.Header {
	out := make(http.Header, len(s.headers))
	for k, v := range s.headers {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// apiStatusError indicates a non-200 HTTP status from the API host.
type apiStatusError struct {
	StatusCode int
	URL        string
}

func (e *apiStatusError) Error() string {
	return fmt.Sprintf("api http status=%d url=%s", e.StatusCode, e.URL)
}

// APIError indicates a decoded envelope with a non-zero code.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error code=%d message=%s", e.Code, e.Message)
}

// Is lets callers classify any application-level API error as
// "data unavailable" via errors.Is.
func (e *APIError) Is(target error) bool { return target == types.ErrUnavailable }

// GetJSON performs a GET against path (resolved under the API base),
// decodes the response envelope, and unmarshals its data field into
// out. Transient statuses are retried with capped exponential backoff;
// a 412 triggers the dedicated cooldown loop. When that budget is
// exhausted the call returns ErrRateLimited so callers can treat the
// result as "no data" rather than aborting the run.
func (s *Session) GetJSON(ctx context.Context, path string, params url.Values, out any) error {
	var body []byte
	err := s.retry412.Do(ctx, is412, func() error {
		var opErr error
		body, opErr = s.doGET(ctx, path, params)
		if is412(opErr) {
			s.log.Warnf("got 412, cooling down %s before retry: %s", s.retry412.Delay, path)
		}
		return opErr
	})
	if err != nil {
		if is412(err) {
			s.log.Errorf("412 retry budget exhausted, giving up: %s", path)
			return fmt.Errorf("%w: %s", types.ErrRateLimited, path)
		}
		return err
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response for %s: %w", path, err)
	}
	if env.Code != 0 {
		return &APIError{Code: env.Code, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data for %s: %w", path, err)
	}
	return nil
}

func is412(err error) bool {
	var statusErr *apiStatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusPreconditionFailed
}

// doGET issues one GET with session headers, retrying transient
// statuses and connection errors up to the transport budget.
func (s *Session) doGET(ctx context.Context, path string, params url.Values) ([]byte, error) {
	rawURL := s.apiBase + path
	if len(params) > 0 {
		rawURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= s.transport; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range s.headers {
			req.Header[k] = v
		}

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := func() ([]byte, error) {
				defer resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					return nil, &apiStatusError{StatusCode: resp.StatusCode, URL: rawURL}
				}
				return io.ReadAll(resp.Body)
			}()
			if readErr == nil {
				return body, nil
			}
			lastErr = readErr
		}

		if !isTransportRetryable(lastErr) || attempt == s.transport {
			return nil, lastErr
		}
		if err := retry.Sleep(ctx, backoffFor(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func isTransportRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *apiStatusError
	if errors.As(err, &statusErr) {
		_, ok := transportRetryStatus[statusErr.StatusCode]
		return ok
	}
	return true
}

func backoffFor(attempt int) time.Duration {
	backoff := initialBackoff
	for i := 0; i < attempt; i++ {
		backoff *= 2
		if backoff > maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}

// nowMillis is the ts query parameter the web player attaches.
func nowMillis() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}
