package biliapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kevinlinvk/bilifavdown/internal/retry"
	"github.com/kevinlinvk/bilifavdown/internal/types"
)

func newTestSession(t *testing.T, handler http.Handler) (*Session, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := NewSession(SessionConfig{
		HTTPClient: srv.Client(),
		Cookies:    "DedeUserID=654321; SESSDATA=abc",
		APIBase:    srv.URL,
		Retry412:   retry.Policy{MaxAttempts: 3, Delay: time.Millisecond},
	})
	return s, srv
}

func TestGetJSONDecodesEnvelope(t *testing.T) {
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"data":{"bvid":"BV1","title":"hello"}}`))
	}))

	var out struct {
		BVID  string `json:"bvid"`
		Title string `json:"title"`
	}
	if err := s.GetJSON(context.Background(), "/x/test", nil, &out); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if out.BVID != "BV1" || out.Title != "hello" {
		t.Fatalf("GetJSON() decoded = %+v, want BV1/hello", out)
	}
}

func TestGetJSONSendsSessionHeaders(t *testing.T) {
	var gotCookie, gotReferer string
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotReferer = r.Header.Get("Referer")
		_, _ = w.Write([]byte(`{"code":0}`))
	}))

	if err := s.GetJSON(context.Background(), "/x/test", nil, nil); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if gotCookie != "DedeUserID=654321; SESSDATA=abc" {
		t.Fatalf("Cookie header = %q, want session cookies", gotCookie)
	}
	if gotReferer != siteOrigin {
		t.Fatalf("Referer header = %q, want %q", gotReferer, siteOrigin)
	}
}

func TestGetJSONNonZeroCodeIsUnavailable(t *testing.T) {
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":-404,"message":"啥都木有"}`))
	}))

	err := s.GetJSON(context.Background(), "/x/test", nil, nil)
	if err == nil {
		t.Fatalf("GetJSON() error = nil, want API error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != -404 {
		t.Fatalf("GetJSON() error = %v, want APIError code -404", err)
	}
	if !errors.Is(err, types.ErrUnavailable) {
		t.Fatalf("GetJSON() error %v should classify as ErrUnavailable", err)
	}
}

func TestGetJSONRetriesAfter412(t *testing.T) {
	var calls int32
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusPreconditionFailed)
			return
		}
		_, _ = w.Write([]byte(`{"code":0}`))
	}))

	if err := s.GetJSON(context.Background(), "/x/test", nil, nil); err != nil {
		t.Fatalf("GetJSON() error = %v, want success after 412 cooldowns", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("requests = %d, want 3", got)
	}
}

func TestGetJSON412BudgetExhaustedReturnsRateLimited(t *testing.T) {
	var calls int32
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusPreconditionFailed)
	}))

	err := s.GetJSON(context.Background(), "/x/test", nil, nil)
	if !errors.Is(err, types.ErrRateLimited) {
		t.Fatalf("GetJSON() error = %v, want ErrRateLimited", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("requests = %d, want the full 412 budget of 3", got)
	}
}

func TestDoGETRetriesTransientStatus(t *testing.T) {
	var calls int32
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"code":0}`))
	}))

	if err := s.GetJSON(context.Background(), "/x/test", nil, nil); err != nil {
		t.Fatalf("GetJSON() error = %v, want success after transient 503", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("requests = %d, want 2", got)
	}
}

func TestDoGETDoesNotRetryHardStatus(t *testing.T) {
	var calls int32
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))

	if err := s.GetJSON(context.Background(), "/x/test", nil, nil); err == nil {
		t.Fatalf("GetJSON() error = nil, want status error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("requests = %d, want 1 for non-retryable status", got)
	}
}

func TestGetJSONEncodesParams(t *testing.T) {
	var gotQuery url.Values
	s, _ := newTestSession(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"code":0}`))
	}))

	params := url.Values{"bvid": {"BV1"}, "qn": {"80"}}
	if err := s.GetJSON(context.Background(), "/x/player/playurl", params, nil); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if gotQuery.Get("bvid") != "BV1" || gotQuery.Get("qn") != "80" {
		t.Fatalf("query = %v, want bvid=BV1 qn=80", gotQuery)
	}
}
