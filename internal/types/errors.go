package types

import "errors"

var (
	// ErrUnavailable indicates the remote API reported no usable data
	// for the request (application-level error code, missing manifest,
	// deleted video). Callers skip the unit of work instead of failing
	// the whole run.
	ErrUnavailable = errors.New("data unavailable")

	// ErrRateLimited indicates the anti-scraping 412 retry budget was
	// exhausted. Treated like ErrUnavailable by callers.
	ErrRateLimited = errors.New("rate limited")
)
