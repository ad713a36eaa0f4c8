package client

import "github.com/kevinlinvk/bilifavdown/internal/types"

var (
	// ErrUnavailable indicates the API reported no usable data for a
	// request; the affected unit of work is skipped, not fatal.
	ErrUnavailable = types.ErrUnavailable

	// ErrRateLimited indicates the anti-scraping cooldown budget was
	// exhausted for a request.
	ErrRateLimited = types.ErrRateLimited
)
