package biliapi

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/kevinlinvk/bilifavdown/internal/retry"
)

// pageSize is the API's standard page size for list endpoints.
const pageSize = 20

// Paginate drives a list endpoint from page 1 until a short page
// signals end-of-data, accumulating the items under dataKey. A request
// error or non-zero API code ends the loop early with the items
// gathered so far; partial results are returned, not discarded.
// delay is the mandatory pause between page requests.
func (s *Session) Paginate(ctx context.Context, path string, params url.Values, dataKey string, delay time.Duration) []json.RawMessage {
	var results []json.RawMessage

	for page := 1; ; page++ {
		reqParams := url.Values{
			"pn":       {strconv.Itoa(page)},
			"ps":       {strconv.Itoa(pageSize)},
			"platform": {"web"},
			"ts":       {nowMillis()},
		}
		for k, v := range params {
			reqParams[k] = v
		}

		var payload map[string]json.RawMessage
		if err := s.GetJSON(ctx, path, reqParams, &payload); err != nil {
			s.log.Errorf("page %d of %s failed, keeping %d items: %v", page, path, len(results), err)
			return results
		}

		var items []json.RawMessage
		if raw, ok := payload[dataKey]; ok && string(raw) != "null" {
			if err := json.Unmarshal(raw, &items); err != nil {
				s.log.Errorf("page %d of %s has malformed %q array: %v", page, path, dataKey, err)
				return results
			}
		}
		results = append(results, items...)

		if len(items) < pageSize {
			return results
		}
		if err := retry.Sleep(ctx, delay); err != nil {
			return results
		}
	}
}
