package cookies

import (
	"errors"
	"strings"
)

// ErrMissingUserID indicates the cookie string has no DedeUserID entry.
var ErrMissingUserID = errors.New("cookie string missing DedeUserID")

// ParseHeader parses a raw Cookie request-header value.
// Format: name1=value1; name2=value2
func ParseHeader(raw string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, found := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if !found || name == "" {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}

// UserID extracts the account ID (DedeUserID) from a raw Cookie header
// value. The favorites-listing endpoints key on it as up_mid.
func UserID(raw string) (string, error) {
	id := ParseHeader(raw)["DedeUserID"]
	if id == "" {
		return "", ErrMissingUserID
	}
	return id, nil
}
