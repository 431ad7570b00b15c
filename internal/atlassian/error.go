package atlassian

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrDecode marks a 2xx response whose body could not be decoded.
var ErrDecode = errors.New("atlassian: decode response")

// Error represents an Atlassian REST error response.
type Error struct {
	StatusCode    int               `json:"-"`
	RetryAfter    time.Duration     `json:"-"`
	HasRetryAfter bool              `json:"-"`
	Message       string            `json:"message"`
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Message != "" {
		return fmt.Sprintf("atlassian: %d %s", e.StatusCode, e.Message)
	}

	if len(e.ErrorMessages) > 0 {
		return fmt.Sprintf("atlassian: %d %s", e.StatusCode, strings.Join(e.ErrorMessages, "; "))
	}

	if len(e.Errors) > 0 {
		return fmt.Sprintf("atlassian: %d %s", e.StatusCode, formatFieldErrors(e.Errors))
	}

	return fmt.Sprintf("atlassian: %d", e.StatusCode)
}

// Messages returns every human-readable message carried by the response.
func (e *Error) Messages() []string {
	var out []string
	if e.Message != "" {
		out = append(out, e.Message)
	}
	return append(out, e.ErrorMessages...)
}

func parseError(res *http.Response, now time.Time) error {
	data, _ := io.ReadAll(res.Body)
	errRes := &Error{StatusCode: res.StatusCode}
	errRes.RetryAfter, errRes.HasRetryAfter = RetryAfter(res.Header, now)
	if len(data) > 0 {
		_ = json.Unmarshal(data, errRes)
	}

	if errRes.Message == "" && len(errRes.ErrorMessages) == 0 && len(errRes.Errors) == 0 {
		errRes.Message = strings.TrimSpace(string(data))
	}

	return errRes
}

// RetryAfter returns the delay requested by the Retry-After header of h.
// The flag is false when the header is absent or unparseable; a zero delay
// with true means retry immediately.
func RetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	if h == nil {
		return 0, false
	}
	return parseRetryAfter(h.Get("Retry-After"), now)
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms. Dates in
// the past mean now.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}

func formatFieldErrors(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return strings.Join(parts, "; ")
}
