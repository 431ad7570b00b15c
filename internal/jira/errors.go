package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ylchen07/lazyjira/internal/atlassian"
	"github.com/ylchen07/lazyjira/internal/auth"
)

// Error kinds. Every error returned by Client matches exactly one of these
// with errors.Is.
var (
	ErrNetwork           = errors.New("network error")
	ErrRateLimited       = errors.New("rate limited")
	ErrServer            = errors.New("server error")
	ErrAuth              = errors.New("authentication failed")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrParse             = errors.New("malformed response")
)

// Error is a classified failure carrying the operation and the ticket key
// or query it was about.
type Error struct {
	Kind        error
	Op          string
	Target      string
	StatusCode  int
	Messages    []string
	FieldErrors map[string]string
	Retry       time.Duration
	RetryHinted bool
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("jira: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		if e.Target != "" {
			fmt.Fprintf(&b, " %q", e.Target)
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}

	var details []string
	details = append(details, e.Messages...)
	keys := make([]string, 0, len(e.FieldErrors))
	for k := range e.FieldErrors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		details = append(details, k+": "+e.FieldErrors[k])
	}
	if len(details) == 0 && e.Err != nil && e.StatusCode == 0 {
		details = append(details, e.Err.Error())
	}
	if len(details) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(details, "; "))
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Transient reports whether retrying may succeed.
func (e *Error) Transient() bool {
	return e.Kind == ErrNetwork || e.Kind == ErrRateLimited || e.Kind == ErrServer
}

// RetryAfter returns the server-supplied delay and whether one was given.
func (e *Error) RetryAfter() (time.Duration, bool) { return e.Retry, e.RetryHinted }

func validationError(op, target string, fields map[string]string) *Error {
	return &Error{Kind: ErrValidation, Op: op, Target: target, FieldErrors: fields}
}

func parseError(format string, args ...any) *Error {
	return &Error{Kind: ErrParse, Err: fmt.Errorf(format, args...)}
}

// NewInvalidTransitionError reports that transitionID is not currently
// available for key.
func NewInvalidTransitionError(key, transitionID string, available []Transition) *Error {
	ids := make([]string, 0, len(available))
	for _, t := range available {
		ids = append(ids, t.ID+" ("+t.Name+")")
	}
	msg := fmt.Sprintf("transition %q is not available", transitionID)
	if len(ids) > 0 {
		msg += "; available: " + strings.Join(ids, ", ")
	}
	return &Error{
		Kind:     ErrInvalidTransition,
		Op:       "apply transition",
		Target:   key,
		Messages: []string{msg},
	}
}

// NewConflictError reports that key changed since the caller last read it.
func NewConflictError(key string, want, got int64) *Error {
	return &Error{
		Kind:     ErrConflict,
		Op:       "update ticket",
		Target:   key,
		Messages: []string{fmt.Sprintf("expected version %d, found %d", want, got)},
	}
}

// classify maps a transport-level failure onto the error taxonomy.
// Cancellation passes through untouched. Timeouts, including an expired
// http.Client deadline, are network failures; a caller whose own context
// ended is detected by call before classification.
func classify(op, target string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var classified *Error
	if errors.As(err, &classified) {
		if classified.Op == "" {
			classified.Op = op
		}
		if classified.Target == "" {
			classified.Target = target
		}
		return classified
	}

	out := &Error{Op: op, Target: target, Err: err}

	var apiErr *atlassian.Error
	switch {
	case errors.As(err, &apiErr):
		out.StatusCode = apiErr.StatusCode
		out.Messages = apiErr.Messages()
		out.FieldErrors = apiErr.Errors
		out.Retry, out.RetryHinted = apiErr.RetryAfter, apiErr.HasRetryAfter
		out.Kind = kindForStatus(apiErr.StatusCode)
	case errors.Is(err, atlassian.ErrDecode):
		out.Kind = ErrParse
	case errors.Is(err, auth.ErrInsufficientCredentials):
		out.Kind = ErrAuth
	default:
		out.Kind = ErrNetwork
	}
	return out
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuth
	case status == http.StatusNotFound || status == http.StatusGone:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return ErrServer
	default:
		return ErrValidation
	}
}
