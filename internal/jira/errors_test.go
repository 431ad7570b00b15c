package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ylchen07/lazyjira/internal/atlassian"
	"github.com/ylchen07/lazyjira/internal/auth"
)

func TestClassifyStatusCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status    int
		kind      error
		transient bool
	}{
		{http.StatusBadRequest, ErrValidation, false},
		{http.StatusUnauthorized, ErrAuth, false},
		{http.StatusForbidden, ErrAuth, false},
		{http.StatusNotFound, ErrNotFound, false},
		{http.StatusConflict, ErrConflict, false},
		{http.StatusUnprocessableEntity, ErrValidation, false},
		{http.StatusTooManyRequests, ErrRateLimited, true},
		{http.StatusInternalServerError, ErrServer, true},
		{http.StatusServiceUnavailable, ErrServer, true},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			t.Parallel()
			err := classify("get ticket", "PROJ-1", &atlassian.Error{StatusCode: tc.status})

			var jerr *Error
			require.ErrorAs(t, err, &jerr)
			require.ErrorIs(t, err, tc.kind)
			require.Equal(t, tc.transient, jerr.Transient())
			require.Equal(t, tc.status, jerr.StatusCode)
			require.Equal(t, "PROJ-1", jerr.Target)
		})
	}
}

func TestClassifyCarriesRetryAfterAndDetails(t *testing.T) {
	t.Parallel()

	err := classify("search", "project = PROJ", &atlassian.Error{
		StatusCode:    http.StatusTooManyRequests,
		RetryAfter:    3 * time.Second,
		HasRetryAfter: true,
		ErrorMessages: []string{"rate limit exceeded"},
	})

	var jerr *Error
	require.ErrorAs(t, err, &jerr)
	d, ok := jerr.RetryAfter()
	require.True(t, ok)
	require.Equal(t, 3*time.Second, d)
	require.Equal(t, `jira: search "project = PROJ": rate limited (429): rate limit exceeded`, jerr.Error())
}

func TestClassifyNonHTTPFailures(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, classify("op", "", fmt.Errorf("%w: boom", atlassian.ErrDecode)), ErrParse)
	require.ErrorIs(t, classify("op", "", fmt.Errorf("wrapped: %w", auth.ErrInsufficientCredentials)), ErrAuth)
	require.ErrorIs(t, classify("op", "", errors.New("dial tcp: connection refused")), ErrNetwork)
	require.Nil(t, classify("op", "", nil))

	// Context errors stay unclassified so callers can tell abandonment apart.
	err := classify("op", "", fmt.Errorf("get: %w", context.Canceled))
	require.ErrorIs(t, err, context.Canceled)
	var jerr *Error
	require.False(t, errors.As(err, &jerr))

	// An http.Client timeout is a network failure, not abandonment.
	timeout := &url.Error{Op: "Get", URL: "https://example.atlassian.net", Err: context.DeadlineExceeded}
	err = classify("get ticket", "PROJ-1", timeout)
	require.ErrorIs(t, err, ErrNetwork)
	require.ErrorAs(t, err, &jerr)
	require.True(t, jerr.Transient())
}

func TestClassifyKeepsExistingClassification(t *testing.T) {
	t.Parallel()

	original := parseError("bad payload")
	err := classify("get ticket", "PROJ-2", original)
	require.Same(t, original, err)
	require.Equal(t, "get ticket", original.Op)
	require.Equal(t, "PROJ-2", original.Target)
}

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	err := NewInvalidTransitionError("PROJ-1", "11", []Transition{{ID: "21", Name: "Start"}})
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Equal(t, `jira: apply transition "PROJ-1": invalid transition: transition "11" is not available; available: 21 (Start)`, err.Error())

	conflict := NewConflictError("PROJ-1", 10, 12)
	require.ErrorIs(t, conflict, ErrConflict)
	require.False(t, conflict.Transient())

	v := validationError("create ticket", "PROJ", map[string]string{"summary": "summary is required", "issuetype": "issue type is required"})
	require.Equal(t, `jira: create ticket "PROJ": validation failed: issuetype: issue type is required; summary: summary is required`, v.Error())
}
