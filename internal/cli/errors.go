package cli

import (
	"context"
	"errors"

	"github.com/ylchen07/lazyjira/internal/jira"
)

// Exit codes beyond the generic failure.
const (
	exitFailure      = 1
	exitAuth         = 3
	exitNotFound     = 4
	exitInvalidInput = 5
	exitConflict     = 6
	exitUnavailable  = 7
	exitInterrupted  = 130
)

func exitCode(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	case errors.Is(err, jira.ErrAuth):
		return exitAuth
	case errors.Is(err, jira.ErrNotFound):
		return exitNotFound
	case errors.Is(err, jira.ErrValidation), errors.Is(err, jira.ErrInvalidTransition):
		return exitInvalidInput
	case errors.Is(err, jira.ErrConflict):
		return exitConflict
	case errors.Is(err, jira.ErrNetwork), errors.Is(err, jira.ErrRateLimited), errors.Is(err, jira.ErrServer):
		return exitUnavailable
	}
	return exitFailure
}
