package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ylchen07/lazyjira/internal/auth"
	"github.com/ylchen07/lazyjira/internal/jira"
)

// ConnectionState summarises a connectivity check.
type ConnectionState int

const (
	Connected ConnectionState = iota
	AuthenticationFailed
	NetworkError
	ConfigurationError
	UnknownError
)

func (s ConnectionState) String() string {
	switch s {
	case Connected:
		return "connected"
	case AuthenticationFailed:
		return "authentication failed"
	case NetworkError:
		return "network error"
	case ConfigurationError:
		return "configuration error"
	}
	return "unknown error"
}

// ConnectionStatus is the outcome of TestConnection.
type ConnectionStatus struct {
	State ConnectionState
	User  *jira.User
	Err   error
}

// OK reports whether the site answered as the configured account.
func (s ConnectionStatus) OK() bool { return s.State == Connected }

// Message returns a user-facing explanation, empty when connected.
func (s ConnectionStatus) Message() string {
	switch s.State {
	case Connected:
		return ""
	case AuthenticationFailed:
		return "Authentication failed. Please check your credentials."
	case NetworkError:
		return "Network error. Please check your internet connection."
	case ConfigurationError:
		return "Configuration error. Please check your lazyjira config."
	}
	if s.Err != nil {
		return s.Err.Error()
	}
	return "unknown error"
}

// TestConnection asks the server who the configured account is.
func (r *Repository) TestConnection(ctx context.Context) ConnectionStatus {
	user, err := r.api.Myself(ctx)
	if err == nil {
		r.logger.Info("connection test successful", slog.String("account", user.DisplayName))
		return ConnectionStatus{State: Connected, User: user}
	}

	r.logger.Warn("connection test failed", slog.Any("error", err))
	status := ConnectionStatus{State: UnknownError, Err: err}
	switch {
	case errors.Is(err, auth.ErrInsufficientCredentials):
		status.State = ConfigurationError
	case errors.Is(err, jira.ErrAuth):
		status.State = AuthenticationFailed
	case errors.Is(err, jira.ErrNetwork):
		status.State = NetworkError
	}
	return status
}
