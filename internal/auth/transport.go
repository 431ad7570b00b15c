package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/ylchen07/lazyjira/internal/config"
)

// ErrInsufficientCredentials is returned when neither an OAuth token nor an
// email/API token pair is configured.
var ErrInsufficientCredentials = errors.New("auth: insufficient credentials")

// UserAgent identifies the client to the remote service.
const UserAgent = "lazyjira"

// Transport injects Atlassian authentication headers into outbound requests.
type Transport struct {
	base       http.RoundTripper
	authHeader string
	once       sync.Once
	initErr    error
	creds      config.ServiceCredentials
}

// NewTransport creates a new auth transport wrapping the provided RoundTripper.
func NewTransport(base http.RoundTripper, creds config.ServiceCredentials) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, creds: creds}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.initialize(); err != nil {
		return nil, err
	}

	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", t.authHeader)
	clone.Header.Set("Accept", "application/json")
	if clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", UserAgent)
	}
	return t.base.RoundTrip(clone)
}

func (t *Transport) initialize() error {
	t.once.Do(func() {
		switch {
		case strings.TrimSpace(t.creds.OAuthToken) != "":
			t.authHeader = fmt.Sprintf("Bearer %s", strings.TrimSpace(t.creds.OAuthToken))
		case strings.TrimSpace(t.creds.Email) != "" && t.creds.APIToken != "":
			token := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", strings.TrimSpace(t.creds.Email), t.creds.APIToken)))
			t.authHeader = fmt.Sprintf("Basic %s", token)
		default:
			t.initErr = ErrInsufficientCredentials
		}
	})
	return t.initErr
}
