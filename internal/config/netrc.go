package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// NetrcEntry holds the credentials of one machine line.
type NetrcEntry struct {
	Machine  string
	Login    string
	Password string
	Account  string
}

const netrcDefault = "default"

// netrcFile indexes entries by machine name. The "default" entry, if any,
// is stored under that name.
type netrcFile map[string]NetrcEntry

// readNetrc parses the file at path. A missing file yields an empty index.
func readNetrc(path string) (netrcFile, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return netrcFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("netrc: open: %w", err)
	}
	defer f.Close()
	return parseNetrc(f)
}

// parseNetrc reads netrc tokens. Keywords may span lines; comment lines
// and macdef bodies are skipped.
func parseNetrc(r io.Reader) (netrcFile, error) {
	out := netrcFile{}
	var (
		cur     *NetrcEntry
		pending string
		inMacro bool
	)
	flush := func() {
		if cur != nil && cur.Machine != "" {
			if _, seen := out[cur.Machine]; !seen {
				out[cur.Machine] = *cur
			}
		}
		cur = nil
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if inMacro {
			// A macro body ends at the first blank line.
			if strings.TrimSpace(line) == "" {
				inMacro = false
			}
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}

		for _, tok := range strings.Fields(line) {
			if pending != "" {
				switch pending {
				case "machine":
					flush()
					cur = &NetrcEntry{Machine: tok}
				case "login":
					if cur != nil {
						cur.Login = tok
					}
				case "password":
					if cur != nil {
						cur.Password = tok
					}
				case "account":
					if cur != nil {
						cur.Account = tok
					}
				case "macdef":
					inMacro = true
				}
				pending = ""
				continue
			}
			switch tok {
			case "machine", "login", "password", "account", "macdef":
				pending = tok
			case netrcDefault:
				flush()
				cur = &NetrcEntry{Machine: netrcDefault}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("netrc: scan: %w", err)
	}
	flush()
	return out, nil
}

// lookup finds the entry for a site given as host, host:port or URL. The
// first entry for a machine wins, then the entry without port, then default.
func (n netrcFile) lookup(site string) (NetrcEntry, bool) {
	host := strings.TrimSpace(site)
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Host
	}
	candidates := []string{host}
	if h, _, err := net.SplitHostPort(host); err == nil {
		candidates = append(candidates, h)
	}
	candidates = append(candidates, netrcDefault)

	for _, name := range candidates {
		if e, ok := n[name]; ok {
			return e, true
		}
	}
	return NetrcEntry{}, false
}

// netrcPath honours $NETRC before ~/.netrc.
func netrcPath() string {
	if p := os.Getenv("NETRC"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".netrc")
}

// applyNetrcDefaults fills a missing email/API token pair from netrc. An
// OAuth token or any explicit credential disables the lookup.
func (c *Config) applyNetrcDefaults() error {
	jira := &c.Atlassian.Jira
	if jira.Site == "" || jira.Email != "" || jira.APIToken != "" || jira.OAuthToken != "" {
		return nil
	}

	path := netrcPath()
	if path == "" {
		return nil
	}
	entries, err := readNetrc(path)
	if err != nil {
		return fmt.Errorf("config: load jira netrc: %w", err)
	}
	if e, ok := entries.lookup(jira.Site); ok && e.Login != "" && e.Password != "" {
		jira.Email = e.Login
		jira.APIToken = e.Password
	}
	return nil
}
