package cache

import (
	"regexp"
	"slices"
	"strings"

	"github.com/ylchen07/lazyjira/internal/jira"
)

var (
	projectClause = regexp.MustCompile(`(?i)\bproject\b`)
	// project = KEY, project = "KEY", project in (A, "B")
	simpleProjectClause = regexp.MustCompile(`(?i)^\bproject\s*(?:=\s*("[^"]*"|'[^']*'|[A-Za-z0-9_]+)|in\s*\(([^()]*)\))`)
	disjunction         = regexp.MustCompile(`(?i)\b(or|not)\b|!=`)
	numericID           = regexp.MustCompile(`^[0-9]+$`)
)

// SearchAffectedBy reports whether a search page could include ticketKey
// after a write to it. It errs on the side of true: a page is spared only
// when it does not list the ticket and its query provably restricts
// results to other projects through plain equality or membership clauses
// joined by AND.
func SearchAffectedBy(ticketKey string, jql string, keys []string) bool {
	if slices.Contains(keys, ticketKey) {
		return true
	}
	project := jira.ProjectKeyOf(ticketKey)
	if project == "" {
		return true
	}
	if mentionsWord(jql, project) {
		return true
	}

	locs := projectClause.FindAllStringIndex(jql, -1)
	if len(locs) == 0 || disjunction.MatchString(jql) {
		return true
	}
	for _, loc := range locs {
		projects, ok := parseProjectClause(jql[loc[0]:])
		if !ok {
			return true
		}
		for _, p := range projects {
			if numericID.MatchString(p) || strings.EqualFold(p, project) {
				return true
			}
		}
	}
	return false
}

// parseProjectClause extracts the literal project keys of a clause at the
// start of s, or reports false when the clause is anything else.
func parseProjectClause(s string) ([]string, bool) {
	m := simpleProjectClause.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	if m[1] != "" {
		return []string{unquote(m[1])}, true
	}
	var out []string
	for _, part := range strings.Split(m[2], ",") {
		p := unquote(strings.TrimSpace(part))
		if p == "" {
			return nil, false
		}
		out = append(out, p)
	}
	return out, len(out) > 0
}

func unquote(s string) string {
	return strings.Trim(s, `"'`)
}

func mentionsWord(text, word string) bool {
	re, err := regexp.Compile(`(?i)(^|[^A-Za-z0-9_])` + regexp.QuoteMeta(word) + `($|[^A-Za-z0-9_])`)
	if err != nil {
		return true
	}
	return re.MatchString(text)
}
