package jira

import (
	"regexp"
	"strings"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*-[0-9]+$`)

// ValidateKey checks that key has the PROJECT-NUMBER form.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return validationError("", key, map[string]string{"key": "ticket key cannot be empty"})
	case !keyPattern.MatchString(key):
		return validationError("", key, map[string]string{"key": "ticket key must be in format PROJECT-NUMBER"})
	}
	return nil
}

// ProjectKeyOf returns the project prefix of a ticket key, or "" when the
// key is malformed.
func ProjectKeyOf(key string) string {
	i := strings.LastIndexByte(key, '-')
	if i <= 0 {
		return ""
	}
	return key[:i]
}
