package source

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrUnsafeIdentifier is returned when a table or column name fails the
// allow-list check. Identifiers can arrive from attacker-controlled request
// paths, so nothing outside [A-Za-z0-9_] is ever interpolated into SQL.
var ErrUnsafeIdentifier = errors.New("unsafe identifier")

var identPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// SanitizeIdent validates name against the identifier allow-list.
func SanitizeIdent(name string) (string, error) {
	if name == "" || !identPattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeIdentifier, name)
	}
	return name, nil
}

// QuoteIdent sanitizes and double-quotes an identifier for use in a
// generated statement.
func QuoteIdent(name string) (string, error) {
	s, err := SanitizeIdent(name)
	if err != nil {
		return "", err
	}
	return `"` + s + `"`, nil
}
