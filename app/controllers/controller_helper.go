package controllers

import (
	"net/url"
	"strings"
)

// decodeEmailParam unescapes a path segment used to carry an email address
// ("%40" arrives for "@") and normalizes it for lookups.
func decodeEmailParam(raw string) (string, error) {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(decoded)), nil
}
