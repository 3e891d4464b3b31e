package domain

import (
	"errors"
	"net/url"
	"strings"
)

// QueryScope restricts retrieval to passages whose stored URL starts with
// Prefix. It is recomputed from the raw URL on every call, never cached
// across navigation.
type QueryScope struct {
	Prefix string
	Mode   QueryMode
}

// ScopeFromURL derives the retrieval scope for the current page.
// Page mode keeps origin+path and drops the query string; site mode keeps
// only the origin.
func ScopeFromURL(rawURL string, mode QueryMode) (QueryScope, error) {
	if strings.TrimSpace(rawURL) == "" {
		return QueryScope{}, WrapError(ErrNoActiveScope, "derive scope", errEmptyURL)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return QueryScope{}, WrapError(ErrNoActiveScope, "derive scope", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return QueryScope{}, WrapError(ErrNoActiveScope, "derive scope", errNotAbsoluteURL)
	}

	origin := parsed.Scheme + "://" + parsed.Host
	if mode == QueryModeSite {
		return QueryScope{Prefix: origin, Mode: mode}, nil
	}
	return QueryScope{Prefix: origin + parsed.Path, Mode: QueryModePage}, nil
}

var (
	errEmptyURL       = errors.New("no URL for the active page")
	errNotAbsoluteURL = errors.New("URL is not absolute")
)
