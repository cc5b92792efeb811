package db

import (
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// OpenFunc builds a Connector for a parsed database URL. raw is the URL as the
// user wrote it.
type OpenFunc func(u *url.URL, raw string, opts Options) (Connector, error)

var (
	openersMu sync.RWMutex
	openers   = map[string]OpenFunc{
		"postgres":   openPgx,
		"postgresql": openPgx,
		"mysql":      openMySQL,
		"sqlite":     openSQLite,
	}
)

// register makes an adapter available under a URL scheme, replacing any
// previous registration for that scheme.
func register(scheme string, fn OpenFunc) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[strings.ToLower(scheme)] = fn
}

// Schemes lists the registered URL schemes in sorted order.
func Schemes() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()

	out := make([]string, 0, len(openers))
	for s := range openers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open picks an adapter by URL scheme. It does not connect; the first
// connection is made by Connector.Connect.
func Open(rawURL string, opts Options) (Connector, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid database url")
	}
	if u.Scheme == "" {
		return nil, errors.Errorf("database url %q has no scheme (supported: %s)",
			redact(rawURL), strings.Join(Schemes(), ", "))
	}

	openersMu.RLock()
	fn, ok := openers[strings.ToLower(u.Scheme)]
	openersMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unsupported database scheme %q (supported: %s)",
			u.Scheme, strings.Join(Schemes(), ", "))
	}

	conn, err := fn(u, rawURL, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", redact(rawURL))
	}
	return conn, nil
}

// redact hides the password of a URL for diagnostics.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.User == nil {
		return rawURL
	}
	if _, has := u.User.Password(); !has {
		return rawURL
	}
	return u.Redacted()
}
