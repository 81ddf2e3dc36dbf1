package db

import (
	"net/url"
	"strings"
)

// DuckDSN returns a DuckDB DSN for the file at path with the given config options.
// An empty path selects an in-memory database.
func DuckDSN(path string, options map[string]string) string {
	if len(options) == 0 {
		return path
	}
	v := url.Values{}
	for k, val := range options {
		v.Set(k, val)
	}
	return path + "?" + v.Encode()
}

// RedactDSN hides the password of a postgres:// DSN so it can be logged.
func RedactDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "<invalid dsn>"
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
		}
	}
	return u.String()
}
