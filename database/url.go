package database

import (
	"net/url"
	"strings"
)

// ConstructDatabaseURL combines a server URL with a database name.
// An empty name returns the base URL untouched. When a name is given the path is
// replaced, existing query parameters are kept and sslmode=disable is added unless
// an sslmode is already present.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		// Not a URL we understand; fall back to plain concatenation
		return strings.TrimRight(baseURL, "/") + "/" + databaseName
	}

	u.Path = "/" + databaseName
	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()

	return u.String()
}
