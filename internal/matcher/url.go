package matcher

import (
	"net"
	"net/url"
	"strings"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// NormalizeURL reduces a page URL to its canonical "host/path" form: no protocol,
// no leading "www.", no query or fragment and no trailing slash.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)

	if i := strings.Index(s, "://"); i >= 0 {
		if u, err := url.Parse(s); err == nil && u.Host != "" {
			s = origin(u) + u.EscapedPath()
		} else {
			s = s[i+3:]
		}
	}

	// Query and fragment never take part in matching
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}

	host, path, hasPath := strings.Cut(s, "/")
	host = strings.TrimPrefix(strings.ToLower(host), "www.")

	s = host
	if hasPath {
		s = host + "/" + path
	}

	return strings.TrimSuffix(s, "/")
}

// origin is the host of u, with its port only when the scheme does not
// imply it
func origin(u *url.URL) string {
	port := u.Port()
	if port == "" || defaultPorts[strings.ToLower(u.Scheme)] == port {
		return u.Hostname()
	}
	return net.JoinHostPort(u.Hostname(), port)
}

// Host returns the host part of a canonical URL
func Host(canonical string) string {
	host, _, _ := strings.Cut(canonical, "/")
	return host
}

// Path returns the path part of a canonical URL, always starting with "/"
func Path(canonical string) string {
	_, path, _ := strings.Cut(canonical, "/")
	return "/" + path
}
