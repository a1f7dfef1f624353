package httpfetch

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/kvalheim/audiocore/internal/playererr"
)

// URI is a parsed HTTP(S) locator: scheme, host, port, path and an optional
// embedded user:pass pair used to build a Basic Authorization header.
type URI struct {
	Scheme string
	Host   string
	Port   int
	Path   string
	User   string
	Pass   bool // has a password component (kept out of logs deliberately)
	pass   string

	raw string
}

// Password returns the embedded password, if any.
func (u URI) Password() string { return u.pass }

// String returns the original, unmodified URI text.
func (u URI) String() string { return u.raw }

// ParseURI parses raw into a URI, accepting only http and https schemes.
// Anything else — malformed syntax, an unsupported scheme, a missing host —
// fails with playererr.InvalidURI.
func ParseURI(raw string) (*URI, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, &playererr.Error{Kind: playererr.KindInvalidURI, Err: err}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &playererr.Error{Kind: playererr.KindInvalidURI, Err: fmt.Errorf("unsupported scheme %q", parsed.Scheme)}
	}
	if parsed.Host == "" {
		return nil, &playererr.Error{Kind: playererr.KindInvalidURI, Err: fmt.Errorf("missing host in %q", raw)}
	}

	host := parsed.Hostname()
	port := 80
	if parsed.Scheme == "https" {
		port = 443
	}
	if p := parsed.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, &playererr.Error{Kind: playererr.KindInvalidURI, Err: fmt.Errorf("invalid port %q", p)}
		}
		port = n
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}

	u := &URI{Scheme: parsed.Scheme, Host: host, Port: port, Path: path, raw: raw}
	if parsed.User != nil {
		u.User = parsed.User.Username()
		if pw, ok := parsed.User.Password(); ok {
			u.Pass = true
			u.pass = pw
		}
	}
	return u, nil
}

// HostPort returns "host:port" suitable for net.Dialer.DialContext.
func (u URI) HostPort() string {
	return fmt.Sprintf("%s:%d", u.Host, u.Port)
}
