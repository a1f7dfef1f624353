// Package httpfetch implements the minimal HTTP/1.x GET client the decoder
// abstraction uses to open streamed tracks: manual request/response framing,
// redirect following, Icy-MetaInt inline metadata stripping, and
// audio-playlist (M3U/PLS) unwrap-and-recurse. It deliberately does not use
// net/http — Icy interleaving needs raw access to the body stream that
// net/http's client does not expose.
package httpfetch

import (
	"io"
	"net"
	"strconv"
	"time"

	"github.com/kvalheim/audiocore/internal/playererr"
)

// Config holds the tunables for a single Fetch call.
type Config struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	MaxRedirects   int
	UserAgent      string
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return 5 * time.Second
}

func (c Config) readTimeout() time.Duration {
	if c.ReadTimeout > 0 {
		return c.ReadTimeout
	}
	return 5 * time.Second
}

func (c Config) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return DefaultUserAgent
}

func (c Config) maxRedirects() int {
	if c.MaxRedirects > 0 {
		return c.MaxRedirects
	}
	return 2
}

// Response is a decodable (non-playlist) HTTP response: the body reader
// (with Icy metadata already stripped if present), the final URI it was
// fetched from, and the response metadata.
type Response struct {
	URI        *URI
	Status     int
	Reason     string
	Header     map[string][]string
	IcyMetaInt int

	conn net.Conn
	body io.Reader
	icy  *icyReader
}

// Read implements io.Reader over the (already metadata-stripped) body.
func (r *Response) Read(p []byte) (int, error) { return r.body.Read(p) }

// Close closes the underlying connection.
func (r *Response) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// SetReadDeadline bounds the next Read on the underlying connection,
// letting a caller implement a non-blocking poll over what is otherwise a
// blocking socket read.
func (r *Response) SetReadDeadline(d time.Duration) error {
	if r.conn == nil {
		return nil
	}
	return r.conn.SetReadDeadline(time.Now().Add(d))
}

// Title returns the most recently seen Icy StreamTitle, or "" if this
// response has no Icy metadata stream.
func (r *Response) Title() string {
	if r.icy == nil {
		return ""
	}
	return r.icy.Title()
}

// TitleChanged reports and clears whether the Icy title changed since the
// last call.
func (r *Response) TitleChanged() bool {
	if r.icy == nil {
		return false
	}
	return r.icy.TitleChanged()
}

// Fetch performs a GET against rawURI, following redirects and unwrapping
// audio playlists, and returns the first response whose Content-Type is not
// a playlist MIME. The caller owns the returned Response and must Close it.
func Fetch(rawURI string, cfg Config) (*Response, error) {
	return fetchLoop(rawURI, cfg, make(map[string]bool))
}

func fetchLoop(rawURI string, cfg Config, visited map[string]bool) (*Response, error) {
	limit := cfg.maxRedirects()

	uri := rawURI
	for redirects := 0; ; redirects++ {
		u, err := ParseURI(uri)
		if err != nil {
			return nil, err
		}
		if visited[uri] {
			return nil, &playererr.Error{Kind: playererr.KindHTTPRedirectLimit, Err: nil}
		}
		visited[uri] = true

		raw, err := doRequest(u, cfg)
		if err != nil {
			return nil, err
		}

		switch raw.status {
		case 301, 302, 303, 307:
			location := raw.header.Get("Location")
			raw.conn.Close()
			if location == "" {
				return nil, &playererr.Error{Kind: playererr.KindHTTPResponse, Err: nil}
			}
			if redirects+1 > limit {
				return nil, &playererr.Error{Kind: playererr.KindHTTPRedirectLimit}
			}
			uri = resolveLocation(u, location)
			continue
		case 200:
			return finishResponse(u, raw, cfg, visited, limit-redirects)
		default:
			raw.conn.Close()
			return nil, playererr.HTTPStatusError(raw.status, raw.reason)
		}
	}
}

func resolveLocation(base *URI, location string) string {
	if len(location) > 0 && (location[0] == 'h' || location[0] == 'H') {
		return location
	}
	// Relative path: same scheme/host/port, new path.
	port := ""
	if (base.Scheme == "http" && base.Port != 80) || (base.Scheme == "https" && base.Port != 443) {
		port = ":" + strconv.Itoa(base.Port)
	}
	if len(location) == 0 || location[0] != '/' {
		location = "/" + location
	}
	return base.Scheme + "://" + base.Host + port + location
}

// finishResponse handles a 200 response: unwrap playlists recursively, or
// wrap the body in an Icy-stripping reader and hand it back.
func finishResponse(u *URI, raw *rawResponse, cfg Config, visited map[string]bool, remainingRedirects int) (*Response, error) {
	contentType := raw.header.Get("Content-Type")
	if isPlaylistMIME(contentType) {
		defer raw.conn.Close()
		uris := parsePlaylist(raw.reader)
		var lastErr error
		for _, next := range uris {
			if visited[next] {
				continue
			}
			sub, err := fetchWithBudget(next, cfg, visited, remainingRedirects)
			if err != nil {
				lastErr = err
				continue
			}
			return sub, nil
		}
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, &playererr.Error{Kind: playererr.KindHTTPResponse, Err: nil}
	}

	metaInt := 0
	if v := raw.header.Get("Icy-Metaint"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			metaInt = n
		}
	}

	header := map[string][]string(raw.header)
	resp := &Response{
		URI:        u,
		Status:     raw.status,
		Reason:     raw.reason,
		Header:     header,
		IcyMetaInt: metaInt,
		conn:       raw.conn,
		body:       raw.reader,
	}
	if metaInt > 0 {
		icy := newIcyReader(raw.reader, metaInt)
		resp.icy = icy
		resp.body = icy
	}
	return resp, nil
}

// fetchWithBudget re-enters the fetch loop for a playlist-resolved URI,
// carrying over the visited set and remaining redirect budget. An exhausted
// budget is raised to one redirect (a zero MaxRedirects means the default),
// so each playlist level may follow one more redirect than the budget left.
func fetchWithBudget(rawURI string, cfg Config, visited map[string]bool, remaining int) (*Response, error) {
	sub := cfg
	sub.MaxRedirects = remaining
	if sub.MaxRedirects <= 0 {
		sub.MaxRedirects = 1
	}
	return fetchLoop(rawURI, sub, visited)
}
