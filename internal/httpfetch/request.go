package httpfetch

import (
	"bufio"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/kvalheim/audiocore/internal/playererr"
)

// DefaultUserAgent is sent on every request unless Config.UserAgent
// overrides it.
const DefaultUserAgent = "audiocore/1.0"

// rawResponse is the wire-level result of one GET, before playlist/redirect
// handling is layered on top.
type rawResponse struct {
	status int
	reason string
	header textproto.MIMEHeader
	conn   net.Conn
	reader *bufio.Reader
}

// doRequest opens a connection to u and issues a single GET, returning the
// parsed status line and headers with the connection left open and
// positioned at the start of the body.
func doRequest(u *URI, cfg Config) (*rawResponse, error) {
	dialer := &net.Dialer{Timeout: cfg.connectTimeout()}
	conn, err := dialer.Dial("tcp", u.HostPort())
	if err != nil {
		return nil, playererr.Errno(err)
	}
	if u.Scheme == "https" {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: u.Host})
		if err := tlsConn.SetDeadline(time.Now().Add(cfg.connectTimeout())); err != nil {
			conn.Close()
			return nil, playererr.Errno(err)
		}
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return nil, &playererr.Error{Kind: playererr.KindHTTPResponse, Err: err}
		}
		conn = tlsConn
	}

	if err := conn.SetDeadline(time.Now().Add(cfg.readTimeout())); err != nil {
		conn.Close()
		return nil, playererr.Errno(err)
	}

	req := buildRequest(u, cfg)
	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, playererr.Errno(err)
	}

	reader := bufio.NewReader(conn)
	tp := textproto.NewReader(reader)

	statusLine, err := tp.ReadLine()
	if err != nil {
		conn.Close()
		return nil, &playererr.Error{Kind: playererr.KindHTTPResponse, Err: err}
	}
	status, reason, err := parseStatusLine(statusLine)
	if err != nil {
		conn.Close()
		return nil, err
	}

	header, err := tp.ReadMIMEHeader()
	if err != nil && len(header) == 0 {
		conn.Close()
		return nil, &playererr.Error{Kind: playererr.KindHTTPResponse, Err: err}
	}

	return &rawResponse{status: status, reason: reason, header: header, conn: conn, reader: reader}, nil
}

func buildRequest(u *URI, cfg Config) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", u.Path)
	fmt.Fprintf(&b, "Host: %s\r\n", u.Host)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", cfg.userAgent())
	b.WriteString("Icy-MetaData: 1\r\n")
	b.WriteString("Connection: close\r\n")
	if u.User != "" || u.Pass {
		cred := base64.StdEncoding.EncodeToString([]byte(u.User + ":" + u.Password()))
		fmt.Fprintf(&b, "Authorization: Basic %s\r\n", cred)
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// parseStatusLine accepts both "HTTP/1.x <code> <reason>" and Shoutcast's
// legacy "ICY <code> <reason>" status line.
func parseStatusLine(line string) (int, string, error) {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return 0, "", &playererr.Error{Kind: playererr.KindHTTPResponse, Err: fmt.Errorf("malformed status line %q", line)}
	}
	proto := fields[0]
	if !strings.HasPrefix(proto, "HTTP/") && proto != "ICY" {
		return 0, "", &playererr.Error{Kind: playererr.KindHTTPResponse, Err: fmt.Errorf("unrecognized protocol in status line %q", line)}
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, "", &playererr.Error{Kind: playererr.KindHTTPResponse, Err: fmt.Errorf("malformed status code in %q", line)}
	}
	reason := ""
	if len(fields) == 3 {
		reason = fields[2]
	}
	return code, reason, nil
}
