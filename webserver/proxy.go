package webserver

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/hearthweb/hearth/internal/logging"
	"github.com/hearthweb/hearth/internal/mimetype"
)

// proxyTimeout bounds every outbound connect, read and write. There is
// deliberately no retry: any failure collapses to a 502 for the client.
const proxyTimeout = 5 * time.Second

var errBadProxyURL = errors.New("malformed proxy URL")

// proxyTarget is a parsed outbound URL.
type proxyTarget struct {
	scheme string // "http" or "https"
	host   string
	port   int
	path   string // always starts with "/"
}

func (t *proxyTarget) addr() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

// parseProxyURL splits a URL into scheme, host, port and path. Only
// http and https are supported; the port defaults to 80 or 443.
func parseProxyURL(raw string) (*proxyTarget, error) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return nil, errBadProxyURL
	}
	scheme = strings.ToLower(scheme)
	if scheme != "http" && scheme != "https" {
		return nil, errors.Newf("unsupported proxy scheme: %s", scheme)
	}

	hostPort, path, found := strings.Cut(rest, "/")
	if found {
		path = "/" + path
	} else {
		path = "/"
	}
	if hostPort == "" {
		return nil, errBadProxyURL
	}

	host := hostPort
	port := 80
	if scheme == "https" {
		port = 443
	}
	if h, p, found := strings.Cut(hostPort, ":"); found {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return nil, errors.Newf("invalid proxy port: %s", p)
		}
		host, port = h, n
	}

	return &proxyTarget{scheme: scheme, host: host, port: port, path: path}, nil
}

// clientRoots caches the platform trust store for outbound TLS, loaded
// once per process.
var clientRoots = sync.OnceValues(func() (*x509.CertPool, error) {
	return x509.SystemCertPool()
})

// fetchProxy relays a request through the route's external base URL
// plus the path remainder beyond the matched prefix. The upstream
// status, body and content type are relayed back with a permissive
// CORS header set; every failure mode collapses to 502.
func fetchProxy(external, prefix string, req *Request) *Response {
	remainder := strings.TrimPrefix(req.Path, prefix)
	if !strings.HasPrefix(remainder, "/") {
		remainder = "/" + remainder
	}
	target := strings.TrimSuffix(external, "/") + remainder

	t, err := parseProxyURL(target)
	if err != nil {
		logging.Warn("Proxy URL rejected", zap.String("url", target), zap.Error(err))
		return NewResponse(StatusBadGateway)
	}

	raw, err := proxyExchange(t)
	if err != nil {
		logging.Warn("Proxy exchange failed",
			zap.String("addr", t.addr()),
			zap.String("path", t.path),
			zap.Error(err),
		)
		return NewResponse(StatusBadGateway)
	}

	status, contentType, body, err := parseUpstreamResponse(raw)
	if err != nil {
		logging.Warn("Malformed upstream response", zap.String("addr", t.addr()), zap.Error(err))
		return NewResponse(StatusBadGateway)
	}

	resp := NewResponse(status)
	resp.SetBody(body)
	resp.SetContentType(contentType)
	resp.ApplyCORSPermissive()
	return resp
}

// proxyExchange opens a fresh outbound connection (no reuse), sends a
// minimal GET and reads the raw response until the peer closes.
func proxyExchange(t *proxyTarget) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", t.addr(), proxyTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "connect upstream")
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(proxyTimeout))

	var rw io.ReadWriter = conn
	if t.scheme == "https" {
		roots, err := clientRoots()
		if err != nil {
			return nil, errors.Wrap(err, "load trust store")
		}
		tlsConn := tls.Client(conn, &tls.Config{
			RootCAs:    roots,
			ServerName: t.host,
		})
		if err := tlsConn.Handshake(); err != nil {
			return nil, errors.Wrap(err, "upstream TLS handshake")
		}
		rw = tlsConn
	}

	request := fmt.Sprintf(
		"GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\nAccept-Encoding: identity\r\n\r\n",
		t.path, t.host,
	)
	if _, err := rw.Write([]byte(request)); err != nil {
		return nil, errors.Wrap(err, "write upstream request")
	}

	raw, err := io.ReadAll(rw)
	if err != nil && len(raw) == 0 {
		return nil, errors.Wrap(err, "read upstream response")
	}
	if len(raw) == 0 {
		return nil, errors.New("empty upstream response")
	}
	return raw, nil
}

// parseUpstreamResponse locates the header/body boundary, extracts the
// status and content type, and unframes the body: chunked decoding when
// Transfer-Encoding: chunked is present, truncation to a declared
// Content-Length otherwise, verbatim as a last resort.
func parseUpstreamResponse(raw []byte) (status int, contentType string, body []byte, err error) {
	headerEnd := bytes.Index(raw, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return 0, "", nil, errors.New("no header terminator in upstream response")
	}

	head := string(raw[:headerEnd])
	lines := strings.Split(head, "\r\n")
	statusParts := strings.SplitN(lines[0], " ", 3)
	if len(statusParts) < 2 {
		return 0, "", nil, errors.New("malformed upstream status line")
	}
	status, convErr := strconv.Atoi(statusParts[1])
	if convErr != nil || status < 100 || status > 599 {
		return 0, "", nil, errors.Newf("bad upstream status: %s", statusParts[1])
	}

	contentType = mimetype.DefaultHTML
	chunked := false
	contentLength := -1
	for _, line := range lines[1:] {
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(name) {
		case "content-type":
			contentType = value
		case "transfer-encoding":
			if strings.Contains(strings.ToLower(value), "chunked") {
				chunked = true
			}
		case "content-length":
			if n, err := strconv.Atoi(value); err == nil && n >= 0 {
				contentLength = n
			}
		}
	}

	rawBody := raw[headerEnd+4:]
	switch {
	case chunked:
		body = decodeChunked(rawBody)
	case contentLength >= 0 && contentLength < len(rawBody):
		body = rawBody[:contentLength]
	default:
		body = rawBody
	}
	return status, contentType, body, nil
}

// decodeChunked decodes a chunked transfer coding body: length-prefixed
// chunks terminated by a zero-length chunk. Chunk extensions and
// trailers are ignored; a malformed chunk ends decoding with whatever
// was accumulated.
func decodeChunked(data []byte) []byte {
	var out []byte
	pos := 0

	for pos < len(data) {
		nl := bytes.IndexByte(data[pos:], '\n')
		if nl < 0 {
			break
		}
		line := strings.TrimSpace(string(data[pos : pos+nl]))
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		size, err := strconv.ParseInt(line, 16, 64)
		if err != nil || size < 0 {
			break
		}
		if size == 0 {
			break
		}

		pos += nl + 1
		if pos+int(size) > len(data) {
			break
		}
		out = append(out, data[pos:pos+int(size)]...)
		pos += int(size)

		// Skip the CRLF chunk boundary
		if pos+2 <= len(data) && data[pos] == '\r' && data[pos+1] == '\n' {
			pos += 2
		}
	}

	return out
}
