package webserver

import (
	"bytes"
	"crypto/tls"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hearthweb/hearth/internal/logging"
)

// readTimeout bounds each socket read while accumulating a request. A
// timeout is treated as "done for now" rather than an error, so a slow
// body may arrive truncated; that limitation is inherited from the
// bounded-read design.
const readTimeout = 500 * time.Millisecond

var headerTerminator = []byte("\r\n\r\n")

// connState tracks where a connection is in its lifecycle. It exists
// for logging; transitions are linear within serve.
type connState int

const (
	stateAwaitingRequest connState = iota
	stateHandshakingTLS
	stateReadingHeaders
	stateReadingBody
	stateRouting
	stateWritingResponse
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateAwaitingRequest:
		return "awaiting_request"
	case stateHandshakingTLS:
		return "handshaking_tls"
	case stateReadingHeaders:
		return "reading_headers"
	case stateReadingBody:
		return "reading_body"
	case stateRouting:
		return "routing"
	case stateWritingResponse:
		return "writing_response"
	default:
		return "closed"
	}
}

// conn is one client connection served by a dedicated worker
// goroutine. TLS session state lives inside rwc and is never shared
// across connections.
type conn struct {
	srv        *Server
	rwc        net.Conn
	remoteAddr string
	state      connState
}

// serve runs the connection state machine: read, parse, middleware,
// route, dispatch, middleware, write - looping while the negotiated
// connection directive stays keep-alive. Any I/O failure, parse
// failure or non-keep-alive directive closes the connection.
func (c *conn) serve() {
	defer func() {
		c.state = stateClosed
		_ = c.rwc.Close()
		c.srv.dropConn(c)
		logging.LogConnection(c.remoteAddr, "connection_closed")
	}()

	logging.LogConnection(c.remoteAddr, "connection_accepted")

	// TLS handshake happens once, on the first exchange, before any
	// HTTP semantics apply.
	if tlsConn, ok := c.rwc.(*tls.Conn); ok {
		c.state = stateHandshakingTLS
		_ = tlsConn.SetDeadline(time.Now().Add(c.srv.handshakeTimeout()))
		if err := tlsConn.Handshake(); err != nil {
			logging.Error("TLS handshake failed",
				zap.String("remote_addr", c.remoteAddr),
				zap.Error(err),
			)
			return
		}
		_ = tlsConn.SetDeadline(time.Time{})
		cs := tlsConn.ConnectionState()
		logging.LogTLSHandshake(c.remoteAddr, cs.Version, cs.CipherSuite, cs.ServerName)
	}

	for {
		c.state = stateAwaitingRequest
		raw, ok := c.readRequest()
		if !ok {
			return
		}

		req, err := ParseRequest(raw)
		if err != nil {
			// Malformed requests get no partial response: log and close.
			logging.Error("Failed to parse request",
				zap.String("remote_addr", c.remoteAddr),
				zap.Error(err),
			)
			return
		}

		directive := requestDirective(req)

		c.state = stateRouting
		resp := c.srv.handle(req)

		if directive != ConnectionKeepAlive || resp.Connection() == ConnectionClose {
			directive = ConnectionClose
		}
		resp.SetConnection(directive)

		c.state = stateWritingResponse
		payload := resp.Bytes()
		n, err := c.rwc.Write(payload)
		if err != nil {
			logging.Warn("Write failed",
				zap.String("remote_addr", c.remoteAddr),
				zap.Error(err),
			)
			return
		}
		logging.LogResponse(c.remoteAddr, resp.Status, n)

		if directive != ConnectionKeepAlive {
			return
		}
	}
}

// requestDirective negotiates the connection directive from the
// request's Connection header; HTTP/1.1 defaults to keep-alive.
func requestDirective(req *Request) string {
	v, ok := req.Header("Connection")
	if !ok {
		return ConnectionKeepAlive
	}
	if strings.EqualFold(strings.TrimSpace(v), ConnectionKeepAlive) {
		return ConnectionKeepAlive
	}
	return ConnectionClose
}

// readRequest accumulates bytes under the read timeout until the
// header terminator appears, then reads any Content-Length-bounded
// body. ok is false when the peer closed, nothing arrived, or the
// socket failed; the caller closes the connection either way on a
// malformed result.
func (c *conn) readRequest() ([]byte, bool) {
	c.state = stateReadingHeaders
	buf := make([]byte, 0, 2048)
	chunk := make([]byte, 1024)
	headerEnd := -1

	for {
		_ = c.rwc.SetReadDeadline(time.Now().Add(readTimeout))
		n, err := c.rwc.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if i := bytes.Index(buf, headerTerminator); i >= 0 {
				headerEnd = i + len(headerTerminator)
				break
			}
		}
		if err != nil {
			if isTimeout(err) {
				break
			}
			// A zero-byte read with EOF is an orderly peer close;
			// anything else is a socket failure. Both end the loop.
			if len(buf) == 0 {
				return nil, false
			}
			logging.Warn("Socket read error",
				zap.String("remote_addr", c.remoteAddr),
				zap.Error(err),
			)
			break
		}
	}

	if len(buf) == 0 {
		return nil, false
	}
	if headerEnd < 0 {
		// Terminator never arrived; hand the bytes up so the parse
		// failure is logged once, then the connection closes.
		return buf, true
	}

	contentLength := scanContentLength(buf[:headerEnd])
	if contentLength > 0 {
		c.state = stateReadingBody
		for len(buf) < headerEnd+contentLength {
			_ = c.rwc.SetReadDeadline(time.Now().Add(readTimeout))
			n, err := c.rwc.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
			}
			if err != nil {
				if !isTimeout(err) {
					logging.Warn("Failed to read body",
						zap.String("remote_addr", c.remoteAddr),
						zap.Error(err),
					)
				}
				break
			}
		}
	}

	logging.LogRawBytes("Request bytes", buf)
	return buf, true
}

// scanContentLength extracts Content-Length from a raw header block
// before full parsing, to know how much body to wait for.
func scanContentLength(head []byte) int {
	for _, line := range strings.Split(string(head), "\r\n") {
		name, value, found := strings.Cut(line, ":")
		if !found || !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n >= 0 {
			return n
		}
	}
	return 0
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
