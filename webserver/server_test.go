package webserver

import (
	"bufio"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer runs a server on a random loopback port and returns
// it along with the dial address.
func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	srv, err := New(&Config{
		Host:       "127.0.0.1",
		BaseDomain: "example.com",
		LogLevel:   "error",
	})
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = srv.Serve(l) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return srv, l.Addr().String()
}

// exchange sends one request with Connection: close and returns the
// full raw response.
func exchange(t *testing.T, addr, method, path, host string) string {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	req := method + " " + path + " HTTP/1.1\r\nHost: " + host + "\r\nConnection: close\r\n\r\n"
	_, err = conn.Write([]byte(req))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	raw, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(raw)
}

// readResponse reads one framed response off a keep-alive connection.
func readResponse(t *testing.T, r *bufio.Reader) (status int, body string) {
	t.Helper()

	statusLine, err := r.ReadString('\n')
	require.NoError(t, err)
	parts := strings.SplitN(statusLine, " ", 3)
	require.GreaterOrEqual(t, len(parts), 2)
	status, err = strconv.Atoi(parts[1])
	require.NoError(t, err)

	contentLength := 0
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if name, value, ok := strings.Cut(line, ":"); ok &&
			strings.EqualFold(name, "Content-Length") {
			contentLength, err = strconv.Atoi(strings.TrimSpace(value))
			require.NoError(t, err)
		}
	}

	buf := make([]byte, contentLength)
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	return status, string(buf)
}

func TestServerFileRoute(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(index, []byte("<h1>welcome</h1>"), 0o644))

	srv, addr := startTestServer(t)
	srv.AddFileRoute(Domain{}, "/", MethodGet, index, StatusOK)

	raw := exchange(t, addr, "GET", "/", "example.com")
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, raw, "Connection: close")
	assert.True(t, strings.HasSuffix(raw, "<h1>welcome</h1>"))
}

func TestServerNotFound(t *testing.T) {
	_, addr := startTestServer(t)

	raw := exchange(t, addr, "GET", "/missing", "example.com")
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 404 Not Found\r\n"))
}

func TestServerMethodNotAllowed(t *testing.T) {
	srv, addr := startTestServer(t)
	srv.AddCustomRoute(Domain{}, "/api", MethodGet, func(req *Request, d Domain) *Response {
		return NewResponse(StatusOK)
	})

	raw := exchange(t, addr, "POST", "/api", "example.com")
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 405 Method Not Allowed\r\n"))
}

func TestServerStaticRoute(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "css", "site.css"), []byte("body{}"), 0o644))

	srv, addr := startTestServer(t)
	srv.AddStaticRoute(Domain{}, "/assets", MethodGet, dir)

	raw := exchange(t, addr, "GET", "/assets/css/site.css", "example.com")
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, raw, "Content-Type: text/css")
	assert.True(t, strings.HasSuffix(raw, "body{}"))

	// Path traversal out of the folder is refused.
	raw = exchange(t, addr, "GET", "/assets/../secret", "example.com")
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 404 Not Found\r\n"))
}

func TestServerKeepAlive(t *testing.T) {
	srv, addr := startTestServer(t)
	hits := 0
	srv.AddCustomRoute(Domain{}, "/count", MethodGet, func(req *Request, d Domain) *Response {
		hits++
		resp := NewResponse(StatusOK)
		resp.SetText()
		resp.SetBodyString(strconv.Itoa(hits))
		return resp
	})

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)

	req := "GET /count HTTP/1.1\r\nHost: example.com\r\n\r\n"

	_, err = conn.Write([]byte(req))
	require.NoError(t, err)
	status, body := readResponse(t, r)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, "1", body)

	// Second request on the same connection.
	_, err = conn.Write([]byte(req))
	require.NoError(t, err)
	status, body = readResponse(t, r)
	assert.Equal(t, StatusOK, status)
	assert.Equal(t, "2", body)
}

func TestServerConnectionCloseEndsExchange(t *testing.T) {
	srv, addr := startTestServer(t)
	srv.AddCustomRoute(Domain{}, "/x", MethodGet, func(req *Request, d Domain) *Response {
		return NewResponse(StatusOK)
	})

	raw := exchange(t, addr, "GET", "/x", "example.com")
	assert.Contains(t, raw, "Connection: close")
}

func TestServerPanicInHandler(t *testing.T) {
	srv, addr := startTestServer(t)
	srv.AddCustomRoute(Domain{}, "/boom", MethodGet, func(req *Request, d Domain) *Response {
		panic("handler exploded")
	})

	raw := exchange(t, addr, "GET", "/boom", "example.com")
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 500 Internal Server Error\r\n"))

	// The server survives the panic.
	raw = exchange(t, addr, "GET", "/boom", "example.com")
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 500 Internal Server Error\r\n"))
}

func TestServerSubdomainRouting(t *testing.T) {
	srv, addr := startTestServer(t)
	api := srv.AddSubdomain("api")
	assert.Equal(t, "api.example.com", api.Name)

	srv.AddCustomRoute(api, "/ping", MethodGet, func(req *Request, d Domain) *Response {
		resp := NewResponse(StatusOK)
		resp.SetText()
		resp.SetBodyString("pong from " + d.Name)
		return resp
	})

	raw := exchange(t, addr, "GET", "/ping", "api.example.com")
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n"))
	assert.True(t, strings.HasSuffix(raw, "pong from api.example.com"))

	// The base domain has no such route.
	raw = exchange(t, addr, "GET", "/ping", "example.com")
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 404 Not Found\r\n"))
}

func TestServerErrorPage(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "404.html")
	require.NoError(t, os.WriteFile(page, []byte("<h1>custom not found</h1>"), 0o644))

	srv, addr := startTestServer(t)
	srv.AddErrorRoute(Domain{}, StatusNotFound, page)

	raw := exchange(t, addr, "GET", "/nope", "example.com")
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 404 Not Found\r\n"))
	assert.True(t, strings.HasSuffix(raw, "<h1>custom not found</h1>"))
}

func TestServerLongestPrefixDispatch(t *testing.T) {
	srv, addr := startTestServer(t)
	srv.AddCustomRoute(Domain{}, "/api", MethodGet, func(req *Request, d Domain) *Response {
		resp := NewResponse(StatusOK)
		resp.SetBodyString("v0")
		return resp
	})
	srv.AddCustomRoute(Domain{}, "/api/v1", MethodGet, func(req *Request, d Domain) *Response {
		resp := NewResponse(StatusOK)
		resp.SetBodyString("v1")
		return resp
	})

	raw := exchange(t, addr, "GET", "/api/v1/users", "example.com")
	assert.True(t, strings.HasSuffix(raw, "v1"))

	raw = exchange(t, addr, "GET", "/api/other", "example.com")
	assert.True(t, strings.HasSuffix(raw, "v0"))
}

func TestServerUserMiddleware(t *testing.T) {
	srv, addr := startTestServer(t)
	srv.AddCustomRoute(Domain{}, "/x", MethodGet, func(req *Request, d Domain) *Response {
		return NewResponse(StatusOK)
	})
	srv.Use(NewResponseMiddleware("*", "*", func(resp *Response) {
		resp.SetServer("hearth-test")
	}))

	raw := exchange(t, addr, "GET", "/x", "example.com")
	assert.Contains(t, raw, "Server: hearth-test")
}

func TestServerActiveConnections(t *testing.T) {
	srv, addr := startTestServer(t)

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return srv.GetActiveConnections() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
