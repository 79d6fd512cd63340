package webserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseBytes(t *testing.T) {
	resp := NewResponse(StatusOK)
	resp.SetBodyString("<p>hi</p>")
	resp.SetHeader("X-B", "2")
	resp.SetHeader("X-A", "1")

	wire := string(resp.Bytes())
	head, body, found := strings.Cut(wire, "\r\n\r\n")
	require.True(t, found)

	lines := strings.Split(head, "\r\n")
	assert.Equal(t, "HTTP/1.1 200 OK", lines[0])
	assert.Contains(t, lines, "Content-Type: text/html")
	assert.Contains(t, lines, "Content-Length: 9")
	assert.Contains(t, lines, "Connection: keep-alive")
	assert.Equal(t, "<p>hi</p>", body)

	// Free-form headers come out sorted for a stable wire image.
	assert.Less(t, strings.Index(head, "X-A: 1"), strings.Index(head, "X-B: 2"))
}

func TestResponseContentLengthTracksBody(t *testing.T) {
	resp := NewResponse(StatusOK)
	resp.SetBodyString("abc")
	resp.SetBodyString("abcdef")

	v, ok := resp.Header("Content-Length")
	require.True(t, ok)
	assert.Equal(t, "6", v)
}

func TestResponseTypedHeaderLookup(t *testing.T) {
	resp := NewResponse(StatusOK)
	resp.SetJSON()
	resp.SetConnection(ConnectionClose)

	v, ok := resp.Header("content-type")
	require.True(t, ok)
	assert.Equal(t, "application/json", v)

	v, ok = resp.Header("CONNECTION")
	require.True(t, ok)
	assert.Equal(t, ConnectionClose, v)

	_, ok = resp.Header("X-Missing")
	assert.False(t, ok)
}

func TestResponseContentTypeNormalization(t *testing.T) {
	resp := NewResponse(StatusOK)
	resp.SetContentType("text/html; charset=utf-8")
	assert.Equal(t, "text/html", resp.ContentType())

	resp.SetContentType("")
	assert.Equal(t, "text/html", resp.ContentType())
}

func TestNewRedirect(t *testing.T) {
	temp := NewRedirect("https://example.com/new", false)
	assert.Equal(t, StatusTemporaryRedirect, temp.Status)
	v, ok := temp.Header("Location")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/new", v)

	perm := NewRedirect("https://example.com/new", true)
	assert.Equal(t, StatusPermanentRedirect, perm.Status)
}

func TestResponseCookies(t *testing.T) {
	resp := NewResponse(StatusOK)
	resp.SetCookie(NewCookie("sid", "abc", NewDomain("example.com")))

	wire := string(resp.Bytes())
	assert.Contains(t, wire, "Set-Cookie: sid=abc; Path=/; Domain=example.com; SameSite=Lax")
}

func TestResponseExpireCookie(t *testing.T) {
	resp := NewResponse(StatusOK)
	resp.ExpireCookie(NewCookie("sid", "abc", NewDomain("example.com")))

	wire := string(resp.Bytes())
	assert.Contains(t, wire, "Max-Age=0")
}

func TestApplyCORSPermissive(t *testing.T) {
	resp := NewResponse(StatusOK)
	resp.ApplyCORSPermissive()

	v, ok := resp.Header("Access-Control-Allow-Origin")
	require.True(t, ok)
	assert.Equal(t, "*", v)

	v, ok = resp.Header("Access-Control-Allow-Methods")
	require.True(t, ok)
	assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", v)

	v, ok = resp.Header("Access-Control-Allow-Credentials")
	require.True(t, ok)
	assert.Equal(t, "true", v)
}

func TestApplySecurityHeaders(t *testing.T) {
	resp := NewResponse(StatusOK)
	resp.ApplySecurityHeaders()

	v, ok := resp.Header("X-Content-Type-Options")
	require.True(t, ok)
	assert.Equal(t, "nosniff", v)

	v, ok = resp.Header("Strict-Transport-Security")
	require.True(t, ok)
	assert.Equal(t, "max-age=31536000; includeSubDomains", v)
}

func TestReasonPhrase(t *testing.T) {
	assert.Equal(t, "OK", ReasonPhrase(StatusOK))
	assert.Equal(t, "Not Found", ReasonPhrase(StatusNotFound))
	assert.Equal(t, "Unknown", ReasonPhrase(999))
}
