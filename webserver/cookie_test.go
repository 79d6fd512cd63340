package webserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieFormat(t *testing.T) {
	c := NewCookie("sid", "abc", NewDomain("example.com"))
	c.MaxAge = 60
	c.Secure = true
	c.HTTPOnly = true

	got := c.Format()

	// Attribute order is fixed: value, Max-Age, Expires, Path, Domain,
	// SameSite, Secure, HttpOnly.
	assert.True(t, strings.HasPrefix(got, "sid=abc; Max-Age=60; Expires="))
	assert.Contains(t, got, "; Path=/; Domain=example.com; SameSite=Lax; Secure; HttpOnly")
	assert.False(t, strings.HasSuffix(got, "; "))
}

func TestCookieFormatSessionCookie(t *testing.T) {
	c := NewCookie("theme", "dark", NewDomain("example.com"))

	got := c.Format()
	assert.Equal(t, "theme=dark; Path=/; Domain=example.com; SameSite=Lax", got)
}

func TestCookieFormatExpired(t *testing.T) {
	c := NewCookie("sid", "gone", NewDomain("example.com"))
	c.MaxAge = -1

	got := c.Format()
	assert.Contains(t, got, "Max-Age=0; ")
}

func TestSameSiteString(t *testing.T) {
	assert.Equal(t, "Lax", SameSiteLax.String())
	assert.Equal(t, "Strict", SameSiteStrict.String())
	assert.Equal(t, "None", SameSiteNone.String())
}

func TestParseCookieHeader(t *testing.T) {
	jar := parseCookieHeader("sid=abc; theme=dark; malformed; =novalue", "example.com")

	require.Len(t, jar, 2)
	assert.Equal(t, "sid", jar[0].Name)
	assert.Equal(t, "abc", jar[0].Value)
	assert.Equal(t, "example.com", jar[0].Domain.Name)
	assert.Equal(t, "theme", jar[1].Name)
	assert.Equal(t, "dark", jar[1].Value)
}
