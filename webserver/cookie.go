package webserver

import (
	"fmt"
	"strings"
	"time"
)

// SameSite is the SameSite cookie attribute.
type SameSite int

const (
	SameSiteLax SameSite = iota
	SameSiteStrict
	SameSiteNone
)

func (s SameSite) String() string {
	switch s {
	case SameSiteStrict:
		return "Strict"
	case SameSiteNone:
		return "None"
	default:
		return "Lax"
	}
}

// Cookie is a single HTTP cookie. Request parsing fills only Name,
// Value and Domain; the remaining attributes matter when a cookie is
// attached to a response.
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   Domain
	MaxAge   int // seconds; 0 means session cookie, negative expires now
	SameSite SameSite
	Secure   bool
	HTTPOnly bool
}

// NewCookie creates a cookie scoped to the given domain with Path=/ and
// SameSite=Lax defaults.
func NewCookie(name, value string, domain Domain) Cookie {
	return Cookie{
		Name:   name,
		Value:  value,
		Path:   "/",
		Domain: domain,
		// Lax is the sensible default
		SameSite: SameSiteLax,
	}
}

// Format serializes the cookie into a Set-Cookie header value.
func (c Cookie) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s; ", c.Name, c.Value)

	if c.MaxAge != 0 {
		maxAge := c.MaxAge
		if maxAge < 0 {
			maxAge = 0
		}
		fmt.Fprintf(&b, "Max-Age=%d; ", maxAge)
		expires := time.Now().UTC().Add(time.Duration(maxAge) * time.Second)
		fmt.Fprintf(&b, "Expires=%s; ", expires.Format("Mon, 02 Jan 2006 15:04:05 GMT"))
	}

	path := c.Path
	if path == "" {
		path = "/"
	}
	fmt.Fprintf(&b, "Path=%s; ", path)
	fmt.Fprintf(&b, "Domain=%s; ", c.Domain.Name)
	fmt.Fprintf(&b, "SameSite=%s; ", c.SameSite)

	if c.Secure {
		b.WriteString("Secure; ")
	}
	if c.HTTPOnly {
		b.WriteString("HttpOnly; ")
	}

	return strings.TrimRight(b.String(), "; ")
}

// parseCookieHeader splits a Cookie request header into a jar. The
// request's Host becomes each cookie's declared domain.
func parseCookieHeader(header string, host string) []Cookie {
	var jar []Cookie
	for _, pair := range strings.Split(header, ";") {
		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			continue
		}
		name := strings.TrimSpace(pair[:eq])
		value := strings.TrimSpace(pair[eq+1:])
		if name == "" {
			continue
		}
		jar = append(jar, NewCookie(name, value, NewDomain(host)))
	}
	return jar
}
