package webserver

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hearthweb/hearth/internal/mimetype"
)

// Connection directives negotiated per exchange.
const (
	ConnectionKeepAlive = "keep-alive"
	ConnectionClose     = "close"
)

// Response is a mutable HTTP/1.1 response builder. The typed fields
// (status, content type, connection directive, content length) always
// win over anything placed in the free-form header set.
type Response struct {
	Status int

	contentType string
	connection  string
	headers     map[string]string
	cookies     []Cookie
	body        []byte
}

// NewResponse creates a blank response with the supplied status code,
// text/html content type and a keep-alive connection directive.
func NewResponse(status int) *Response {
	return &Response{
		Status:      status,
		contentType: mimetype.DefaultHTML,
		connection:  ConnectionKeepAlive,
		headers:     make(map[string]string),
	}
}

// NewRedirect builds a redirect response with a Location header. The
// permanent flag selects 308 over 307.
func NewRedirect(location string, permanent bool) *Response {
	status := StatusTemporaryRedirect
	if permanent {
		status = StatusPermanentRedirect
	}
	resp := NewResponse(status)
	resp.SetLocation(location)
	return resp
}

// SetBody replaces the response body. Content-Length always reflects
// the body set here.
func (r *Response) SetBody(body []byte) {
	r.body = body
}

// SetBodyString replaces the response body with a string.
func (r *Response) SetBodyString(body string) {
	r.body = []byte(body)
}

// Body returns the current body, nil when none is set.
func (r *Response) Body() []byte { return r.body }

// SetHeader adds or overwrites a free-form header.
func (r *Response) SetHeader(key, value string) {
	r.headers[key] = value
}

// Header returns a header value. The typed Content-Type, Content-Length
// and Connection fields are visible through this lookup as well.
func (r *Response) Header(key string) (string, bool) {
	switch {
	case strings.EqualFold(key, "Content-Type"):
		return r.contentType, true
	case strings.EqualFold(key, "Content-Length"):
		return fmt.Sprintf("%d", len(r.body)), true
	case strings.EqualFold(key, "Connection"):
		return r.connection, true
	}
	for k, v := range r.headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// SetContentType overwrites the typed content type. The value is
// normalized to a bare type/subtype.
func (r *Response) SetContentType(value string) {
	r.contentType = mimetype.Normalize(value)
}

// ContentType returns the typed content type.
func (r *Response) ContentType() string { return r.contentType }

// SetConnection sets the connection directive ("keep-alive" or "close").
func (r *Response) SetConnection(directive string) {
	r.connection = directive
}

// Connection returns the current connection directive.
func (r *Response) Connection() string { return r.connection }

// SetJSON is shorthand for Content-Type: application/json.
func (r *Response) SetJSON() { r.contentType = "application/json" }

// SetHTML is shorthand for Content-Type: text/html.
func (r *Response) SetHTML() { r.contentType = "text/html" }

// SetText is shorthand for Content-Type: text/plain.
func (r *Response) SetText() { r.contentType = "text/plain" }

// SetCookie attaches a cookie; it is emitted as a Set-Cookie line.
func (r *Response) SetCookie(c Cookie) {
	r.cookies = append(r.cookies, c)
}

// ExpireCookie attaches a cookie whose expiry is forced into the past
// so clients drop it.
func (r *Response) ExpireCookie(c Cookie) {
	c.MaxAge = -1
	r.cookies = append(r.cookies, c)
}

// SetDateNow sets the Date header to the current UTC time.
func (r *Response) SetDateNow() {
	r.SetHeader("Date", time.Now().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"))
}

// SetServer sets the Server header.
func (r *Response) SetServer(name string) {
	r.SetHeader("Server", name)
}

// SetLocation sets the Location header for redirects.
func (r *Response) SetLocation(url string) {
	r.SetHeader("Location", url)
}

// SetCacheControl sets a Cache-Control directive string.
func (r *Response) SetCacheControl(directive string) {
	r.SetHeader("Cache-Control", directive)
}

// SetNoCache disables caching entirely.
func (r *Response) SetNoCache() {
	r.SetHeader("Cache-Control", "no-cache, no-store, must-revalidate")
	r.SetHeader("Pragma", "no-cache")
	r.SetHeader("Expires", "0")
}

// SetMaxAge is shorthand for Cache-Control: max-age=N.
func (r *Response) SetMaxAge(seconds int) {
	r.SetHeader("Cache-Control", fmt.Sprintf("max-age=%d", seconds))
}

// SetETag sets the ETag header.
func (r *Response) SetETag(etag string) {
	r.SetHeader("ETag", etag)
}

// SetNosniff adds X-Content-Type-Options: nosniff.
func (r *Response) SetNosniff() {
	r.SetHeader("X-Content-Type-Options", "nosniff")
}

// SetFrameOptions sets the X-Frame-Options header (DENY, SAMEORIGIN).
func (r *Response) SetFrameOptions(option string) {
	r.SetHeader("X-Frame-Options", option)
}

// SetHSTS adds the Strict-Transport-Security header.
func (r *Response) SetHSTS(maxAgeSeconds int, includeSubdomains bool) {
	v := fmt.Sprintf("max-age=%d", maxAgeSeconds)
	if includeSubdomains {
		v += "; includeSubDomains"
	}
	r.SetHeader("Strict-Transport-Security", v)
}

// SetCSP sets the Content-Security-Policy header.
func (r *Response) SetCSP(policy string) {
	r.SetHeader("Content-Security-Policy", policy)
}

// SetXSSProtection toggles the legacy X-XSS-Protection header.
func (r *Response) SetXSSProtection(enabled bool) {
	if enabled {
		r.SetHeader("X-XSS-Protection", "1; mode=block")
	} else {
		r.SetHeader("X-XSS-Protection", "0")
	}
}

// ApplySecurityHeaders applies a conservative security header set:
// nosniff, frame denial, XSS protection, a same-origin CSP and HSTS.
func (r *Response) ApplySecurityHeaders() {
	r.SetNosniff()
	r.SetFrameOptions("DENY")
	r.SetXSSProtection(true)
	r.SetCSP("default-src 'self'")
	r.SetHSTS(31536000, true)
}

// SetCORSOrigin adds Access-Control-Allow-Origin.
func (r *Response) SetCORSOrigin(origin string) {
	r.SetHeader("Access-Control-Allow-Origin", origin)
}

// SetCORSMethods adds Access-Control-Allow-Methods.
func (r *Response) SetCORSMethods(methods ...string) {
	r.SetHeader("Access-Control-Allow-Methods", strings.Join(methods, ", "))
}

// SetCORSHeaders adds Access-Control-Allow-Headers.
func (r *Response) SetCORSHeaders(headers ...string) {
	r.SetHeader("Access-Control-Allow-Headers", strings.Join(headers, ", "))
}

// SetCORSMaxAge adds Access-Control-Max-Age.
func (r *Response) SetCORSMaxAge(seconds int) {
	r.SetHeader("Access-Control-Max-Age", fmt.Sprintf("%d", seconds))
}

// SetCORSCredentials adds Access-Control-Allow-Credentials.
func (r *Response) SetCORSCredentials(allow bool) {
	r.SetHeader("Access-Control-Allow-Credentials", fmt.Sprintf("%t", allow))
}

// ApplyCORSPermissive applies the most permissive CORS policy: any
// origin, the common methods, any header, credentials allowed.
func (r *Response) ApplyCORSPermissive() {
	r.SetCORSOrigin("*")
	r.SetCORSMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	r.SetCORSHeaders("*")
	r.SetCORSCredentials(true)
}

// Bytes serializes the response into a valid HTTP/1.1 byte stream:
// status line, typed headers, the free-form header set (sorted for a
// deterministic wire image), Set-Cookie lines, blank line, body.
// Content-Length always matches the body length.
func (r *Response) Bytes() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", r.Status, ReasonPhrase(r.Status))

	fmt.Fprintf(&b, "Content-Type: %s\r\n", r.contentType)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(r.body))
	fmt.Fprintf(&b, "Connection: %s\r\n", r.connection)

	keys := make([]string, 0, len(r.headers))
	for k := range r.headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, r.headers[k])
	}

	for _, c := range r.cookies {
		fmt.Fprintf(&b, "Set-Cookie: %s\r\n", c.Format())
	}

	b.WriteString("\r\n")

	out := make([]byte, 0, b.Len()+len(r.body))
	out = append(out, b.String()...)
	out = append(out, r.body...)
	return out
}
