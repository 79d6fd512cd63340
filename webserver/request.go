package webserver

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

var (
	errRequestLine  = errors.New("invalid request line format")
	errEmptyRequest = errors.New("empty request")
	errHeaderFormat = errors.New("invalid header line")
)

// headerField preserves the header name exactly as it appeared on the
// wire; lookups compare case-insensitively.
type headerField struct {
	Name  string
	Value string
}

// Request is a parsed HTTP/1.1 request. It is read-only after parsing
// except for path parameters injected by the router and body
// replacement by middleware.
type Request struct {
	Method Method
	// Path is the request-target as it appears on the wire, including
	// the query string.
	Path  string
	Proto string

	headers []headerField
	body    []byte

	QueryParams map[string]string
	PathParams  map[string]string
	FormParams  map[string]string
	CookieJar   []Cookie
}

// ParseRequest parses a complete HTTP/1.1 request from raw bytes. Query
// parameters, cookies and (for url-encoded or JSON bodies) form
// parameters are derived eagerly, so they are ready to use on return.
func ParseRequest(raw []byte) (*Request, error) {
	headerEnd := bytes.Index(raw, []byte("\r\n\r\n"))
	var head, body []byte
	if headerEnd >= 0 {
		head = raw[:headerEnd]
		body = raw[headerEnd+4:]
	} else {
		head = raw
	}

	lines := strings.Split(string(head), "\r\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, errEmptyRequest
	}

	parts := strings.Fields(lines[0])
	if len(parts) != 3 {
		return nil, errRequestLine
	}
	method, err := ParseMethod(parts[0])
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:      method,
		Path:        parts[1],
		Proto:       parts[2],
		QueryParams: make(map[string]string),
		PathParams:  make(map[string]string),
		FormParams:  make(map[string]string),
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return nil, errors.WithDetail(errHeaderFormat, line)
		}
		req.headers = append(req.headers, headerField{
			Name:  strings.TrimSpace(line[:colon]),
			Value: strings.TrimSpace(line[colon+1:]),
		})
	}

	// Body is consumed only when Content-Length parses as a
	// non-negative integer.
	if v, ok := req.Header("Content-Length"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 0 {
			if n > len(body) {
				n = len(body)
			}
			req.body = body[:n]
		}
	}

	req.parseQueryParams()
	req.parseCookies()
	req.parseFormParams()

	return req, nil
}

// Header performs a case-insensitive header lookup, returning the first
// value whose name matches.
func (r *Request) Header(name string) (string, bool) {
	for _, f := range r.headers {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// HasHeader reports whether a header with the given name exists.
func (r *Request) HasHeader(name string) bool {
	_, ok := r.Header(name)
	return ok
}

// Host returns the Host header, or "" when absent.
func (r *Request) Host() string {
	v, _ := r.Header("Host")
	return v
}

// UserAgent returns the User-Agent header, or "" when absent.
func (r *Request) UserAgent() string {
	v, _ := r.Header("User-Agent")
	return v
}

// Authorization returns the Authorization header, or "" when absent.
func (r *Request) Authorization() string {
	v, _ := r.Header("Authorization")
	return v
}

// ContentType returns the Content-Type header, or "" when absent.
func (r *Request) ContentType() string {
	v, _ := r.Header("Content-Type")
	return v
}

// ContentLength returns the parsed Content-Length header; ok is false
// when the header is missing or malformed.
func (r *Request) ContentLength() (int, bool) {
	v, present := r.Header("Content-Length")
	if !present {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// PathOnly returns the request path with any query string removed.
func (r *Request) PathOnly() string {
	if i := strings.IndexByte(r.Path, '?'); i >= 0 {
		return r.Path[:i]
	}
	return r.Path
}

// Body returns the raw request body, nil when none was sent.
func (r *Request) Body() []byte { return r.body }

// BodyString returns the body decoded as a string.
func (r *Request) BodyString() string { return string(r.body) }

// HasBody reports whether a non-empty body was read.
func (r *Request) HasBody() bool { return len(r.body) > 0 }

// SetBody replaces the request body. Intended for request middleware.
func (r *Request) SetBody(body []byte) { r.body = body }

// QueryParam returns the fully URL-decoded value for a query key.
func (r *Request) QueryParam(key string) (string, bool) {
	v, ok := r.QueryParams[key]
	return v, ok
}

// QueryParamOr returns the query value or a caller-supplied default.
func (r *Request) QueryParamOr(key, def string) string {
	if v, ok := r.QueryParams[key]; ok {
		return v
	}
	return def
}

// QueryParamInt parses the query value as an int64.
func (r *Request) QueryParamInt(key string) (int64, bool) {
	v, ok := r.QueryParams[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}

// QueryParamFloat parses the query value as a float64.
func (r *Request) QueryParamFloat(key string) (float64, bool) {
	v, ok := r.QueryParams[key]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

// QueryParamBool parses the query value as a bool, accepting
// true/1/yes and false/0/no.
func (r *Request) QueryParamBool(key string) (bool, bool) {
	v, ok := r.QueryParams[key]
	if !ok {
		return false, false
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	b, err := strconv.ParseBool(v)
	return b, err == nil
}

// PathParam returns a path segment captured by the router.
func (r *Request) PathParam(key string) (string, bool) {
	v, ok := r.PathParams[key]
	return v, ok
}

// SetPathParam is used by the router to inject captured segments.
func (r *Request) SetPathParam(key, value string) {
	r.PathParams[key] = value
}

// FormParam returns a value parsed from an url-encoded or JSON body.
func (r *Request) FormParam(key string) (string, bool) {
	v, ok := r.FormParams[key]
	return v, ok
}

// FormParamInt parses the form value as an int64.
func (r *Request) FormParamInt(key string) (int64, bool) {
	v, ok := r.FormParams[key]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	return n, err == nil
}

// Cookie finds the first cookie with the given name.
func (r *Request) Cookie(name string) (Cookie, bool) {
	for _, c := range r.CookieJar {
		if c.Name == name {
			return c, true
		}
	}
	return Cookie{}, false
}

// HasCookie reports whether a cookie with the given name was sent.
func (r *Request) HasCookie(name string) bool {
	_, ok := r.Cookie(name)
	return ok
}

func (r *Request) parseQueryParams() {
	q := strings.IndexByte(r.Path, '?')
	if q < 0 {
		return
	}
	for _, pair := range strings.Split(r.Path[q+1:], "&") {
		if pair == "" {
			continue
		}
		if eq := strings.IndexByte(pair, '='); eq >= 0 {
			r.QueryParams[urlDecode(pair[:eq])] = urlDecode(pair[eq+1:])
		} else {
			r.QueryParams[urlDecode(pair)] = ""
		}
	}
}

func (r *Request) parseCookies() {
	if header, ok := r.Header("Cookie"); ok {
		r.CookieJar = parseCookieHeader(header, r.Host())
	}
}

func (r *Request) parseFormParams() {
	if len(r.body) == 0 {
		return
	}
	ct := r.ContentType()
	switch {
	case strings.Contains(ct, "application/x-www-form-urlencoded"):
		for _, pair := range strings.Split(string(r.body), "&") {
			if pair == "" {
				continue
			}
			if eq := strings.IndexByte(pair, '='); eq >= 0 {
				r.FormParams[urlDecode(pair[:eq])] = urlDecode(pair[eq+1:])
			} else {
				r.FormParams[urlDecode(pair)] = ""
			}
		}
	case strings.Contains(ct, "application/json"):
		parsed := gjson.ParseBytes(r.body)
		if !parsed.IsObject() {
			return
		}
		parsed.ForEach(func(key, value gjson.Result) bool {
			r.FormParams[key.String()] = value.String()
			return true
		})
	}
}

// urlDecode percent-decodes a query or form component, mapping '+' to
// space. Malformed escapes are dropped rather than failing the request.
func urlDecode(encoded string) string {
	var b strings.Builder
	b.Grow(len(encoded))
	for i := 0; i < len(encoded); i++ {
		switch c := encoded[i]; c {
		case '%':
			if i+2 < len(encoded) {
				if n, err := strconv.ParseUint(encoded[i+1:i+3], 16, 8); err == nil {
					b.WriteByte(byte(n))
				}
				i += 2
			}
		case '+':
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
