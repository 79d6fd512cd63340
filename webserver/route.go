package webserver

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Domain identifies a virtual host. Domains are compared verbatim
// against the request's Host header; the zero value stands for the
// server's base domain in registration calls.
type Domain struct {
	Name string
}

// NewDomain creates a Domain for the given hostname.
func NewDomain(name string) Domain {
	return Domain{Name: name}
}

func (d Domain) String() string { return d.Name }

// IsZero reports whether the domain is the zero value placeholder.
func (d Domain) IsZero() bool { return d.Name == "" }

// Method is an HTTP request method.
type Method string

const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodOptions Method = "OPTIONS"
	MethodTrace   Method = "TRACE"
	MethodConnect Method = "CONNECT"
)

var knownMethods = map[Method]struct{}{
	MethodGet: {}, MethodHead: {}, MethodPost: {}, MethodPut: {},
	MethodPatch: {}, MethodDelete: {}, MethodOptions: {}, MethodTrace: {},
	MethodConnect: {},
}

// ParseMethod validates a wire-format method token. An unrecognized
// method is a hard parse failure for the whole request.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(s))
	if _, ok := knownMethods[m]; !ok {
		return "", errors.Newf("unknown HTTP method: %s", s)
	}
	return m, nil
}

// RouteKind selects how a matched route produces its response.
type RouteKind int

const (
	// RouteStatic serves files from a folder, resolved per request.
	RouteStatic RouteKind = iota
	// RouteFile serves content loaded once at registration time.
	RouteFile
	// RouteCustom invokes a registered handler.
	RouteCustom
	// RouteError holds status-specific content substituted by the
	// error-page middleware.
	RouteError
	// RouteProxy relays the request to an external origin.
	RouteProxy
)

func (k RouteKind) String() string {
	switch k {
	case RouteStatic:
		return "static"
	case RouteFile:
		return "file"
	case RouteCustom:
		return "custom"
	case RouteError:
		return "error"
	case RouteProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// HandlerFunc is the signature for custom route handlers. Handlers may
// be invoked concurrently from multiple connection workers and must be
// safe for concurrent use.
type HandlerFunc func(req *Request, domain Domain) *Response

// Route binds a (path pattern, method) pair to one handler kind within
// a domain. Routes live in a per-domain ordered list; matching picks
// the longest registered prefix at lookup time, so the list itself is
// never sorted.
type Route struct {
	Path   string
	Method Method
	Kind   RouteKind
	Status int
	Domain Domain

	// Folder backs static routes.
	Folder string
	// Content backs file and error routes; loaded at registration,
	// never re-read per request.
	Content []byte
	// External is the base URL for proxy routes.
	External string
	// Handler backs custom routes.
	Handler HandlerFunc
}
