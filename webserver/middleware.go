package webserver

import (
	"go.uber.org/zap"

	"github.com/hearthweb/hearth/internal/logging"
)

// Wildcard matches any domain or route in a middleware scope.
const Wildcard = "*"

// Middleware intercepts requests before routing and responses after.
// Exactly one of the function slots is set, chosen by the constructor
// used. An entry applies when its route pattern is "*" or equals the
// request path, and its domain pattern is "*" or equals the request's
// host. Execution order is registration order; built-in middleware runs
// ahead of user-supplied entries.
type Middleware struct {
	// Domain that must match, or "*" for any.
	Domain string
	// Route that must match, or "*" for any.
	Route string

	onRequest       func(*Request)
	onResponse      func(*Response)
	pairRequest     func(*Request) *Request
	pairResponse    func(*Response) *Response
	onResponseTable func(*Request, *Response, []*Route) *Response
}

func normalizePattern(p string) string {
	if p == "" {
		return Wildcard
	}
	return p
}

// NewRequestMiddleware creates a request-phase mutator.
func NewRequestMiddleware(domain, route string, f func(*Request)) Middleware {
	return Middleware{
		Domain:    normalizePattern(domain),
		Route:     normalizePattern(route),
		onRequest: f,
	}
}

// NewResponseMiddleware creates a response-phase mutator.
func NewResponseMiddleware(domain, route string, f func(*Response)) Middleware {
	return Middleware{
		Domain:     normalizePattern(domain),
		Route:      normalizePattern(route),
		onResponse: f,
	}
}

// NewPairMiddleware creates a pure request/response transformer pair.
// The request half runs before routing, the response half after.
func NewPairMiddleware(domain, route string, fReq func(*Request) *Request, fResp func(*Response) *Response) Middleware {
	return Middleware{
		Domain:       normalizePattern(domain),
		Route:        normalizePattern(route),
		pairRequest:  fReq,
		pairResponse: fResp,
	}
}

// NewResponseTableMiddleware creates a response-phase transformer that
// also receives the matched domain's route table. The built-in
// error-page substitution uses this form.
func NewResponseTableMiddleware(domain, route string, f func(*Request, *Response, []*Route) *Response) Middleware {
	return Middleware{
		Domain:          normalizePattern(domain),
		Route:           normalizePattern(route),
		onResponseTable: f,
	}
}

// applies is the applicability predicate: apply-on-match for both the
// route and domain patterns, never apply-on-mismatch.
func (m Middleware) applies(host, path string) bool {
	if m.Route != Wildcard && m.Route != path {
		return false
	}
	if m.Domain != Wildcard && m.Domain != host {
		return false
	}
	return true
}

// applyRequestPhase runs all applicable request-phase middleware in
// order and returns the (possibly replaced) request.
func applyRequestPhase(mws []Middleware, req *Request) *Request {
	host, path := req.Host(), req.Path
	for _, m := range mws {
		if !m.applies(host, path) {
			continue
		}
		switch {
		case m.onRequest != nil:
			m.onRequest(req)
		case m.pairRequest != nil:
			if next := m.pairRequest(req); next != nil {
				req = next
			}
		}
	}
	return req
}

// applyResponsePhase runs all applicable response-phase middleware in
// order. The route table of the matched domain is handed to table-aware
// entries; it may be nil when no domain resolved.
func applyResponsePhase(mws []Middleware, req *Request, resp *Response, routes []*Route) *Response {
	host, path := req.Host(), req.Path
	for _, m := range mws {
		if !m.applies(host, path) {
			continue
		}
		switch {
		case m.onResponse != nil:
			m.onResponse(resp)
		case m.pairResponse != nil:
			if next := m.pairResponse(resp); next != nil {
				resp = next
			}
		case m.onResponseTable != nil:
			if next := m.onResponseTable(req, resp, routes); next != nil {
				resp = next
			}
		}
	}
	return resp
}

// Built-in middleware, registered ahead of user entries.

func requestLogMiddleware() Middleware {
	return NewRequestMiddleware(Wildcard, Wildcard, func(req *Request) {
		logging.Info("Request",
			zap.String("method", string(req.Method)),
			zap.String("host", req.Host()),
			zap.String("path", req.Path),
		)
	})
}

func responseLogMiddleware() Middleware {
	return NewResponseMiddleware(Wildcard, Wildcard, func(resp *Response) {
		logging.Info("Response",
			zap.Int("status", resp.Status),
			zap.Int("body_bytes", len(resp.Body())),
		)
	})
}

// errorPageMiddleware substitutes the body of a response whose status
// matches a registered error route in the served domain.
func errorPageMiddleware() Middleware {
	return NewResponseTableMiddleware(Wildcard, Wildcard, func(_ *Request, resp *Response, routes []*Route) *Response {
		for _, r := range routes {
			if r.Kind == RouteError && r.Status == resp.Status && len(r.Content) > 0 {
				resp.SetBody(r.Content)
				resp.SetHTML()
				break
			}
		}
		return resp
	})
}
