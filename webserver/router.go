package webserver

import (
	"strings"
	"sync"

	"github.com/samber/lo"
)

// routeTable is one domain's ordered, mutable route list. Registration
// appends; lookups snapshot under the read lock so dispatch never holds
// the lock while handlers run.
type routeTable struct {
	mu     sync.RWMutex
	routes []*Route
}

func (t *routeTable) add(r *Route) {
	t.mu.Lock()
	t.routes = append(t.routes, r)
	t.mu.Unlock()
}

func (t *routeTable) snapshot() []*Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// router maps domains to their route tables. The map itself and each
// table carry their own lock, so concurrent lookups never race with
// registration-time writes.
type router struct {
	mu            sync.RWMutex
	domains       map[Domain]*routeTable
	defaultDomain Domain
}

func newRouter(defaultDomain Domain) *router {
	r := &router{
		domains:       make(map[Domain]*routeTable),
		defaultDomain: defaultDomain,
	}
	r.domains[defaultDomain] = &routeTable{}
	return r
}

// ensure returns the table for a domain, creating it on first use.
func (r *router) ensure(d Domain) *routeTable {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.domains[d]
	if !ok {
		t = &routeTable{}
		r.domains[d] = t
	}
	return t
}

// resolve maps a request Host to a domain and its table. An unknown
// host falls back to the default domain; a missing default yields nil.
func (r *router) resolve(host string) (Domain, *routeTable) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d := NewDomain(host)
	if t, ok := r.domains[d]; ok {
		return d, t
	}
	if t, ok := r.domains[r.defaultDomain]; ok {
		return r.defaultDomain, t
	}
	return Domain{}, nil
}

// match selects a route for (method, path) from a snapshot of the
// table, applying longest-prefix selection with exact-path preference.
// When no route matches it returns nil with the status to answer:
// 404 when no pattern covers the path, 405 when patterns cover the
// path but only under other methods.
//
// Ties between equal-length prefixes break by registration order (the
// earliest registered route wins). Error routes carry no pattern and
// never match directly.
func (t *routeTable) match(method Method, path string) (*Route, int) {
	routes := t.snapshot()

	covering := lo.Filter(routes, func(r *Route, _ int) bool {
		return r.Kind != RouteError && r.Path != "" && strings.HasPrefix(path, r.Path)
	})
	if len(covering) == 0 {
		return nil, StatusNotFound
	}

	candidates := lo.Filter(covering, func(r *Route, _ int) bool {
		return r.Method == method
	})
	if len(candidates) == 0 {
		return nil, StatusMethodNotAllowed
	}

	longest := lo.MaxBy(candidates, func(r, max *Route) bool {
		return len(r.Path) > len(max.Path)
	})

	// A static route legitimately serves many non-equal paths under its
	// prefix, so exact-path preference is skipped for it.
	if longest.Kind != RouteStatic && longest.Path != path {
		exact, ok := lo.Find(candidates, func(r *Route) bool {
			return r.Path == path
		})
		if ok {
			return exact, 0
		}
	}

	return longest, 0
}
