package webserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareApplies(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		route  string
		host   string
		path   string
		want   bool
	}{
		{"wildcard both", "*", "*", "example.com", "/any", true},
		{"exact route match", "*", "/admin", "example.com", "/admin", true},
		{"route mismatch", "*", "/admin", "example.com", "/public", false},
		{"exact domain match", "api.example.com", "*", "api.example.com", "/x", true},
		{"domain mismatch", "api.example.com", "*", "example.com", "/x", false},
		{"both must match", "api.example.com", "/v1", "api.example.com", "/v2", false},
		{"empty patterns normalize to wildcard", "", "", "example.com", "/any", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRequestMiddleware(tt.domain, tt.route, func(*Request) {})
			assert.Equal(t, tt.want, m.applies(tt.host, tt.path))
		})
	}
}

func TestApplyRequestPhase(t *testing.T) {
	req, err := ParseRequest([]byte("GET /x HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	var order []string
	mws := []Middleware{
		NewRequestMiddleware("*", "*", func(r *Request) {
			order = append(order, "first")
			r.SetPathParam("seen", "yes")
		}),
		NewRequestMiddleware("*", "/other", func(*Request) {
			order = append(order, "skipped")
		}),
		NewPairMiddleware("*", "*",
			func(r *Request) *Request {
				order = append(order, "second")
				return r
			},
			nil,
		),
	}

	out := applyRequestPhase(mws, req)

	assert.Equal(t, []string{"first", "second"}, order)
	v, ok := out.PathParam("seen")
	require.True(t, ok)
	assert.Equal(t, "yes", v)
}

func TestApplyResponsePhase(t *testing.T) {
	req, err := ParseRequest([]byte("GET /x HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	resp := NewResponse(StatusOK)
	mws := []Middleware{
		NewResponseMiddleware("*", "*", func(r *Response) {
			r.SetHeader("X-Marked", "1")
		}),
		NewPairMiddleware("*", "*", nil, func(r *Response) *Response {
			// Replacing the response entirely.
			next := NewResponse(StatusTeapot)
			if v, ok := r.Header("X-Marked"); ok {
				next.SetHeader("X-Marked", v)
			}
			return next
		}),
	}

	out := applyResponsePhase(mws, req, resp, nil)

	assert.Equal(t, StatusTeapot, out.Status)
	v, ok := out.Header("X-Marked")
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestErrorPageMiddleware(t *testing.T) {
	req, err := ParseRequest([]byte("GET /missing HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	require.NoError(t, err)

	routes := []*Route{
		{Path: "/", Method: MethodGet, Kind: RouteFile, Content: []byte("home")},
		{Method: MethodGet, Kind: RouteError, Status: StatusNotFound, Content: []byte("<h1>custom 404</h1>")},
	}

	mw := errorPageMiddleware()

	resp := applyResponsePhase([]Middleware{mw}, req, NewResponse(StatusNotFound), routes)
	assert.Equal(t, "<h1>custom 404</h1>", string(resp.Body()))
	assert.Equal(t, "text/html", resp.ContentType())

	// A status without a registered page passes through untouched.
	resp = applyResponsePhase([]Middleware{mw}, req, NewResponse(StatusInternalServerError), routes)
	assert.Empty(t, resp.Body())
}
