// Package webserver implements a from-scratch HTTP/1.1 server with
// virtual-host routing.
//
// The server accepts raw TCP (optionally TLS) connections, parses
// requests off the wire, runs them through a middleware pipeline and a
// per-domain router, and dispatches to one of five route kinds: a static
// folder, a single file, a custom handler, an error page, or a forward
// proxy to an external origin.
//
// # Basic usage
//
//	srv, err := webserver.New(&webserver.Config{
//	    Host:       "0.0.0.0",
//	    Port:       8080,
//	    BaseDomain: "example.com",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv.AddFileRoute(webserver.Domain{}, "/", webserver.MethodGet, "./static/index.html", 200)
//	srv.AddStaticRoute(webserver.Domain{}, "/assets", webserver.MethodGet, "./static/assets")
//	srv.AddCustomRoute(webserver.Domain{}, "/api", webserver.MethodGet,
//	    func(req *webserver.Request, d webserver.Domain) *webserver.Response {
//	        resp := webserver.NewResponse(200)
//	        resp.SetJSON()
//	        resp.SetBodyString(`{"ok":true}`)
//	        return resp
//	    })
//	log.Fatal(srv.Start())
//
// A zero Domain value targets the server's base domain; AddSubdomain
// registers additional virtual hosts under it.
//
// Connections are served by one goroutine each. Route tables may be
// mutated while the server is running; lookups and registrations are
// synchronized per domain.
package webserver
