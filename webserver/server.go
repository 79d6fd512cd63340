package webserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/hearthweb/hearth/internal/files"
	"github.com/hearthweb/hearth/internal/logging"
)

const tlsHandshakeTimeout = 5 * time.Second

// Config holds the server configuration.
type Config struct {
	Host       string
	Port       int
	BaseDomain string
	CertPath   string // Path to certificate file (empty = plain TCP)
	KeyPath    string // Path to private key file
	LogLevel   string
}

// Server accepts connections and routes requests across virtual hosts.
// All registration methods are safe to call while the server is running.
type Server struct {
	config      *Config
	tlsConfig   *tls.Config
	router      *router
	listener    net.Listener
	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*conn
	mwMu        sync.RWMutex
	middleware  []Middleware
}

// New creates a new Server instance. The base domain becomes the
// default virtual host; TLS is enabled when both cert and key paths
// are set. Built-in request/response logging and error-page
// substitution middleware are installed ahead of user entries.
func New(config *Config) (*Server, error) {
	if err := logging.Initialize(config.LogLevel); err != nil {
		return nil, errors.Wrap(err, "failed to initialize logging")
	}

	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		var err error
		tlsConfig, err = newTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, err
		}
	}

	s := &Server{
		config:      config,
		tlsConfig:   tlsConfig,
		router:      newRouter(NewDomain(strings.ToLower(config.BaseDomain))),
		activeConns: make(map[string]*conn),
	}
	s.middleware = []Middleware{
		requestLogMiddleware(),
		responseLogMiddleware(),
		errorPageMiddleware(),
	}
	return s, nil
}

// BaseDomain returns the server's default virtual host.
func (s *Server) BaseDomain() Domain {
	return s.router.defaultDomain
}

// AddSubdomain registers a new virtual host named <sub>.<base> and
// returns its Domain for use in route registration.
func (s *Server) AddSubdomain(sub string) Domain {
	d := NewDomain(strings.ToLower(sub) + "." + s.router.defaultDomain.Name)
	s.router.ensure(d)
	logging.Info("Subdomain registered", zap.String("domain", d.Name))
	return d
}

// resolveDomain maps the zero Domain to the base domain.
func (s *Server) resolveDomain(d Domain) Domain {
	if d.IsZero() {
		return s.router.defaultDomain
	}
	return d
}

// AddFileRoute serves the contents of a single file at path. The file
// is read once at registration; a missing file registers an empty body.
func (s *Server) AddFileRoute(d Domain, path string, method Method, filePath string, status int) {
	content, _ := files.Load(filePath)
	s.addRoute(d, &Route{
		Path:    path,
		Method:  method,
		Kind:    RouteFile,
		Status:  status,
		Content: content,
	})
}

// AddStaticRoute serves files under folder for any request whose path
// starts with prefix; the remainder of the path selects the file.
func (s *Server) AddStaticRoute(d Domain, prefix string, method Method, folder string) {
	s.addRoute(d, &Route{
		Path:   prefix,
		Method: method,
		Kind:   RouteStatic,
		Folder: folder,
	})
}

// AddCustomRoute invokes handler for matching requests. A panic inside
// the handler is contained and produces a 500.
func (s *Server) AddCustomRoute(d Domain, path string, method Method, handler HandlerFunc) {
	s.addRoute(d, &Route{
		Path:    path,
		Method:  method,
		Kind:    RouteCustom,
		Handler: handler,
	})
}

// AddErrorRoute registers an error page for the given status code.
// Error routes never match requests directly; the error-page middleware
// substitutes their content into same-status responses.
func (s *Server) AddErrorRoute(d Domain, status int, filePath string) {
	content, _ := files.Load(filePath)
	s.addRoute(d, &Route{
		Method:  MethodGet,
		Kind:    RouteError,
		Status:  status,
		Content: content,
	})
}

// AddProxyRoute forwards matching GET requests to an external origin.
// The matched prefix is stripped and the remainder appended to external.
func (s *Server) AddProxyRoute(d Domain, prefix string, external string) {
	s.addRoute(d, &Route{
		Path:     prefix,
		Method:   MethodGet,
		Kind:     RouteProxy,
		External: external,
	})
}

func (s *Server) addRoute(d Domain, r *Route) {
	r.Domain = s.resolveDomain(d)
	s.router.ensure(r.Domain).add(r)
	logging.Debug("Route registered",
		zap.String("domain", r.Domain.Name),
		zap.String("path", r.Path),
		zap.String("method", string(r.Method)),
		zap.String("kind", r.Kind.String()),
	)
}

// Use appends a middleware after the built-in entries.
func (s *Server) Use(mw Middleware) {
	s.mwMu.Lock()
	s.middleware = append(s.middleware, mw)
	s.mwMu.Unlock()
}

func (s *Server) middlewareSnapshot() []Middleware {
	s.mwMu.RLock()
	defer s.mwMu.RUnlock()
	out := make([]Middleware, len(s.middleware))
	copy(out, s.middleware)
	return out
}

// handle runs one parsed request through the full pipeline: request
// middleware, virtual-host resolution, route matching, dispatch, then
// response middleware with the matched domain's route snapshot.
func (s *Server) handle(req *Request) *Response {
	mws := s.middlewareSnapshot()
	req = applyRequestPhase(mws, req)

	var resp *Response
	var routes []*Route
	_, table := s.router.resolve(req.Host())
	if table == nil {
		resp = statusResponse(StatusNotFound)
	} else {
		routes = table.snapshot()
		route, status := table.match(req.Method, req.PathOnly())
		if route == nil {
			resp = statusResponse(status)
		} else {
			resp = dispatch(route, req)
		}
	}

	return applyResponsePhase(mws, req, resp, routes)
}

// statusResponse builds a plain response for router-generated statuses.
func statusResponse(status int) *Response {
	resp := NewResponse(status)
	resp.SetBodyString(fmt.Sprintf("<h1>%d %s</h1>", status, ReasonPhrase(status)))
	return resp
}

// Start starts the server and blocks until a shutdown signal arrives
// or the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	logging.Info("Starting server",
		zap.String("addr", addr),
		zap.String("base_domain", s.router.defaultDomain.Name),
		zap.String("log_level", s.config.LogLevel),
		zap.Any("tls", tlsInfo(s.tlsConfig)),
	)

	var listener net.Listener
	var err error
	if s.tlsConfig != nil {
		listener, err = tls.Listen("tcp", addr, s.tlsConfig)
	} else {
		listener, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return errors.Wrap(err, "failed to create listener")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Serve(listener)
	}()

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping server...")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Serve accepts connections on l until it is closed. Each connection
// gets a dedicated worker goroutine.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()

	logging.Info("Server listening for connections",
		zap.String("addr", l.Addr().String()),
	)

	for {
		rwc, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Error("Failed to accept connection", zap.Error(err))
			continue
		}

		c := &conn{
			srv:        s,
			rwc:        rwc,
			remoteAddr: rwc.RemoteAddr().String(),
		}
		s.mu.Lock()
		s.activeConns[c.remoteAddr] = c
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			c.serve()
		}()
	}
}

func (s *Server) dropConn(c *conn) {
	s.mu.Lock()
	delete(s.activeConns, c.remoteAddr)
	s.mu.Unlock()
}

func (s *Server) handshakeTimeout() time.Duration {
	return tlsHandshakeTimeout
}

// Shutdown stops accepting connections, closes active ones and waits
// for workers to finish, bounded by ctx and a 10 second cap.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	s.mu.Lock()
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			logging.Error("Error closing listener", zap.Error(err))
		}
	}
	for addr, c := range s.activeConns {
		logging.Info("Closing active connection", zap.String("remote_addr", addr))
		_ = c.rwc.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	case <-time.After(10 * time.Second):
		logging.Warn("Shutdown timeout after 10 seconds, forcing close")
	}

	logging.Sync()
	return nil
}

// GetActiveConnections returns the number of active connections.
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}
