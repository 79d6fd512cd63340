// Package logging provides structured logging for the hearth server.
//
// This package wraps zap with convenience functions for the logging
// patterns used throughout the server: connection lifecycle events,
// TLS handshakes, HTTP request/response traffic, and raw byte dumps
// for wire-level debugging.
//
// # Log Levels
//
//   - Debug: wire-level detail (hex dumps, parse traces)
//   - Info: normal operations (connections, requests, responses)
//   - Warn: non-fatal issues (socket errors, proxy failures)
//   - Error: fatal issues (startup failures, parse aborts)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Request received",
//	    zap.String("remote_addr", "192.168.1.100"),
//	    zap.String("method", "GET"),
//	    zap.String("path", "/index.html"),
//	)
//
// The logger is silent by default. Set a level via Initialize or the
// HEARTH_LOG_LEVEL environment variable to enable output.
package logging
