package webserver

import (
	"crypto/tls"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/hearthweb/hearth/internal/logging"
)

// newTLSConfig creates a TLS configuration from PEM certificate and key files.
func newTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load TLS certificate")
	}

	logging.Info("TLS configuration created from files",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
	)

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// tlsInfo summarizes a TLS config for the startup log.
func tlsInfo(config *tls.Config) map[string]any {
	if config == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"enabled":      true,
		"min_version":  tls.VersionName(config.MinVersion),
		"certificates": len(config.Certificates),
	}
}
