// Hearth-server is an HTTP/1.1 web server with virtual-host routing.
//
// It serves static folders, single files, error pages and forward-proxy
// routes declared in a YAML config file, over plain TCP or TLS.
//
// Usage:
//
//	hearth-server serve [flags]
//
// See 'hearth-server serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hearthweb/hearth/internal/config"
	"github.com/hearthweb/hearth/internal/version"
	"github.com/hearthweb/hearth/webserver"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hearth-server",
	Short: "Hearth HTTP server",
	Long: `A from-scratch HTTP/1.1 web server with virtual-host routing.

Routes are declared in a YAML configuration file and can serve a static
folder, a single file, a custom error page, or forward requests to an
external origin. Subdomains of the base domain act as separate virtual
hosts with their own route tables.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	configPath string
	certPath   string
	keyPath    string
	host       string
	port       int
	baseDomain string
	logLevel   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the Hearth HTTP server.

Configuration is read from the YAML file given by --config, then
overridden by environment variables and any flags set explicitly.
Without a config file the server starts with built-in defaults and an
empty route table.`,
	Example: `  # Start with a config file
  hearth-server serve --config hearth.yaml

  # Plain HTTP on a custom port
  hearth-server serve --config hearth.yaml --port 8080

  # TLS with custom certificates
  hearth-server serve --config hearth.yaml --cert fullchain.pem --key privkey.pem

  # Debug logging
  hearth-server serve --config hearth.yaml --log-level debug`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	serveCmd.Flags().StringVar(&certPath, "cert", "", "Path to TLS certificate file (optional)")
	serveCmd.Flags().StringVar(&keyPath, "key", "", "Path to TLS private key file (optional)")
	serveCmd.Flags().StringVar(&host, "host", "", "Listen address (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", 0, "Listen port")
	serveCmd.Flags().StringVar(&baseDomain, "base-domain", "", "Base domain for virtual hosting")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyFlagOverrides(cmd, cfg)

	if (cfg.Server.TLS.Cert == "") != (cfg.Server.TLS.Key == "") {
		return fmt.Errorf("both --cert and --key must be provided together, or neither")
	}
	if cfg.Server.TLS.Cert != "" {
		if _, err := os.Stat(cfg.Server.TLS.Cert); os.IsNotExist(err) {
			return fmt.Errorf("certificate file not found: %s", cfg.Server.TLS.Cert)
		}
		if _, err := os.Stat(cfg.Server.TLS.Key); os.IsNotExist(err) {
			return fmt.Errorf("private key file not found: %s", cfg.Server.TLS.Key)
		}
	}

	srv, err := webserver.New(&webserver.Config{
		Host:       cfg.Server.Host,
		Port:       cfg.Server.Port,
		BaseDomain: cfg.Server.BaseDomain,
		CertPath:   cfg.Server.TLS.Cert,
		KeyPath:    cfg.Server.TLS.Key,
		LogLevel:   cfg.Server.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := registerRoutes(srv, cfg); err != nil {
		return err
	}

	return srv.Start()
}

// applyFlagOverrides lets explicitly-set flags win over file and
// environment values.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("base-domain") {
		cfg.Server.BaseDomain = baseDomain
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Server.LogLevel = logLevel
	}
	if cmd.Flags().Changed("cert") {
		cfg.Server.TLS.Cert = certPath
	}
	if cmd.Flags().Changed("key") {
		cfg.Server.TLS.Key = keyPath
	}
}

// registerRoutes translates the declarative route list into server
// registrations. Route domains refer to subdomain labels from the
// config's domains list; an empty domain targets the base domain.
func registerRoutes(srv *webserver.Server, cfg *config.Config) error {
	domains := map[string]webserver.Domain{"": {}}
	for _, sub := range cfg.Domains {
		domains[sub] = srv.AddSubdomain(sub)
	}

	for i, r := range cfg.Routes {
		d, ok := domains[r.Domain]
		if !ok {
			return fmt.Errorf("route %d: domain %q is not declared in domains", i, r.Domain)
		}

		method := webserver.MethodGet
		if r.Method != "" {
			m, err := webserver.ParseMethod(r.Method)
			if err != nil {
				return fmt.Errorf("route %d: %w", i, err)
			}
			method = m
		}

		switch r.Kind {
		case "static":
			srv.AddStaticRoute(d, r.Path, method, r.Folder)
		case "file":
			status := r.Status
			if status == 0 {
				status = webserver.StatusOK
			}
			srv.AddFileRoute(d, r.Path, method, r.File, status)
		case "proxy":
			srv.AddProxyRoute(d, r.Path, r.Proxy)
		case "error":
			srv.AddErrorRoute(d, r.Status, r.File)
		}
	}
	return nil
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hearth-server %s (commit: %s)\n", version.Version, version.Commit)
	},
}
