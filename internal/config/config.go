package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the entire server configuration file.
type Config struct {
	Server  Server  `yaml:"server"`
	Domains []string `yaml:"domains,omitempty"` // extra subdomains of base_domain
	Routes  []Route  `yaml:"routes,omitempty"`
}

// Server holds listener and TLS settings.
type Server struct {
	Host       string `yaml:"host" env:"HEARTH_HOST"`
	Port       int    `yaml:"port" env:"HEARTH_PORT"`
	BaseDomain string `yaml:"base_domain"`
	LogLevel   string `yaml:"log_level" env:"HEARTH_LOG_LEVEL"`
	TLS        TLS    `yaml:"tls,omitempty"`
}

// TLS points at PEM-encoded server identity material.
type TLS struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

// Route describes one declarative route binding.
type Route struct {
	Domain string `yaml:"domain,omitempty"` // empty = base domain
	Path   string `yaml:"path"`
	Method string `yaml:"method,omitempty"` // empty = GET
	Kind   string `yaml:"kind"`             // static | file | proxy | error
	File   string `yaml:"file,omitempty"`
	Folder string `yaml:"folder,omitempty"`
	Proxy  string `yaml:"proxy,omitempty"`
	Status int    `yaml:"status,omitempty"`
}

// Default returns a configuration with sensible defaults applied.
func Default() *Config {
	return &Config{
		Server: Server{
			Host:       "0.0.0.0",
			Port:       8080,
			BaseDomain: "localhost",
			LogLevel:   "info",
		},
	}
}

// Load reads the YAML configuration at path and applies environment
// overrides. An empty path yields the defaults (plus overrides).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := env.Parse(&cfg.Server); err != nil {
		return nil, errors.Wrap(err, "apply environment overrides")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies that would only
// surface later as confusing runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Newf("invalid port %d", c.Server.Port)
	}
	if c.Server.BaseDomain == "" {
		return errors.New("base_domain must not be empty")
	}
	if (c.Server.TLS.Cert == "") != (c.Server.TLS.Key == "") {
		return errors.New("tls requires both cert and key")
	}
	for i, r := range c.Routes {
		switch r.Kind {
		case "static":
			if r.Folder == "" {
				return errors.Newf("route %d: static route requires folder", i)
			}
		case "file":
			if r.File == "" {
				return errors.Newf("route %d: file route requires file", i)
			}
		case "proxy":
			if r.Proxy == "" {
				return errors.Newf("route %d: proxy route requires proxy target", i)
			}
		case "error":
			if r.File == "" || r.Status == 0 {
				return errors.Newf("route %d: error route requires file and status", i)
			}
		default:
			return errors.Newf("route %d: unknown kind %q", i, r.Kind)
		}
		if r.Kind != "error" && r.Path == "" {
			return errors.Newf("route %d: path must not be empty", i)
		}
	}
	return nil
}
