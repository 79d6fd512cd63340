// Package config loads the hearth server configuration.
//
// Configuration comes from a YAML file describing the listener, TLS
// material, virtual-host domains, and declarative routes, with a small
// set of environment variable overrides applied on top:
//
//	HEARTH_HOST       listener host
//	HEARTH_PORT       listener port
//	HEARTH_LOG_LEVEL  log verbosity
//
// A minimal configuration file:
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	  base_domain: example.com
//	routes:
//	  - path: /
//	    method: GET
//	    kind: file
//	    file: ./static/index.html
//	  - path: /assets
//	    method: GET
//	    kind: static
//	    folder: ./static/assets
package config
