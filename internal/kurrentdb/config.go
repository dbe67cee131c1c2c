package kurrentdb

import (
	"fmt"

	"github.com/oncoayuda/casework/internal/shared/config"
)

// Config holds KurrentDB connection configuration.
type Config struct {
	// Host is the KurrentDB server hostname
	Host string
	// Port is the KurrentDB gRPC/HTTP port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional for insecure mode)
	Username string
	// Password for authentication (optional for insecure mode)
	Password string
	// StreamPrefix namespaces the streams events are appended to.
	StreamPrefix string
}

// FromConfig maps the application configuration section.
func FromConfig(cfg config.KurrentDBConfig) *Config {
	return &Config{
		Host:         cfg.Host,
		Port:         cfg.Port,
		Insecure:     cfg.Insecure,
		Username:     cfg.Username,
		Password:     cfg.Password,
		StreamPrefix: cfg.StreamPrefix,
	}
}

// ConnectionString returns the esdb:// connection string for EventStore client.
func (c *Config) ConnectionString() string {
	var auth string
	if c.Username != "" && c.Password != "" {
		auth = fmt.Sprintf("%s:%s@", c.Username, c.Password)
	}

	var tls string
	if c.Insecure {
		tls = "?tls=false"
	}

	return fmt.Sprintf("esdb://%s%s:%d%s", auth, c.Host, c.Port, tls)
}
