package config

import (
	"fmt"
	"net/url"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultHost               = "http://localhost:8123"
	DefaultSocketPath         = "/api/websocket"
	DefaultRequestTimeout     = 30 * time.Second
	DefaultAuthTimeout        = 10 * time.Second
	DefaultHTTPTimeout        = 10 * time.Second
	DefaultMaxRetries         = 2
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultServerAddr         = ":3000"
	DefaultRateBurst          = 20
	DefaultShutdownTimeout    = 10 * time.Second
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 4
	DefaultMinConns           = 1
	DefaultAuditBatchSize     = 100
	DefaultAuditFlushInterval = 5 * time.Second
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

func (c *Config) applyDefaults() error {
	ha := &c.HomeAssistant
	if ha.Host == "" {
		ha.Host = DefaultHost
	}
	if ha.SocketURL == "" {
		socketURL, err := DeriveSocketURL(ha.Host)
		if err != nil {
			return fmt.Errorf("homeassistant.socket_url: %w", err)
		}
		ha.SocketURL = socketURL
	}
	if ha.RequestTimeout == 0 {
		ha.RequestTimeout = DefaultRequestTimeout
	}
	if ha.AuthTimeout == 0 {
		ha.AuthTimeout = DefaultAuthTimeout
	}
	if ha.HTTPTimeout == 0 {
		ha.HTTPTimeout = DefaultHTTPTimeout
	}
	if ha.MaxRetries == 0 {
		ha.MaxRetries = DefaultMaxRetries
	}
	if ha.ReconnectBaseDelay == 0 {
		ha.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if ha.ReconnectMaxDelay == 0 {
		ha.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}

	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = DefaultRateBurst
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Audit defaults
	applyDBDefaults(&c.Audit.Database)
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = DefaultAuditBatchSize
	}
	if c.Audit.FlushInterval == 0 {
		c.Audit.FlushInterval = DefaultAuditFlushInterval
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}

	return nil
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// DeriveSocketURL maps a REST base URL onto the WebSocket endpoint
// (http -> ws, https -> wss, path /api/websocket).
func DeriveSocketURL(host string) (string, error) {
	u, err := url.Parse(host)
	if err != nil {
		return "", fmt.Errorf("parse host: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported host scheme %q", u.Scheme)
	}

	u.Path = DefaultSocketPath
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
