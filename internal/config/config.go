package config

import "time"

// Config is the root configuration for a bridge instance.
type Config struct {
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Server        ServerConfig        `yaml:"server"`
	Audit         AuditConfig         `yaml:"audit"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// HomeAssistantConfig holds the remote platform endpoints and connection timing.
type HomeAssistantConfig struct {
	Host      string `yaml:"host"`       // REST base URL, e.g. http://localhost:8123
	SocketURL string `yaml:"socket_url"` // Derived from Host when empty
	Token     string `yaml:"token"`      // Long-lived access token
	TokenFile string `yaml:"token_file"` // Alternative to Token

	RequestTimeout     time.Duration `yaml:"request_timeout"` // Per socket request
	AuthTimeout        time.Duration `yaml:"auth_timeout"`    // auth_ok / auth_invalid wait
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
	MaxRetries         int           `yaml:"max_retries"` // REST GET retries
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
}

// ServerConfig holds the tool-invocation HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	RateLimit       float64       `yaml:"rate_limit"` // Requests per second on /mcp, 0 = unlimited
	RateBurst       int           `yaml:"rate_burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuditConfig controls the tool invocation journal.
type AuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// LoggingConfig holds log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json, console
}
