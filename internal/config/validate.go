package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	ha := c.HomeAssistant
	if ha.Host == "" {
		return errors.New("homeassistant.host is required")
	}
	if err := validateURL("homeassistant.host", ha.Host, "http", "https"); err != nil {
		return err
	}
	if err := validateURL("homeassistant.socket_url", ha.SocketURL, "ws", "wss"); err != nil {
		return err
	}
	if ha.Token == "" && ha.TokenFile == "" {
		return errors.New("homeassistant.token or homeassistant.token_file is required")
	}
	if ha.RequestTimeout <= 0 {
		return errors.New("homeassistant.request_timeout must be > 0")
	}
	if ha.AuthTimeout <= 0 {
		return errors.New("homeassistant.auth_timeout must be > 0")
	}
	if ha.MaxRetries < 0 {
		return errors.New("homeassistant.max_retries must be >= 0")
	}
	if ha.ReconnectBaseDelay > ha.ReconnectMaxDelay {
		return fmt.Errorf("homeassistant.reconnect_base_delay (%s) cannot exceed reconnect_max_delay (%s)",
			ha.ReconnectBaseDelay, ha.ReconnectMaxDelay)
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.RateLimit < 0 {
		return errors.New("server.rate_limit must be >= 0")
	}
	if c.Server.RateBurst < 1 {
		return errors.New("server.rate_burst must be >= 1")
	}

	if c.Audit.Enabled {
		if err := c.Audit.Database.validate("audit.database"); err != nil {
			return err
		}
		if c.Audit.BatchSize < 1 {
			return errors.New("audit.batch_size must be >= 1")
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json", "console":
	default:
		return fmt.Errorf("logging.format must be one of text, json, console, got %q", c.Logging.Format)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%s must include a host", field)
			}
			return nil
		}
	}
	return fmt.Errorf("%s must use scheme %v, got %q", field, schemes, u.Scheme)
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
