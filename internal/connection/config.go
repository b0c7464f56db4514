package connection

import (
	"fmt"

	"github.com/rickgao/hass-mcp/internal/auth"
	"github.com/rickgao/hass-mcp/internal/config"
)

// FromConfig builds a Config from the homeassistant section, resolving the
// token from the inline value or the token file. Zero durations keep the
// defaults.
func FromConfig(ha config.HomeAssistantConfig) (Config, error) {
	creds, err := auth.LoadCredentials(ha.Token, ha.TokenFile)
	if err != nil {
		return Config{}, fmt.Errorf("resolve token: %w", err)
	}

	cfg := DefaultConfig()
	cfg.Host = ha.Host
	cfg.Token = creds.Token
	cfg.SocketURL = ha.SocketURL
	if ha.RequestTimeout > 0 {
		cfg.RequestTimeout = ha.RequestTimeout
	}
	if ha.AuthTimeout > 0 {
		cfg.AuthTimeout = ha.AuthTimeout
	}
	if ha.HTTPTimeout > 0 {
		cfg.HTTPTimeout = ha.HTTPTimeout
	}
	if ha.MaxRetries > 0 {
		cfg.MaxRetries = ha.MaxRetries
	}
	return cfg, nil
}

// SupervisorConfigFrom builds reconnection settings from the homeassistant section.
func SupervisorConfigFrom(ha config.HomeAssistantConfig) SupervisorConfig {
	cfg := DefaultSupervisorConfig()
	if ha.ReconnectBaseDelay > 0 {
		cfg.BaseDelay = ha.ReconnectBaseDelay
	}
	if ha.ReconnectMaxDelay > 0 {
		cfg.MaxDelay = ha.ReconnectMaxDelay
	}
	return cfg
}
