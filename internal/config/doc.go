// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation:
//
//	homeassistant:
//	  host: http://homeassistant.local:8123
//	  token: ${HASS_TOKEN}
//
// When no file is given, FromEnv builds the same structure from HASS_HOST,
// HASS_TOKEN, HASS_SOCKET_URL and PORT.
package config
