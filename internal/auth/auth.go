// Package auth resolves Home Assistant long-lived access tokens and builds the
// headers that carry them on REST requests.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// ErrNoToken is returned when neither an inline token nor a token file is configured.
var ErrNoToken = errors.New("access token is required")

// Credentials holds the bearer token used for both REST and WebSocket auth.
type Credentials struct {
	Token string // Long-lived access token from the Home Assistant profile page
}

// LoadCredentials resolves credentials from an inline token or a token file.
// The inline token wins when both are set.
func LoadCredentials(token, tokenPath string) (*Credentials, error) {
	if token != "" {
		return &Credentials{Token: strings.TrimSpace(token)}, nil
	}
	if tokenPath == "" {
		return nil, ErrNoToken
	}

	loaded, err := LoadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	return &Credentials{Token: loaded}, nil
}

// LoadToken reads a token file. Surrounding whitespace (trailing newline from
// editors or secret mounts) is stripped.
func LoadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %s is empty", path)
	}
	if strings.ContainsAny(token, "\r\n") {
		return "", fmt.Errorf("token file %s contains more than one line", path)
	}

	return token, nil
}

// Headers returns the authentication headers for a REST request.
func (c *Credentials) Headers() map[string]string {
	return map[string]string{
		"Authorization": BearerHeader(c.Token),
	}
}

// Apply sets the authentication headers on req.
func (c *Credentials) Apply(req *http.Request) {
	for k, v := range c.Headers() {
		req.Header.Set(k, v)
	}
}

// Redacted returns a form of the token that is safe to log.
func (c *Credentials) Redacted() string {
	if len(c.Token) <= 8 {
		return "****"
	}
	return c.Token[:4] + "…" + c.Token[len(c.Token)-4:]
}

// BearerHeader formats token as an Authorization header value.
func BearerHeader(token string) string {
	return "Bearer " + token
}
