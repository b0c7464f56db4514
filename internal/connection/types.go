package connection

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected to home assistant")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
	ErrRequestTimeout   = errors.New("request timeout")
	ErrAuthTimeout      = errors.New("authentication timeout: no auth response from home assistant")
	ErrAuthInvalid      = errors.New("authentication failed")
	ErrConnectionClosed = errors.New("connection closed")
	ErrAlreadyClosed    = errors.New("already closed")
)

// Frame types exchanged over the socket.
const (
	TypeAuth         = "auth"
	TypeAuthRequired = "auth_required"
	TypeAuthOK       = "auth_ok"
	TypeAuthInvalid  = "auth_invalid"
	TypeResult       = "result"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeEvent        = "event"
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw frame bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// AuthFrame is the first frame a client sends.
type AuthFrame struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// AuthReply is any server frame during the auth phase.
type AuthReply struct {
	Type      string `json:"type"` // "auth_required", "auth_ok", "auth_invalid"
	Message   string `json:"message,omitempty"`
	HAVersion string `json:"ha_version,omitempty"`
}

// ResultFrame is a server response to a request frame.
type ResultFrame struct {
	ID      uint64          `json:"id"`
	Type    string          `json:"type"` // "result" or "pong"
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorDetail    `json:"error,omitempty"`
}

// ErrorDetail is the error object of a failed result frame.
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// RemoteError is returned when Home Assistant answers a request with success=false.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// newRemoteError builds a RemoteError from a failed frame.
func newRemoteError(detail *ErrorDetail) *RemoteError {
	if detail == nil || detail.Message == "" {
		e := &RemoteError{Message: "Unknown error"}
		if detail != nil {
			e.Code = detail.Code
		}
		return e
	}
	return &RemoteError{Code: detail.Code, Message: detail.Message}
}

// Result is the outcome of Connect. Connect never returns a bare error.
type Result struct {
	Success   bool
	HAVersion string // Reported in auth_ok, empty on failure
	Err       error
}

// Message returns the failure text, or "" on success.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL          string        // e.g. ws://homeassistant.local:8123/api/websocket
	PingInterval time.Duration // Interval between control-frame pings
	PingTimeout  time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 30 * time.Second,
		PingTimeout:  90 * time.Second,
		WriteTimeout: 5 * time.Second,
		BufferSize:   256,
	}
}

// Config configures a Connection. It is not modified after NewConnection.
type Config struct {
	Host      string // REST base URL, e.g. http://homeassistant.local:8123
	Token     string // Long-lived access token
	SocketURL string // WebSocket URL

	RequestTimeout time.Duration // Per-request wait for a matching result frame
	AuthTimeout    time.Duration // Wait for auth_ok/auth_invalid after sending auth
	HTTPTimeout    time.Duration // REST client timeout
	MaxRetries     int           // REST retries for idempotent requests

	Client ClientConfig
}

// DefaultConfig returns a Config with default timeouts. Host, Token and
// SocketURL must still be set.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
		AuthTimeout:    10 * time.Second,
		HTTPTimeout:    10 * time.Second,
		MaxRetries:     2,
		Client:         DefaultClientConfig(),
	}
}

// SupervisorConfig configures reconnection backoff.
type SupervisorConfig struct {
	BaseDelay time.Duration // First wait after a failed attempt
	MaxDelay  time.Duration // Cap for the doubling wait
}

// DefaultSupervisorConfig returns sensible defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		BaseDelay: 1 * time.Second,
		MaxDelay:  60 * time.Second,
	}
}
