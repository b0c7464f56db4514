package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/hass-mcp/internal/api"
)

// Connection is the link to one Home Assistant instance. It is safe for
// concurrent use.
type Connection struct {
	cfg    Config
	rest   *api.Client
	logger *slog.Logger

	newClient func(ClientConfig, *slog.Logger) Client

	mu      sync.RWMutex
	session *session

	// Request ids are never reused for the lifetime of the Connection.
	lastID atomic.Uint64
}

// session is one authenticated socket and the requests waiting on it.
type session struct {
	client Client
	lost   chan struct{}
	once   sync.Once

	pendingMu sync.Mutex
	pending   map[uint64]chan ResultFrame
	closed    bool
}

// closedCh is returned by Done when there is no live session.
var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// NewConnection creates a disconnected Connection.
func NewConnection(cfg Config, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = defaults.AuthTimeout
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaults.HTTPTimeout
	}
	if cfg.Client == (ClientConfig{}) {
		cfg.Client = defaults.Client
	}
	cfg.Client.URL = cfg.SocketURL

	logger = logger.With("component", "connection")

	return &Connection{
		cfg:    cfg,
		logger: logger,
		rest: api.NewClient(cfg.Host, cfg.Token,
			api.WithTimeout(cfg.HTTPTimeout),
			api.WithRetries(cfg.MaxRetries, 500*time.Millisecond),
			api.WithLogger(logger),
		),
		newClient: NewClient,
	}
}

// REST returns the underlying REST client.
func (c *Connection) REST() *api.Client {
	return c.rest
}

// Connect probes the REST API, opens the socket and authenticates. Any
// previous session is closed first. Failures are reported in the Result.
func (c *Connection) Connect(ctx context.Context) Result {
	if _, err := c.rest.Probe(ctx); err != nil {
		c.logger.Warn("home assistant probe failed", "host", c.cfg.Host, "error", err)
		return Result{Err: fmt.Errorf("home assistant unreachable: %w", err)}
	}

	c.Disconnect()

	client := c.newClient(c.cfg.Client, c.logger)
	if err := client.Connect(ctx); err != nil {
		c.logger.Warn("websocket dial failed", "url", c.cfg.SocketURL, "error", err)
		return Result{Err: fmt.Errorf("open websocket: %w", err)}
	}

	version, err := c.authenticate(ctx, client)
	if err != nil {
		client.Close()
		c.logger.Warn("websocket authentication failed", "error", err)
		return Result{Err: err}
	}

	s := &session{
		client:  client,
		lost:    make(chan struct{}),
		pending: make(map[uint64]chan ResultFrame),
	}

	c.mu.Lock()
	old := c.session
	c.session = s
	c.mu.Unlock()

	// A concurrent Connect may have installed a session meanwhile.
	if old != nil {
		old.client.Close()
		c.endSession(old, ErrConnectionClosed)
	}

	go c.dispatch(s)

	c.logger.Info("connected to home assistant", "url", c.cfg.SocketURL, "ha_version", version)
	return Result{Success: true, HAVersion: version}
}

// authenticate sends the auth frame and waits for the verdict. A real server
// greets with auth_required first; that frame is skipped.
func (c *Connection) authenticate(ctx context.Context, client Client) (string, error) {
	data, err := json.Marshal(AuthFrame{Type: TypeAuth, AccessToken: c.cfg.Token})
	if err != nil {
		return "", fmt.Errorf("encode auth frame: %w", err)
	}
	if err := client.Send(data); err != nil {
		return "", fmt.Errorf("send auth frame: %w", err)
	}

	timer := time.NewTimer(c.cfg.AuthTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()

		case <-timer.C:
			return "", ErrAuthTimeout

		case err := <-client.Errors():
			if rejected := c.pendingRejection(client); rejected != nil {
				return "", rejected
			}
			return "", fmt.Errorf("websocket error during auth: %w", err)

		case msg := <-client.Messages():
			if version, ok, err := c.authVerdict(msg.Data); ok {
				return version, err
			}
		}
	}
}

// pendingRejection returns the auth_invalid error among frames already
// buffered on client, or nil.
func (c *Connection) pendingRejection(client Client) error {
	for {
		select {
		case msg := <-client.Messages():
			if _, ok, err := c.authVerdict(msg.Data); ok && err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// authVerdict reports whether data is auth_ok or auth_invalid. Other frames
// are skipped.
func (c *Connection) authVerdict(data []byte) (version string, ok bool, err error) {
	var reply AuthReply
	if err := json.Unmarshal(data, &reply); err != nil {
		c.logger.Debug("ignoring malformed frame during auth", "error", err)
		return "", false, nil
	}

	switch reply.Type {
	case TypeAuthOK:
		return reply.HAVersion, true, nil
	case TypeAuthInvalid:
		if reply.Message == "" {
			return "", true, ErrAuthInvalid
		}
		return "", true, fmt.Errorf("%w: %s", ErrAuthInvalid, reply.Message)
	case TypeAuthRequired:
	default:
		c.logger.Debug("ignoring frame during auth", "type", reply.Type)
	}
	return "", false, nil
}

// dispatch routes frames of one session until it ends.
func (c *Connection) dispatch(s *session) {
	defer c.endSession(s, ErrConnectionClosed)

	for {
		select {
		case <-s.client.Done():
			return

		case err := <-s.client.Errors():
			c.logger.Warn("websocket connection lost", "error", err)
			s.client.Close()
			return

		case msg := <-s.client.Messages():
			c.route(s, msg.Data)
		}
	}
}

// route delivers a result or pong frame to its waiting caller.
func (c *Connection) route(s *session, data []byte) {
	var frame ResultFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Debug("ignoring malformed frame", "error", err)
		return
	}

	switch frame.Type {
	case TypeResult, TypePong:
	case TypeEvent:
		return
	default:
		c.logger.Debug("ignoring frame", "type", frame.Type, "id", frame.ID)
		return
	}

	if frame.Type == TypePong {
		frame.Success = true
	}

	if !s.resolve(frame) {
		c.logger.Debug("no pending request for frame", "id", frame.ID)
	}
}

// endSession marks s as gone. Outstanding requests fail with err. Safe to
// call more than once.
func (c *Connection) endSession(s *session, err error) {
	s.once.Do(func() {
		c.mu.Lock()
		if c.session == s {
			c.session = nil
		}
		c.mu.Unlock()

		s.failAll()
		close(s.lost)

		if err != nil {
			c.logger.Debug("websocket session ended", "reason", err)
		}
	})
}

// Disconnect closes the socket. Outstanding requests fail with
// ErrConnectionClosed. Safe to call when already disconnected.
func (c *Connection) Disconnect() {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()

	if s == nil {
		return
	}

	s.client.Close()
	c.endSession(s, ErrConnectionClosed)
}

// IsConnected reports whether an authenticated socket is up.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()
	return s != nil && s.client.IsConnected()
}

// Done returns a channel closed when the current socket session ends. If
// there is no session the channel is already closed.
func (c *Connection) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return closedCh
	}
	return c.session.lost
}

// GetVersion returns the Home Assistant version from the REST probe.
func (c *Connection) GetVersion(ctx context.Context) (string, error) {
	status, err := c.rest.Probe(ctx)
	if err != nil {
		return "", fmt.Errorf("get home assistant version: %w", err)
	}
	return status.Version, nil
}

// SendMessage sends {id, type, ...payload} and waits for the matching
// result frame. Failed results are returned as *RemoteError.
func (c *Connection) SendMessage(ctx context.Context, msgType string, payload map[string]any) (json.RawMessage, error) {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()

	if s == nil || !s.client.IsConnected() {
		return nil, ErrNotConnected
	}

	id := c.lastID.Add(1)

	frame := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		frame[k] = v
	}
	frame["id"] = id
	frame["type"] = msgType

	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", msgType, err)
	}

	respCh, ok := s.register(id)
	if !ok {
		return nil, ErrNotConnected
	}

	if err := s.client.Send(data); err != nil {
		s.forget(id)
		return nil, fmt.Errorf("send %s message: %w", msgType, err)
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.forget(id)
		return nil, ctx.Err()

	case <-timer.C:
		s.forget(id)
		c.logger.Warn("request timed out", "id", id, "type", msgType, "timeout", c.cfg.RequestTimeout)
		return nil, fmt.Errorf("%w for message type %s", ErrRequestTimeout, msgType)

	case resp, ok := <-respCh:
		if !ok {
			return nil, ErrConnectionClosed
		}
		if !resp.Success {
			return nil, newRemoteError(resp.Error)
		}
		return resp.Result, nil
	}
}

// Ping performs a socket-level ping/pong round trip.
func (c *Connection) Ping(ctx context.Context) error {
	_, err := c.SendMessage(ctx, TypePing, nil)
	return err
}

// GetStates returns every entity state, over the socket when connected and
// over REST otherwise.
func (c *Connection) GetStates(ctx context.Context) ([]api.EntityState, error) {
	if !c.IsConnected() {
		states, err := c.rest.GetStates(ctx)
		if err != nil {
			return nil, fmt.Errorf("get entity states: %w", err)
		}
		return states, nil
	}

	raw, err := c.SendMessage(ctx, "get_states", nil)
	if err != nil {
		return nil, fmt.Errorf("get entity states: %w", err)
	}

	states := []api.EntityState{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &states); err != nil {
			return nil, fmt.Errorf("get entity states: decode result: %w", err)
		}
	}
	if states == nil {
		states = []api.EntityState{}
	}
	return states, nil
}

// CallService invokes domain.service, over the socket when connected and
// over REST otherwise.
func (c *Connection) CallService(ctx context.Context, domain, service string, data map[string]any) (json.RawMessage, error) {
	if data == nil {
		data = map[string]any{}
	}

	var (
		resp json.RawMessage
		err  error
	)
	if c.IsConnected() {
		resp, err = c.SendMessage(ctx, "call_service", map[string]any{
			"domain":       domain,
			"service":      service,
			"service_data": data,
		})
	} else {
		resp, err = c.rest.CallService(ctx, domain, service, data)
	}
	if err != nil {
		return nil, fmt.Errorf("call service %s.%s: %w", domain, service, err)
	}
	return resp, nil
}

// register adds a pending entry for id. It fails once the session has ended.
func (s *session) register(id uint64) (chan ResultFrame, bool) {
	ch := make(chan ResultFrame, 1)

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if s.closed {
		return nil, false
	}
	s.pending[id] = ch
	return ch, true
}

// forget removes the entry for id without resolving it.
func (s *session) forget(id uint64) {
	s.pendingMu.Lock()
	delete(s.pending, id)
	s.pendingMu.Unlock()
}

// resolve hands frame to its waiter. The entry is deleted on first match,
// so a second frame with the same id is a no-op.
func (s *session) resolve(frame ResultFrame) bool {
	s.pendingMu.Lock()
	ch, ok := s.pending[frame.ID]
	if ok {
		delete(s.pending, frame.ID)
	}
	s.pendingMu.Unlock()

	if ok {
		ch <- frame
	}
	return ok
}

// failAll closes every waiting channel.
func (s *session) failAll() {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	s.closed = true
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
}

// IsRemoteError reports whether err carries a failed result frame.
func IsRemoteError(err error) bool {
	var remote *RemoteError
	return errors.As(err, &remote)
}
