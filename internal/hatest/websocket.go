package hatest

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsConn is one accepted socket.
type wsConn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	held    []any
}

func (c *wsConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// request is the common envelope of client frames.
type request struct {
	ID           uint64         `json:"id"`
	Type         string         `json:"type"`
	AccessToken  string         `json:"access_token,omitempty"`
	AutomationID string         `json:"automation_id,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
	Domain       string         `json:"domain,omitempty"`
	Service      string         `json:"service,omitempty"`
	ServiceData  map[string]any `json:"service_data,omitempty"`
}

func resultOK(id uint64, result any) map[string]any {
	return map[string]any{"id": id, "type": "result", "success": true, "result": result}
}

func resultErr(id uint64, code, message string) map[string]any {
	return map[string]any{
		"id":      id,
		"type":    "result",
		"success": false,
		"error":   map[string]any{"code": code, "message": message},
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	wc := &wsConn{conn: conn}

	s.mu.Lock()
	s.conns[wc] = false
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, wc)
		s.mu.Unlock()
		conn.Close()
	}()

	if err := wc.writeJSON(map[string]any{"type": "auth_required", "ha_version": s.version}); err != nil {
		return
	}
	if !s.authenticate(wc) {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.handleFrame(wc, data)
	}
}

// authenticate reads the auth frame and answers it. It returns false when
// the socket should be closed.
func (s *Server) authenticate(wc *wsConn) bool {
	_, data, err := wc.conn.ReadMessage()
	if err != nil {
		return false
	}

	s.mu.Lock()
	silent := s.silentAuth
	s.mu.Unlock()

	if silent {
		// Keep the socket open and unanswered until the client gives up.
		for {
			if _, _, err := wc.conn.ReadMessage(); err != nil {
				return false
			}
		}
	}

	var req request
	if err := json.Unmarshal(data, &req); err != nil || req.Type != "auth" || req.AccessToken != s.token {
		wc.writeJSON(map[string]any{"type": "auth_invalid", "message": "Invalid token"})
		return false
	}

	if err := wc.writeJSON(map[string]any{"type": "auth_ok", "ha_version": s.version}); err != nil {
		return false
	}

	s.mu.Lock()
	s.conns[wc] = true
	s.mu.Unlock()
	return true
}

func (s *Server) handleFrame(wc *wsConn, data []byte) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	s.mu.Lock()
	s.requests[req.Type]++
	dropped := s.drop[req.Type]
	s.mu.Unlock()

	if dropped {
		return
	}

	s.respond(wc, req.Type, s.answer(req))
}

func (s *Server) answer(req request) map[string]any {
	switch req.Type {
	case "ping":
		return map[string]any{"id": req.ID, "type": "pong"}

	case "get_states":
		return resultOK(req.ID, s.store.states())

	case "config/automation/list":
		return resultOK(req.ID, s.store.listAutomations())

	case "config/automation/config":
		if req.Config == nil {
			return resultErr(req.ID, "invalid_format", "config is required")
		}
		if req.AutomationID == "" {
			if alias, _ := req.Config["alias"].(string); alias == "" {
				return resultErr(req.ID, "invalid_format", "alias is required")
			}
		}
		id := s.store.saveAutomation(req.AutomationID, req.Config)
		return resultOK(req.ID, map[string]any{"automation_id": id})

	case "config/automation/delete":
		if !s.store.deleteAutomation(req.AutomationID) {
			return resultErr(req.ID, "not_found", "Automation not found")
		}
		return resultOK(req.ID, nil)

	case "call_service":
		if req.Domain == "" || req.Service == "" {
			return resultErr(req.ID, "invalid_format", "domain and service are required")
		}
		data := req.ServiceData
		if data == nil {
			data = map[string]any{}
		}
		s.store.callService(ServiceCall{
			Domain:    req.Domain,
			Service:   req.Service,
			Data:      data,
			Transport: "websocket",
		})
		return resultOK(req.ID, map[string]any{
			"context": map[string]any{"id": uuid.NewString(), "parent_id": nil, "user_id": nil},
		})
	}

	return resultErr(req.ID, "unknown_command", "Unknown command.")
}

// respond applies the configured delay and reordering before writing.
func (s *Server) respond(wc *wsConn, msgType string, frame map[string]any) {
	s.mu.Lock()
	delay := s.delays[msgType]
	reorder := s.reorder
	s.mu.Unlock()

	if delay > 0 {
		time.AfterFunc(delay, func() {
			wc.writeJSON(frame)
		})
		return
	}

	if reorder <= 1 {
		wc.writeJSON(frame)
		return
	}

	wc.writeMu.Lock()
	defer wc.writeMu.Unlock()

	wc.held = append(wc.held, frame)
	if len(wc.held) < reorder {
		return
	}
	for i := len(wc.held) - 1; i >= 0; i-- {
		if err := wc.conn.WriteJSON(wc.held[i]); err != nil {
			break
		}
	}
	wc.held = nil
}
