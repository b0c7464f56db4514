package mcp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rickgao/hass-mcp/internal/audit"
	"github.com/rickgao/hass-mcp/internal/tool"
	"github.com/rickgao/hass-mcp/internal/version"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// ToolsResponse is the body of GET /mcp/tools.
type ToolsResponse struct {
	Tools []tool.Manifest `json:"tools"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string        `json:"status"`
	Message       string        `json:"message,omitempty"`
	HomeAssistant *HealthStatus `json:"homeAssistant,omitempty"`
	Server        *version.Info `json:"server,omitempty"`
}

// HealthStatus reports the Home Assistant side of the bridge.
type HealthStatus struct {
	Connected bool   `json:"connected"`
	Version   string `json:"version"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var body map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body: " + err.Error()})
		return
	}

	var name string
	if raw, ok := body["tool"]; ok {
		if err := json.Unmarshal(raw, &name); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid tool name"})
			return
		}
	}
	delete(body, "tool")

	t, ok := s.tools.Get(name)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("Unknown tool: %s", name)})
		return
	}

	args, err := json.Marshal(body)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}

	out := t.Invoke(r.Context(), args)

	entry := audit.NewEntry(name)
	entry.RequestID = RequestIDFromContext(r.Context())
	entry.Action = stringField(body, "action")
	entry.AutomationID = stringField(body, "automation_id")
	entry.Success = out.Success
	entry.Error = out.Error
	entry.Duration = time.Since(start)
	entry.At = start.UTC()
	s.recorder.Record(entry)

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ToolsResponse{Tools: s.tools.Manifests()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.ha.IsConnected() {
		if res := s.ha.Connect(ctx); !res.Success {
			s.writeUnhealthy(w, res.Err)
			return
		}
	}

	haVersion, err := s.ha.GetVersion(ctx)
	if err != nil {
		s.writeUnhealthy(w, err)
		return
	}

	info := version.Current()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		HomeAssistant: &HealthStatus{
			Connected: s.ha.IsConnected(),
			Version:   haVersion,
		},
		Server: &info,
	})
}

func (s *Server) writeUnhealthy(w http.ResponseWriter, err error) {
	s.logger.Warn("health check failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, HealthResponse{
		Status:  "error",
		Message: err.Error(),
	})
}

// stringField returns body[key] when it holds a JSON string.
func stringField(body map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := body[key]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
