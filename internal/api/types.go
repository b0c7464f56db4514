package api

import (
	"encoding/json"
	"time"
)

// APIStatus from GET /api
type APIStatus struct {
	Message string `json:"message"`
	Version string `json:"version"`
}

// EntityState is one entity record, from GET /api/states or the get_states
// socket command. Both transports produce this same shape.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged *time.Time     `json:"last_changed,omitempty"`
	LastUpdated *time.Time     `json:"last_updated,omitempty"`
	Context     *StateContext  `json:"context,omitempty"`
}

// FriendlyName returns the friendly_name attribute, falling back to the entity id.
func (s EntityState) FriendlyName() string {
	if name, ok := s.Attributes["friendly_name"].(string); ok && name != "" {
		return name
	}
	return s.EntityID
}

// Domain returns the part of the entity id before the first dot.
func (s EntityState) Domain() string {
	for i := 0; i < len(s.EntityID); i++ {
		if s.EntityID[i] == '.' {
			return s.EntityID[:i]
		}
	}
	return ""
}

// StateContext identifies the event that produced a state.
type StateContext struct {
	ID       string  `json:"id"`
	ParentID *string `json:"parent_id"`
	UserID   *string `json:"user_id"`
}

// ServiceCallResponse is the raw acknowledgment of a service call. Its shape
// depends on the service and the Home Assistant version.
type ServiceCallResponse = json.RawMessage
