package hatest

import (
	"encoding/json"
	"regexp"
	"sort"
	"sync"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// AutomationID derives the id the server assigns to a new automation:
// "automation." + alias lowercased with whitespace runs replaced by "_".
func AutomationID(alias string) string {
	lower := cases.Lower(language.Und).String(alias)
	return "automation." + whitespaceRun.ReplaceAllString(lower, "_")
}

// ServiceCall is one recorded service invocation.
type ServiceCall struct {
	Domain    string
	Service   string
	Data      map[string]any
	Transport string // "websocket" or "rest"
}

// store is the mock's entity and automation state.
type store struct {
	mu          sync.Mutex
	entities    map[string]map[string]any
	automations map[string]map[string]any
	calls       []ServiceCall
}

func newStore() *store {
	s := &store{
		entities:    make(map[string]map[string]any),
		automations: make(map[string]map[string]any),
	}
	s.seed()
	return s
}

func (s *store) seed() {
	s.entities["light.living_room"] = map[string]any{
		"entity_id": "light.living_room",
		"state":     "off",
		"attributes": map[string]any{
			"friendly_name":      "Living Room Light",
			"supported_features": 0,
		},
	}
	s.entities["switch.kitchen"] = map[string]any{
		"entity_id": "switch.kitchen",
		"state":     "on",
		"attributes": map[string]any{
			"friendly_name":      "Kitchen Switch",
			"supported_features": 0,
		},
	}
	s.entities["binary_sensor.motion"] = map[string]any{
		"entity_id": "binary_sensor.motion",
		"state":     "off",
		"attributes": map[string]any{
			"friendly_name": "Motion Sensor",
			"device_class":  "motion",
		},
	}
	s.entities["sun.sun"] = map[string]any{
		"entity_id": "sun.sun",
		"state":     "above_horizon",
		"attributes": map[string]any{
			"friendly_name": "Sun",
			"next_dawn":     "2023-03-12T05:30:00+00:00",
			"next_dusk":     "2023-03-12T18:30:00+00:00",
		},
	}

	s.putAutomation("automation.night_light", map[string]any{
		"alias":       "Night Light",
		"description": "Turn on lights at sunset",
		"trigger": []any{
			map[string]any{"platform": "sun", "event": "sunset", "offset": "+00:30:00"},
		},
		"condition": []any{},
		"action": []any{
			map[string]any{
				"service": "light.turn_on",
				"target":  map[string]any{"entity_id": "light.living_room"},
			},
		},
		"mode": "single",
	})
}

// putAutomation stores config under id and mirrors it as an entity.
// Callers hold mu, except seed.
func (s *store) putAutomation(id string, config map[string]any) {
	stored := make(map[string]any, len(config)+1)
	for k, v := range config {
		stored[k] = v
	}
	stored["id"] = id
	s.automations[id] = stored

	alias, _ := config["alias"].(string)
	if e, ok := s.entities[id]; ok {
		e["attributes"].(map[string]any)["friendly_name"] = alias
		return
	}
	s.entities[id] = map[string]any{
		"entity_id": id,
		"state":     "on",
		"attributes": map[string]any{
			"friendly_name": alias,
		},
	}
}

func (s *store) states() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.entities, "entity_id")
}

func (s *store) state(id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, false
	}
	return clone(e), true
}

func (s *store) listAutomations() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedValues(s.automations, "id")
}

// saveAutomation creates (id == "") or replaces an automation and returns its id.
func (s *store) saveAutomation(id string, config map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		alias, _ := config["alias"].(string)
		id = AutomationID(alias)
	}
	s.putAutomation(id, config)
	return id
}

func (s *store) deleteAutomation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.automations[id]; !ok {
		return false
	}
	delete(s.automations, id)
	delete(s.entities, id)
	return true
}

// callService records the call and applies the side effects the mock models.
func (s *store) callService(call ServiceCall) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, call)

	var changed []map[string]any
	for _, id := range entityIDs(call.Data["entity_id"]) {
		e, ok := s.entities[id]
		if !ok {
			continue
		}
		switch {
		case call.Domain == "light" && call.Service == "turn_on":
			e["state"] = "on"
			if b, ok := call.Data["brightness"]; ok {
				e["attributes"].(map[string]any)["brightness"] = b
			}
		case call.Domain == "light" && call.Service == "turn_off":
			e["state"] = "off"
		case call.Domain == "automation" && call.Service == "toggle":
			if e["state"] == "on" {
				e["state"] = "off"
			} else {
				e["state"] = "on"
			}
		case call.Domain == "automation" && call.Service == "trigger":
			e["attributes"].(map[string]any)["last_triggered"] = time.Now().UTC().Format(time.RFC3339)
		default:
			continue
		}
		changed = append(changed, clone(e))
	}
	return changed
}

func (s *store) serviceCalls() []ServiceCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ServiceCall, len(s.calls))
	copy(out, s.calls)
	return out
}

func entityIDs(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		ids := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids
	}
	return nil
}

// sortedValues returns deep copies ordered by key so output is stable.
func sortedValues(m map[string]map[string]any, key string) []map[string]any {
	out := make([]map[string]any, 0, len(m))
	for _, v := range m {
		out = append(out, clone(v))
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i][key].(string)
		b, _ := out[j][key].(string)
		return a < b
	})
	return out
}

func clone(v map[string]any) map[string]any {
	data, _ := json.Marshal(v)
	var out map[string]any
	json.Unmarshal(data, &out)
	return out
}
