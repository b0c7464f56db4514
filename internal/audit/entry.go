package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one tool invocation.
type Entry struct {
	ID           uuid.UUID
	RequestID    string
	Tool         string
	Action       string
	AutomationID string
	Success      bool
	Error        string
	Duration     time.Duration
	At           time.Time
}

// NewEntry starts an entry for tool, stamped with a fresh id and the current time.
func NewEntry(tool string) Entry {
	return Entry{
		ID:   uuid.New(),
		Tool: tool,
		At:   time.Now().UTC(),
	}
}

// Recorder accepts finished entries. Record must not block the caller.
type Recorder interface {
	Record(Entry)
}

// NopRecorder discards entries. Used when auditing is disabled.
type NopRecorder struct{}

// Record does nothing.
func (NopRecorder) Record(Entry) {}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(Entry)

// Record calls f(e).
func (f RecorderFunc) Record(e Entry) { f(e) }
