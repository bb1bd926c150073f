// Package bus delivers state-change events from the turn controller to the
// front-ends that render it.
package bus

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// EventStateChanged carries a JSON-encoded controller state snapshot.
	EventStateChanged EventType = "state.changed"
)

// Event represents a bus event.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Source    string          `json:"source"`
	Version   uint64          `json:"version"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEvent creates a new event.
func NewEvent(eventType EventType, source string, version uint64, data any) (*Event, error) {
	var dataBytes json.RawMessage
	if data != nil {
		var err error
		dataBytes, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}

	return &Event{
		ID:        generateEventID(),
		Type:      eventType,
		Source:    source,
		Version:   version,
		Timestamp: time.Now(),
		Data:      dataBytes,
	}, nil
}

// ParseData unmarshals the event data into the given struct.
func (e *Event) ParseData(v any) error {
	if e.Data == nil {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

var eventCounter atomic.Int64

func generateEventID() string {
	n := eventCounter.Add(1)
	return fmt.Sprintf("evt-%d-%d", time.Now().UnixMilli(), n)
}
