package model

import (
	"encoding/json"
	"time"
)

// [MESSAGE] EXAMPLE PAYLOAD CONTRACT USED BY APPLICATIONS ON TOP OF THE ROUTER
// The router itself treats a request message as opaque.
type Message struct {
	Type         string
	CreationDate *time.Time
	Metadata     map[string]any
}

// NewMessage builds a message of the given type.
func NewMessage(typ string, metadata map[string]any) *Message {
	return &Message{Type: typ, Metadata: metadata}
}

// MarshalJSON omits empty type and creation date; metadata always renders, as {} when empty.
func (m *Message) MarshalJSON() ([]byte, error) {
	out := struct {
		Type         string         `json:"type,omitempty"`
		CreationDate string         `json:"creationDate,omitempty"`
		Metadata     map[string]any `json:"metadata"`
	}{
		Type:     m.Type,
		Metadata: m.Metadata,
	}
	if m.CreationDate != nil {
		out.CreationDate = m.CreationDate.UTC().Format(time.RFC3339)
	}
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	return json.Marshal(out)
}
