package amqp

import (
	"encoding/json"
	"time"
)

// ReloadMessage tells every server instance to re-read its data sources.
// Version is the import id when the reload follows an import, zero otherwise.
// Origin names the server instance that already reloaded before publishing;
// it is empty for messages from the import command.
type ReloadMessage struct {
	Version   int64     `json:"version"`
	Source    string    `json:"source"`
	Reason    string    `json:"reason,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewReloadMessage creates a reload message stamped with the current time.
func NewReloadMessage(version int64, source, reason string) *ReloadMessage {
	return &ReloadMessage{
		Version:   version,
		Source:    source,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReloadMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReloadMessageFromJSON creates a message from JSON bytes
func ReloadMessageFromJSON(data []byte) (*ReloadMessage, error) {
	var msg ReloadMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
