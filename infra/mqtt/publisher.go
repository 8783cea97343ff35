package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"

	coremqtt "github.com/kilianp07/truckhub/core/mqtt"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// Message is one payload captured by MemoryPublisher.
type Message struct {
	Topic   string
	Payload []byte
}

// MemoryPublisher keeps published messages in memory. It is used when no
// broker is configured and in tests.
type MemoryPublisher struct {
	mu       sync.Mutex
	Messages []Message
	// FailTopics makes Publish fail for the listed relative topics.
	FailTopics map[string]bool
}

// NewMemoryPublisher creates an empty MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{FailTopics: make(map[string]bool)}
}

func (m *MemoryPublisher) Publish(topic string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTopics[topic] {
		return fmt.Errorf("publish to %s failed", topic)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.Messages = append(m.Messages, Message{Topic: topic, Payload: b})
	return nil
}

// Snapshot returns a copy of the captured messages.
func (m *MemoryPublisher) Snapshot() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.Messages...)
}

func (m *MemoryPublisher) Disconnect() {}
