package mqtt

// Publisher sends JSON-encoded messages to topics below a configured prefix.
type Publisher interface {
	// Publish encodes v as JSON and sends it to <prefix>/<topic>.
	Publish(topic string, v any) error
	// Disconnect flushes pending messages and closes the connection.
	Disconnect()
}
