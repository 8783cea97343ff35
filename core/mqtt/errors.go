package mqtt

import "errors"

var (
	// ErrPublishTimeout is returned when the broker does not confirm a publish in time.
	ErrPublishTimeout = errors.New("timeout waiting for publish confirmation")
	// ErrTLSConfig is returned when TLS is enabled without certificate files.
	ErrTLSConfig = errors.New("tls config requires client_cert, client_key and ca_bundle")
)
