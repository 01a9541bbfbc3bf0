// SPDX-License-Identifier: MIT
package transport

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Source produces the next message for a Publisher. It runs on the
// publisher goroutine, never on the audio path.
type Source func() any
