// SPDX-License-Identifier: MIT
package transport

import (
	"encoding/json"

	applog "spectra/internal/log"
)

// LoggingTransport implements the Transport interface by logging data at
// debug level. It stands in when no network transport is configured.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data as JSON. Marshalling is skipped entirely
// unless debug logging is on.
func (lt *LoggingTransport) Send(data any) error {
	if !applog.Enabled(applog.LevelDebug) {
		return nil
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		applog.Debugf("LOG_TRANSPORT: Received (%T): %+v (JSON marshal error: %v)", data, data, err)
		return nil
	}
	applog.Debugf("LOG_TRANSPORT: %s", jsonData)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
