// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"time"

	applog "spectra/internal/log"
)

// Publisher polls its sources on a ticker and sends every non-nil result
// to one Transport.
type Publisher struct {
	transport Transport
	interval  time.Duration
	sources   []Source
}

// NewPublisher creates a Publisher. If the interval is invalid (<= 0) it
// defaults to 100ms.
func NewPublisher(interval time.Duration, t Transport, sources ...Source) (*Publisher, error) {
	if t == nil {
		return nil, errors.New("transport: publisher needs a transport")
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
		applog.Warnf("Publisher: Invalid interval provided, defaulting to %s", interval)
	}
	return &Publisher{transport: t, interval: interval, sources: sources}, nil
}

// Run publishes until ctx is done. It always returns nil so it can sit in
// an errgroup next to the audio engine.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	applog.Debugf("Publisher: started (Interval: %s, Sources: %d)", p.interval, len(p.sources))
	for {
		select {
		case <-ctx.Done():
			applog.Debugf("Publisher: stopped")
			return nil
		case <-ticker.C:
			p.PublishOnce()
		}
	}
}

// PublishOnce polls every source once.
func (p *Publisher) PublishOnce() {
	for _, src := range p.sources {
		msg := src()
		if msg == nil {
			continue
		}
		if err := p.transport.Send(msg); err != nil {
			applog.Warnf("Publisher: send failed: %v", err)
		}
	}
}
