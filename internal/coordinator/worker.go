// SPDX-License-Identifier: MIT
package coordinator

import (
	"context"

	applog "spectra/internal/log"
)

// Start launches the reset worker. It resets retired instances whenever the
// audio goroutine signals that one finished draining, until ctx is done or
// Close is called. Calling Start while running is a no-op.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		applog.Warnf("Coordinator: reset worker already running")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

// Run is the blocking form of Start, for use under an errgroup. It returns
// nil once ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	c.run(ctx)
	return nil
}

func (c *Coordinator) run(ctx context.Context) {
	applog.Debugf("Coordinator: reset worker started")
	for {
		select {
		case <-ctx.Done():
			// Anything retired after the last trigger is still reset.
			c.ResetRetired()
			applog.Debugf("Coordinator: reset worker stopped")
			return
		case <-c.trigger:
			c.ResetRetired()
		}
	}
}

// Close stops the worker started by Start and waits for it to exit.
// Safe to call more than once.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	c.wg.Wait()
	return nil
}

// ResetRetired resets every instance waiting for a deferred reset and
// returns how many it reset. It is what the worker runs on each trigger
// and is safe to call from any goroutine except the audio one.
func (c *Coordinator) ResetRetired() int {
	n := 0
	for i, ch := range c.channels {
		for order, p := range ch.pool {
			if p != nil && p.ResetIfPending() {
				applog.Debugf("Coordinator: channel %d order %d reset", i, order)
				n++
			}
		}
	}
	if n > 0 {
		c.resets.Add(uint64(n))
	}
	return n
}
