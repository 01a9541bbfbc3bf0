// SPDX-License-Identifier: MIT
/*
Package coordinator switches live between pre-allocated STFT instances.

The pool holds one stft.Processor per channel per supported frame order,
built once by New. Settings changes are published by the control side
with Request and picked up by the audio side at the next block boundary:

  - A frame order change commits on every channel at once, and only when
    each channel's target instance is Idle and no channel still drains a
    previous one. Otherwise it stays pending and is retried next block.
  - On commit the previous instance is retired: it is no longer fed, its
    output FIFO drains into the channel for one frame, and it is then
    handed to the reset worker.
  - An overlap-only change is applied in place to the active instances.

Thread Safety:
  - ProcessBlock, ProcessSample and ApplyPending belong to one audio goroutine
  - Request, SetBypass, Phase, Snapshot and friends may be called from any
    goroutine
  - The reset worker only touches instances it claimed from the
    PendingReset state, so ResetRetired may also run beside it
*/
package coordinator

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	applog "spectra/internal/log"
	"spectra/internal/stft"
)

var (
	ErrUnsupportedFrameOrder = errors.New("coordinator: unsupported frame order")
	ErrInvalidConfig         = errors.New("coordinator: invalid config")
)

// Settings selects the active instance (FrameOrder) and its overlap.
type Settings struct {
	FrameOrder   int `json:"frame_order" yaml:"frame_order"`
	OverlapOrder int `json:"overlap_order" yaml:"overlap_order"`
}

func (s Settings) String() string {
	return fmt.Sprintf("frame=%d overlap=%d", 1<<s.FrameOrder, 1<<s.OverlapOrder)
}

func (s Settings) pack() uint64 {
	return uint64(uint32(s.FrameOrder))<<32 | uint64(uint32(s.OverlapOrder))
}

func unpack(v uint64) Settings {
	return Settings{FrameOrder: int(int32(v >> 32)), OverlapOrder: int(int32(v))}
}

// Config describes the pool.
type Config struct {
	Channels    int
	FrameOrders []int
	Initial     Settings
}

// Validate checks the pool description without allocating instances.
func (c Config) Validate() error {
	if c.Channels < 1 {
		return fmt.Errorf("%w: need at least one channel, got %d", ErrInvalidConfig, c.Channels)
	}
	if len(c.FrameOrders) == 0 {
		return fmt.Errorf("%w: empty frame order list", ErrInvalidConfig)
	}
	for _, order := range c.FrameOrders {
		if err := stft.ValidateOrders(order, stft.MinOverlapOrder); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if !slices.Contains(c.FrameOrders, c.Initial.FrameOrder) {
		return fmt.Errorf("%w: initial frame order %d not in %v",
			ErrUnsupportedFrameOrder, c.Initial.FrameOrder, c.FrameOrders)
	}
	return stft.ValidateOrders(c.Initial.FrameOrder, c.Initial.OverlapOrder)
}

// channel owns one exclusive subtree of the pool.
type channel struct {
	pool     [stft.MaxFrameOrder + 1]*stft.Processor
	active   *stft.Processor
	retiring *stft.Processor
	drain    int // Samples left to drain from retiring.

	// Input history, sized for the largest instance, used to prime a
	// target before it is switched in.
	history []float64
	hpos    int
}

// Coordinator drives a pool of STFT instances for a fixed number of
// channels and switches between them without interrupting the stream.
type Coordinator struct {
	orders   []int
	channels []*channel

	desired  atomic.Pointer[Settings]
	current  Settings      // Audio goroutine only.
	active   atomic.Uint64 // Packed copy of current for readers.
	pending  atomic.Bool
	bypassed atomic.Bool

	commits   atomic.Uint64
	deferrals atomic.Uint64
	resets    atomic.Uint64

	trigger chan struct{}

	mu     sync.Mutex // Protects cancel during Start/Close.
	cancel func()
	wg     sync.WaitGroup
}

// New builds the whole instance pool up front and activates the initial
// frame order on every channel.
func New(cfg Config) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	orders := slices.Clone(cfg.FrameOrders)
	slices.Sort(orders)
	orders = slices.Compact(orders)
	maxSize := 1 << orders[len(orders)-1]

	c := &Coordinator{
		orders:   orders,
		channels: make([]*channel, cfg.Channels),
		trigger:  make(chan struct{}, 1),
	}

	for i := range c.channels {
		ch := &channel{history: make([]float64, maxSize)}
		for _, order := range orders {
			p, err := stft.New(order, min(cfg.Initial.OverlapOrder, order-1))
			if err != nil {
				return nil, fmt.Errorf("channel %d order %d: %w", i, order, err)
			}
			ch.pool[order] = p
		}
		ch.active = ch.pool[cfg.Initial.FrameOrder]
		if err := ch.active.HandleConfigurationChange(cfg.Initial.OverlapOrder); err != nil {
			return nil, err
		}
		ch.active.SetInUse(true)
		c.channels[i] = ch
	}

	initial := cfg.Initial
	c.current = initial
	c.active.Store(initial.pack())
	c.desired.Store(&initial)

	applog.Infof("Coordinator: %d channel(s), frame orders %v, initial %s", cfg.Channels, orders, initial)
	return c, nil
}

// Request publishes new settings for the audio goroutine to pick up. It
// never blocks; an unsupported frame order or an overlap that does not fit
// the frame is rejected.
func (c *Coordinator) Request(s Settings) error {
	if !c.Supports(s.FrameOrder) {
		return fmt.Errorf("%w: %d not in %v", ErrUnsupportedFrameOrder, s.FrameOrder, c.orders)
	}
	if err := stft.ValidateOrders(s.FrameOrder, s.OverlapOrder); err != nil {
		return err
	}

	prev := c.desired.Swap(&s)
	if prev == nil || *prev != s {
		applog.Debugf("Coordinator: requested %s", s)
	}
	return nil
}

// Supports reports whether order has instances in the pool.
func (c *Coordinator) Supports(order int) bool {
	_, ok := slices.BinarySearch(c.orders, order)
	return ok
}

// FrameOrders returns the supported frame orders in ascending order.
func (c *Coordinator) FrameOrders() []int { return slices.Clone(c.orders) }

// Channels returns the number of channels.
func (c *Coordinator) Channels() int { return len(c.channels) }

// SetBypass toggles spectral processing. Bypassed frames are still
// windowed and overlap-added so latency is unchanged.
func (c *Coordinator) SetBypass(bypassed bool) { c.bypassed.Store(bypassed) }

// Bypassed reports the bypass flag.
func (c *Coordinator) Bypassed() bool { return c.bypassed.Load() }

// ActiveSettings returns the settings the audio goroutine is running.
func (c *Coordinator) ActiveSettings() Settings { return unpack(c.active.Load()) }

// DesiredSettings returns the most recent accepted request.
func (c *Coordinator) DesiredSettings() Settings { return *c.desired.Load() }

// LatencyInSamples returns the latency of the active instances.
func (c *Coordinator) LatencyInSamples() int { return 1 << c.ActiveSettings().FrameOrder }

// MaxLatencyInSamples returns the latency of the largest instance, enough
// to flush any configuration the pool can switch to.
func (c *Coordinator) MaxLatencyInSamples() int { return 1 << c.orders[len(c.orders)-1] }

// Instance returns the pool entry for channel ch and order, or nil.
func (c *Coordinator) Instance(ch, order int) *stft.Processor {
	if ch < 0 || ch >= len(c.channels) || order < 0 || order > stft.MaxFrameOrder {
		return nil
	}
	return c.channels[ch].pool[order]
}

// ApplyPending applies the latest request at a block boundary. It is
// called by ProcessBlock and must only be called from the audio goroutine.
func (c *Coordinator) ApplyPending() {
	want := *c.desired.Load()
	if want == c.current {
		c.pending.Store(false)
		return
	}

	if want.FrameOrder == c.current.FrameOrder {
		for _, ch := range c.channels {
			// Validated by Request; cannot fail.
			_ = ch.active.HandleConfigurationChange(want.OverlapOrder)
		}
		c.publish(want)
		return
	}

	if !c.canSwitch(want.FrameOrder) {
		if !c.pending.Swap(true) {
			c.deferrals.Add(1)
		}
		return
	}

	for _, ch := range c.channels {
		target := ch.pool[want.FrameOrder]
		_ = target.HandleConfigurationChange(want.OverlapOrder)
		ch.prime(target)
		target.SetInUse(true)

		ch.active.Retire()
		ch.retiring = ch.active
		ch.drain = ch.retiring.FrameSize()
		ch.active = target
	}
	c.commits.Add(1)
	c.publish(want)
}

func (c *Coordinator) canSwitch(order int) bool {
	for _, ch := range c.channels {
		if ch.retiring != nil || ch.pool[order].State() != stft.Idle {
			return false
		}
	}
	return true
}

func (c *Coordinator) publish(s Settings) {
	c.current = s
	c.active.Store(s.pack())
	c.pending.Store(false)
}

// ProcessBlock applies pending settings, then runs every channel buffer in
// place through its active instance. Extra buffers beyond the configured
// channel count are left untouched. Channels without a buffer are not fed,
// but an instance they are retiring still drains for the block length so
// it cannot hold up later switches.
func (c *Coordinator) ProcessBlock(channels [][]float64, fn stft.SpectralTransform) {
	c.ApplyPending()

	bypassed := c.bypassed.Load()
	retired := false
	frames := 0
	for i, ch := range c.channels {
		if i >= len(channels) {
			retired = ch.skip(frames) || retired
			continue
		}
		buf := channels[i]
		frames = max(frames, len(buf))
		for j, x := range buf {
			var done bool
			buf[j], done = ch.process(x, bypassed, fn)
			retired = retired || done
		}
	}
	if retired {
		c.notify()
	}
}

// ProcessSample runs one sample of channel ch. It does not apply pending
// settings; callers driving the engine sample by sample call ApplyPending
// at their own block boundaries.
func (c *Coordinator) ProcessSample(ch int, x float64, fn stft.SpectralTransform) float64 {
	y, done := c.channels[ch].process(x, c.bypassed.Load(), fn)
	if done {
		c.notify()
	}
	return y
}

func (ch *channel) process(x float64, bypassed bool, fn stft.SpectralTransform) (float64, bool) {
	ch.history[ch.hpos] = x
	ch.hpos++
	if ch.hpos == len(ch.history) {
		ch.hpos = 0
	}

	y := ch.active.ProcessSample(x, bypassed, fn)
	if ch.retiring == nil {
		return y, false
	}

	y += ch.retiring.DrainSample()
	ch.drain--
	return y, ch.finishDrain()
}

// skip drains up to n samples of the retiring instance and discards them.
func (ch *channel) skip(n int) bool {
	if ch.retiring == nil {
		return false
	}
	n = min(n, ch.drain)
	for range n {
		ch.retiring.DrainSample()
	}
	ch.drain -= n
	return ch.finishDrain()
}

// finishDrain hands the retiring instance to the reset worker once it has
// drained completely.
func (ch *channel) finishDrain() bool {
	if ch.drain > 0 {
		return false
	}
	ch.retiring.PrepareForReset()
	ch.retiring = nil
	return true
}

func (ch *channel) prime(target *stft.Processor) {
	target.Prime(ch.history[ch.hpos:], ch.history[:ch.hpos])
}

// notify wakes the reset worker. Repeated triggers before it runs coalesce.
func (c *Coordinator) notify() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// Phase reports where channel ch is in the switch cycle.
func (c *Coordinator) Phase(ch int) Phase {
	if c.pending.Load() {
		return SwitchPending
	}
	for _, p := range c.channels[ch].pool {
		if p == nil {
			continue
		}
		if s := p.State(); s == stft.Retiring || s == stft.PendingReset || s == stft.Resetting {
			return SwitchCommitted
		}
	}
	return Stable
}

// Prepare resets the whole pool and reactivates the current instances. It
// is for the cold path only: the audio goroutine must not be running.
func (c *Coordinator) Prepare() {
	for _, ch := range c.channels {
		for _, p := range ch.pool {
			if p != nil {
				p.Reset()
			}
		}
		ch.retiring = nil
		ch.drain = 0
		clear(ch.history)
		ch.hpos = 0
		ch.active.SetInUse(true)
	}
	c.pending.Store(false)
}
