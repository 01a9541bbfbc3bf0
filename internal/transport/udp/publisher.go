// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"spectra/internal/analysis"
	applog "spectra/internal/log"
)

const headerSize = 4 + 8 + 4 + 2

var ErrMalformedPacket = errors.New("udp: malformed packet")

// UDPPublisher periodically fetches the latest spectrum, packs it into a
// binary packet and sends it with a UDPSender. It runs in a separate
// goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender   *UDPSender
	spectrum analysis.SpectrumProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32

	// Sized for the largest frame the provider can report.
	magBuffer    []float64
	f32Buffer    []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, spectrum analysis.SpectrumProvider) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if spectrum == nil {
		return nil, fmt.Errorf("UDPPublisher: spectrum provider cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	maxBins := spectrum.MaxBins()
	applog.Infof("UDPPublisher: Initializing (Interval: %s, Max Bins: %d)", interval, maxBins)

	return &UDPPublisher{
		sender:       sender,
		spectrum:     spectrum,
		interval:     interval,
		magBuffer:    make([]float64, maxBins),
		f32Buffer:    make([]float32, maxBins),
		packetBuffer: bytes.NewBuffer(make([]byte, 0, headerSize+4*maxBins)),
	}, nil
}

// Start begins the periodic publishing process. Calling Start while
// running is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Captured so the goroutine never reads p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it.
// Safe to call multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDPPublisher: Publisher goroutine finished after %d packets.", p.sequenceNum)
	return nil
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Frame Size        | uint32         | 4            | STFT frame of the data  |
| Magnitude Count   | uint16         | 2            | Number of floats (N)    |
| Magnitudes        | []float32      | N * 4        | Bin magnitudes          |
+-----------------------------------------------------------------------------+

The frame size travels with every packet because it changes whenever the
engine switches instance.
*/

// Packet is a decoded spectrum packet.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	FrameSize  uint32
	Magnitudes []float32
}

// buildAndSendPacket runs on each tick. Nothing is sent before the first
// frame was captured.
func (p *UDPPublisher) buildAndSendPacket() {
	n, err := p.spectrum.GetMagnitudesInto(p.magBuffer)
	if err != nil {
		applog.Errorf("UDPPublisher: Error getting magnitudes: %v", err)
		return
	}
	if n < 2 {
		return
	}

	mags := p.f32Buffer[:n]
	for i, v := range p.magBuffer[:n] {
		mags[i] = float32(v)
	}

	p.sequenceNum++
	p.packetBuffer.Reset()
	if err := writePacket(p.packetBuffer, p.sequenceNum, time.Now().UnixNano(), uint32(2*(n-1)), mags); err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	}
}

func writePacket(buf *bytes.Buffer, seq uint32, ts int64, frameSize uint32, mags []float32) error {
	err := binary.Write(buf, binary.BigEndian, seq)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, ts)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, frameSize)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(mags)))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, mags)
	}
	return err
}

// ParsePacket decodes a packet produced by the publisher.
func ParsePacket(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrMalformedPacket, len(data))
	}

	var pkt Packet
	pkt.Sequence = binary.BigEndian.Uint32(data[0:4])
	pkt.Timestamp = int64(binary.BigEndian.Uint64(data[4:12]))
	pkt.FrameSize = binary.BigEndian.Uint32(data[12:16])
	count := int(binary.BigEndian.Uint16(data[16:18]))

	if len(data) != headerSize+4*count {
		return Packet{}, fmt.Errorf("%w: %d magnitudes in %d bytes", ErrMalformedPacket, count, len(data))
	}
	pkt.Magnitudes = make([]float32, count)
	if err := binary.Read(bytes.NewReader(data[headerSize:]), binary.BigEndian, pkt.Magnitudes); err != nil {
		return Packet{}, err
	}
	return pkt, nil
}

// Close stops the publisher.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
