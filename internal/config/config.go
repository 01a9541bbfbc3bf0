// SPDX-License-Identifier: MIT
package config

import (
	"time"

	"spectra/internal/coordinator"
	"spectra/internal/effect"
)

// Core configuration constants that define the boundaries and defaults
// for the engine.
const (
	DefaultLogLevel = "info"

	// Engine
	DefaultChannels     = 2  // Stereo
	DefaultFrameOrder   = 11 // 2048-sample frames
	DefaultOverlapOrder = 3  // 8x overlap
	DefaultBypass       = false

	// Audio
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultSampleRate      = 44100
	DefaultFramesPerBuffer = 512
	DefaultLowLatency      = false

	// Recording
	DefaultOutputDir      = "./recordings"
	DefaultRecordBitDepth = 16

	// Transport
	DefaultUDPTargetAddress  = "127.0.0.1:9090"
	DefaultUDPSendInterval   = 33 * time.Millisecond // ~30Hz
	DefaultWebSocketAddress  = "127.0.0.1:8080"
	DefaultWebSocketInterval = 100 * time.Millisecond

	// Hardware and processing limits
	MinDeviceID     = -1     // -1 represents system default device
	MinSampleRate   = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate   = 192000 // Maximum supported sample rate (Hz)
	MinBufferFrames = 16
	MaxBufferFrames = 8192
	MaxChannels     = 8
)

// DefaultFrameOrders is the instance pool built when none is configured:
// 256 to 4096-sample frames.
var DefaultFrameOrders = []int{8, 9, 10, 11, 12}

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn", "error".
	Engine    EngineConfig    `yaml:"engine"`
	Effect    EffectConfig    `yaml:"effect"`
	Audio     AudioConfig     `yaml:"audio"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// EngineConfig sizes the STFT instance pool and picks the starting instance.
type EngineConfig struct {
	Channels     int   `yaml:"channels"`
	FrameOrders  []int `yaml:"frame_orders"`  // Supported frame orders; one instance per channel each.
	FrameOrder   int   `yaml:"frame_order"`   // Initial frame order, must be in FrameOrders.
	OverlapOrder int   `yaml:"overlap_order"` // log2 of the overlap factor.
	Bypass       bool  `yaml:"bypass"`
}

// EffectConfig holds the bit-crusher parameters.
type EffectConfig struct {
	BitDepth int `yaml:"bit_depth"`
	BitRate  int `yaml:"bit_rate"`
}

// AudioConfig holds settings related to audio input/output.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Hz.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback; settings changes apply at this granularity.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio.
}

// RecordingConfig holds settings for recording the processed output.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	BitDepth  int    `yaml:"bit_depth"` // 16, 24 or 32.
}

// TransportConfig holds settings for the monitoring transports.
type TransportConfig struct {
	UDPEnabled        bool          `yaml:"udp_enabled"`        // Send spectrum packets over UDP.
	UDPTargetAddress  string        `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090".
	UDPSendInterval   time.Duration `yaml:"udp_send_interval"`
	WebSocketEnabled  bool          `yaml:"websocket_enabled"` // Serve engine status as JSON over WebSocket.
	WebSocketAddress  string        `yaml:"websocket_address"`
	WebSocketInterval time.Duration `yaml:"websocket_interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Engine: EngineConfig{
			Channels:     DefaultChannels,
			FrameOrders:  append([]int(nil), DefaultFrameOrders...),
			FrameOrder:   DefaultFrameOrder,
			OverlapOrder: DefaultOverlapOrder,
			Bypass:       DefaultBypass,
		},
		Effect: EffectConfig{
			BitDepth: effect.DefaultBitDepth,
			BitRate:  effect.DefaultBitRate,
		},
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
		},
		Recording: RecordingConfig{
			Enabled:   false,
			OutputDir: DefaultOutputDir,
			BitDepth:  DefaultRecordBitDepth,
		},
		Transport: TransportConfig{
			UDPTargetAddress:  DefaultUDPTargetAddress,
			UDPSendInterval:   DefaultUDPSendInterval,
			WebSocketAddress:  DefaultWebSocketAddress,
			WebSocketInterval: DefaultWebSocketInterval,
		},
	}
}

// Coordinator returns the pool description for coordinator.New.
func (c *Config) Coordinator() coordinator.Config {
	return coordinator.Config{
		Channels:    c.Engine.Channels,
		FrameOrders: c.Engine.FrameOrders,
		Initial: coordinator.Settings{
			FrameOrder:   c.Engine.FrameOrder,
			OverlapOrder: c.Engine.OverlapOrder,
		},
	}
}
