// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"spectra/internal/effect"
	applog "spectra/internal/log"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Candidate locations searched when LoadConfig is given an empty path.
var defaultPaths = []string{"spectra.yaml", "config.yaml"}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations. If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range defaultPaths {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		applog.Debugf("configuration: loaded %s", path)
	}

	// Environment variables win over the file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section. It is run by LoadConfig and again by the
// CLI after flags have been applied.
func (c *Config) Validate() error {
	if err := c.Coordinator().Validate(); err != nil {
		return err
	}
	if c.Engine.Channels > MaxChannels {
		return fmt.Errorf("%w: engine.channels %d exceeds %d", ErrInvalidConfig, c.Engine.Channels, MaxChannels)
	}

	if _, err := effect.NewBitCrusher(c.Effect.BitDepth, c.Effect.BitRate); err != nil {
		return err
	}

	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: audio.sample_rate %.0f not in [%d, %d]",
			ErrInvalidConfig, c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.FramesPerBuffer < MinBufferFrames || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("%w: audio.frames_per_buffer %d not in [%d, %d]",
			ErrInvalidConfig, c.Audio.FramesPerBuffer, MinBufferFrames, MaxBufferFrames)
	}
	if c.Audio.InputDevice < MinDeviceID || c.Audio.OutputDevice < MinDeviceID {
		return fmt.Errorf("%w: device ids must be >= %d", ErrInvalidConfig, MinDeviceID)
	}

	if c.Recording.Enabled {
		switch c.Recording.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("%w: recording.bit_depth %d must be 16, 24 or 32", ErrInvalidConfig, c.Recording.BitDepth)
		}
		if c.Recording.OutputDir == "" {
			return fmt.Errorf("%w: recording.output_dir must be set when recording is enabled", ErrInvalidConfig)
		}
	}

	if c.Transport.UDPEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.UDPTargetAddress); err != nil {
			return fmt.Errorf("%w: transport.udp_target_address %q: %w", ErrInvalidConfig, c.Transport.UDPTargetAddress, err)
		}
		if c.Transport.UDPSendInterval <= 0 {
			return fmt.Errorf("%w: transport.udp_send_interval must be positive", ErrInvalidConfig)
		}
	}
	if c.Transport.WebSocketEnabled {
		if _, _, err := net.SplitHostPort(c.Transport.WebSocketAddress); err != nil {
			return fmt.Errorf("%w: transport.websocket_address %q: %w", ErrInvalidConfig, c.Transport.WebSocketAddress, err)
		}
		if c.Transport.WebSocketInterval <= 0 {
			return fmt.Errorf("%w: transport.websocket_interval must be positive", ErrInvalidConfig)
		}
	}
	return nil
}

// applyEnvOverrides reads ENV_* variables. Values that fail to parse are
// logged and ignored.
func (c *Config) applyEnvOverrides() {
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
		applog.Infof("configuration: Overriding log_level from env: %s", val)
	}

	// ENV_{...} engine overrides.
	envInt("ENV_FRAME_ORDER", "engine.frame_order", &c.Engine.FrameOrder)
	envInt("ENV_OVERLAP_ORDER", "engine.overlap_order", &c.Engine.OverlapOrder)
	envBool("ENV_BYPASS", "engine.bypass", &c.Engine.Bypass)
	envInt("ENV_BIT_DEPTH", "effect.bit_depth", &c.Effect.BitDepth)
	envInt("ENV_BIT_RATE", "effect.bit_rate", &c.Effect.BitRate)

	// ENV_UDP_{...}
	envBool("ENV_UDP_ENABLED", "transport.udp_enabled", &c.Transport.UDPEnabled)
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Transport.UDPTargetAddress = val
		applog.Infof("configuration: Overriding transport.udp_target_address from env: %s", val)
	}
	envDuration("ENV_UDP_SEND_INTERVAL", "transport.udp_send_interval", &c.Transport.UDPSendInterval)

	// ENV_WS_{...}
	envBool("ENV_WS_ENABLED", "transport.websocket_enabled", &c.Transport.WebSocketEnabled)
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		c.Transport.WebSocketAddress = val
		applog.Infof("configuration: Overriding transport.websocket_address from env: %s", val)
	}
}

func envInt(key, field string, dst *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		applog.Warnf("configuration: Ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = n
	applog.Infof("configuration: Overriding %s from env: %d", field, n)
}

func envBool(key, field string, dst *bool) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		applog.Warnf("configuration: Ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = b
	applog.Infof("configuration: Overriding %s from env: %v", field, b)
}

func envDuration(key, field string, dst *time.Duration) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		applog.Warnf("configuration: Ignoring %s=%q: %v", key, val, err)
		return
	}
	*dst = d
	applog.Infof("configuration: Overriding %s from env: %s", field, d)
}
