// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"spectra/internal/analysis"
	"spectra/internal/audio"
	"spectra/internal/config"
	"spectra/internal/coordinator"
	applog "spectra/internal/log"
	"spectra/internal/transport"
	"spectra/internal/transport/udp"
	"spectra/internal/tui"

	"golang.org/x/sync/errgroup"
)

// statusEvent is what the status publisher sends.
type statusEvent struct {
	Type string `json:"type"`
	coordinator.Status
	Engine         audio.Stats `json:"engine"`
	TotalLatencyMS float64     `json:"total_latency_ms"`
}

// runLive runs the duplex engine until ctx is done or the control screen
// is closed. Every long-running part sits in one errgroup so the first
// failure stops the rest.
func runLive(ctx context.Context, cfg *config.Config, o *options) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	engine, err := audio.NewEngine(cfg, p.coord, p.transform)
	if err != nil {
		return err
	}
	engine.Gate().SetThreshold(o.gateThreshold)
	if o.gate {
		engine.Gate().Enable()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// The reset worker must be running before the first switch.
	g.Go(func() error { return p.coord.Run(ctx) })
	g.Go(func() error { return engine.Run(ctx) })

	var recording string
	if cfg.Recording.Enabled {
		if err := os.MkdirAll(cfg.Recording.OutputDir, 0o755); err != nil {
			cancel()
			return errors.Join(err, g.Wait())
		}
		recording = audio.RecordingPath(cfg.Recording.OutputDir, time.Now())
		if err := engine.StartRecording(recording); err != nil {
			cancel()
			return errors.Join(err, g.Wait())
		}
	}

	status := func() any {
		return statusEvent{
			Type:           "status",
			Status:         p.coord.Snapshot(),
			Engine:         engine.Stats(),
			TotalLatencyMS: float64(engine.Latency()) / float64(time.Millisecond),
		}
	}

	if err := startMonitoring(ctx, g, cfg, p, status); err != nil {
		cancel()
		return errors.Join(err, g.Wait())
	}

	if o.tui {
		meter, err := analysis.NewBandEnergyProcessor(transport.NewLoggingTransport(), p.tap, nil)
		if err != nil {
			cancel()
			return errors.Join(err, g.Wait())
		}
		g.Go(func() error {
			// Closing the screen ends the run.
			defer cancel()
			return tui.StartControlUI(ctx, tui.ControlOptions{
				Engine:     p.coord,
				Effect:     p.crusher,
				Gate:       engine.Gate(),
				Meter:      meter,
				SampleRate: cfg.Audio.SampleRate,
			})
		})
	} else {
		applog.Infof("Running headless, latency %v. Press Ctrl+C to stop.", engine.Latency())
	}

	err = g.Wait()
	if recording != "" {
		fmt.Printf("\nRecording saved to: %s\n", recording)
	}
	return err
}

// startMonitoring adds the configured publishers to g. With no network
// transport enabled and debug logging on, status goes to the log instead.
func startMonitoring(ctx context.Context, g *errgroup.Group, cfg *config.Config, p *pipeline, status transport.Source) error {
	tc := cfg.Transport

	if tc.WebSocketEnabled {
		ws, err := transport.NewWebSocketTransport(tc.WebSocketAddress)
		if err != nil {
			return err
		}
		bands, err := analysis.NewBandEnergyProcessor(ws, p.tap, nil)
		if err != nil {
			ws.Close()
			return err
		}
		if err := publish(ctx, g, tc.WebSocketInterval, ws, status, bands.Event); err != nil {
			return err
		}
		applog.Infof("Monitoring: WebSocket status on ws://%s/ws", ws.Addr())
	} else if applog.Enabled(applog.LevelDebug) {
		if err := publish(ctx, g, tc.WebSocketInterval, transport.NewLoggingTransport(), status); err != nil {
			return err
		}
	}

	if tc.UDPEnabled {
		sender, err := udp.NewUDPSender(tc.UDPTargetAddress)
		if err != nil {
			return err
		}
		pub, err := udp.NewUDPPublisher(tc.UDPSendInterval, sender, p.tap)
		if err != nil {
			sender.Close()
			return err
		}
		pub.Start()
		g.Go(func() error {
			<-ctx.Done()
			return errors.Join(pub.Stop(), sender.Close())
		})
	}
	return nil
}

// publish runs a Publisher over t in g and closes t when ctx is done.
func publish(ctx context.Context, g *errgroup.Group, interval time.Duration, t transport.Transport, sources ...transport.Source) error {
	pub, err := transport.NewPublisher(interval, t, sources...)
	if err != nil {
		t.Close()
		return err
	}
	g.Go(func() error {
		err := pub.Run(ctx)
		return errors.Join(err, t.Close())
	})
	return nil
}
