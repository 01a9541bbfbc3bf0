// SPDX-License-Identifier: MIT
package cmd

import (
	"context"
	"fmt"
	"io"

	"spectra/internal/audio"
	"spectra/internal/config"
	"spectra/internal/tui"
)

// runProcess renders inPath to outPath offline.
func runProcess(ctx context.Context, out io.Writer, cfg *config.Config, o *options, inPath, outPath string) error {
	schedule, err := audio.ParseSchedule(o.schedule, cfg.Engine.OverlapOrder)
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	stats, err := audio.ProcessFile(ctx, inPath, outPath, p.coord, p.transform, schedule, o.blockSize)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s -> %s\n", inPath, outPath)
	fmt.Fprintf(out, "  %d channel(s), %d Hz, %d-bit\n", stats.Channels, stats.SampleRate, stats.BitDepth)
	fmt.Fprintf(out, "  %d frames in, %d frames out\n", stats.Frames, stats.Written)
	fmt.Fprintf(out, "  %d switch(es) requested, %d committed, final %s\n",
		stats.Requests, stats.Commits, p.coord.ActiveSettings())
	return nil
}

// runList prints the devices, or lets the user browse them and prints the
// flags for the chosen one.
func runList(out io.Writer, interactive bool) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if !interactive {
		return audio.ListDevices(out)
	}

	sel, err := tui.StartDeviceListUI()
	if err != nil || sel == nil {
		return err
	}
	fmt.Fprintf(out, "Selected %s. Run with:\n  %s\n", sel.Device.Name, sel.Flags())
	return nil
}
