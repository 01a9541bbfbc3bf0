// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"spectra/cmd"
	applog "spectra/internal/log"
	"spectra/pkg/build"
)

// main is the entry point. The flow is:
//
// 1. Startup (cold path): build information, runtime settings, command
// line parsing and configuration loading.
//
// 2. Running (hot path): the audio callback drives the coordinator while
// the reset worker, publishers and control screen run beside it.
//
// 3. Shutdown (cold path): a signal or closing the control screen cancels
// the shared context, the stream stops and recordings are finalised.
func main() {
	if err := build.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}

	// One thread for the audio callback, one for control, UI and I/O.
	runtime.GOMAXPROCS(2)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx, os.Args[1:], os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		applog.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}
