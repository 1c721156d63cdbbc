package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

// interruptSignals defines the default signals to catch in order to do a proper
// shutdown.
var interruptSignals = []os.Signal{os.Interrupt}

// shutdownListener returns a context whose done channel will be closed when OS
// signals such as SIGINT (Ctrl+C) are received.
func shutdownListener() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		interruptChannel := make(chan os.Signal, 1)
		signal.Notify(interruptChannel, interruptSignals...)

		select {
		case sig := <-interruptChannel:
			fmt.Fprintf(os.Stderr, "Received signal (%s). Shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(interruptChannel)
	}()
	return ctx, cancel
}
