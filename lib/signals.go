package lib

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// ServeSignals returns a context that is canceled on the first SIGTERM or
// SIGINT so in-flight requests can wind down. A second SIGINT exits the
// process immediately.
func ServeSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC,
		syscall.SIGTERM, // graceful shutdown
		syscall.SIGINT,  // graceful-then-fast shutdown
	)

	go func() {
		defer signal.Stop(sigC)
		done := ctx.Done()
		var alreadyInterrupted bool
		for {
			select {
			case <-done:
				return
			case sig := <-sigC:
				if sig == syscall.SIGTERM {
					log.Infof("Attempting graceful shutdown...")
					cancel()
					return
				}
				if alreadyInterrupted {
					log.Infof("Interrupted twice, exiting")
					os.Exit(130)
				}
				log.Infof("Attempting graceful shutdown, interrupt again to exit")
				alreadyInterrupted = true
				// Keep listening for the second interrupt.
				done = nil
				cancel()
			}
		}
	}()

	return ctx, cancel
}
