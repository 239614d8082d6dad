// Package app holds the long-running service processes built on the engine
// packages below it: the HTTP API wiring and the shared process plumbing.
package app

import (
	"os"
	"runtime"
	"time"

	"troczen.dev/pkg/utils/context"
	"troczen.dev/pkg/utils/log"
)

// MonitorResources periodically logs resource usage metrics such as the number
// of active goroutines and CGO calls at 15-minute intervals, and exits when the
// provided context signals cancellation.
func MonitorResources(c context.T) {
	tick := time.NewTicker(time.Minute * 15)
	log.I.Ln("running process", os.Args[0], os.Getpid())
	for {
		select {
		case <-c.Done():
			log.D.Ln("shutting down resource monitor")
			return
		case <-tick.C:
			log.D.Ln(
				"# goroutines", runtime.NumGoroutine(),
				"# cgo calls", runtime.NumCgoCall(),
			)
		}
	}
}
