// Package interrupt runs registered cleanup handlers when the process
// receives an interrupt signal. Handlers run in reverse registration order,
// and the package never exits the process itself: main decides the exit code
// after its context unwinds.
package interrupt

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"troczen.dev/pkg/utils/log"
)

var (
	mx       sync.Mutex
	handlers []func()
	once     sync.Once

	// HandlersDone is closed after all registered handlers have run following
	// the first interrupt signal.
	HandlersDone = make(chan struct{})
)

// AddHandler registers a function to run when an interrupt signal arrives.
// The first registration starts the signal listener.
func AddHandler(handler func()) {
	mx.Lock()
	handlers = append(handlers, handler)
	mx.Unlock()
	once.Do(func() { go listen() })
}

func listen() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	sig := <-sigs
	log.I.F("received %v, shutting down", sig)
	mx.Lock()
	hs := make([]func(), len(handlers))
	copy(hs, handlers)
	mx.Unlock()
	for i := len(hs) - 1; i >= 0; i-- {
		hs[i]()
	}
	close(HandlersDone)
	// a second signal forces immediate exit
	<-sigs
	log.W.Ln("second interrupt, exiting now")
	os.Exit(1)
}
