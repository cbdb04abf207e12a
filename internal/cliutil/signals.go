package cliutil

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
)

// WithSignals returns a context canceled by the first interrupt or
// termination signal. A second signal exits the process immediately with
// status 128+signal. stop releases the signal handler.
func WithSignals(parent context.Context) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(parent)

	sigs := []os.Signal{os.Interrupt}
	if runtime.GOOS != "windows" {
		sigs = append(sigs, syscall.SIGTERM, syscall.SIGHUP)
		// A closed stdout pipe must not kill a batch mid-run.
		signal.Ignore(syscall.SIGPIPE)
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, sigs...)

	done := make(chan struct{})
	var once sync.Once
	stop = func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(done)
			cancel()
		})
	}

	go func() {
		select {
		case s := <-sigCh:
			cancel()
			select {
			case <-sigCh:
				if ss, ok := s.(syscall.Signal); ok {
					os.Exit(128 + int(ss))
				}
				os.Exit(1)
			case <-done:
			}
		case <-done:
		}
	}()

	return ctx, stop
}
