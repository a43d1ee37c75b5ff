package internal

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// shutdownTasksTimeout bounds the orderly exit path. A wedged concentrator
// or an unflushable log file must not keep the process alive forever.
const shutdownTasksTimeout = 30 * time.Second

type ShutdownHandler interface {
	Shutdown()          // Triggers the orderly stop programmatically.
	ShuttingDown() bool // Quickly checks if an orderly stop is in progress.
}

type shutdownHandler struct {
	sigs         chan os.Signal
	shuttingDown chan bool // Indicates if an orderly stop is happening.
}

// NewShutdownHandler installs the process signal handler. SIGINT and SIGTERM
// run onShutdown once and arm a watchdog that forces the process down if the
// shutdown tasks do not finish within shutdownTasksTimeout. SIGQUIT calls
// onQuit instead and arms nothing, keeping that exit path free of cleanup.
func NewShutdownHandler(onShutdown func() error, onQuit func()) ShutdownHandler {
	sh := &shutdownHandler{
		sigs:         make(chan os.Signal, 1),
		shuttingDown: make(chan bool, 1),
	}

	go func() {
		signal.Notify(sh.sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
		// Kubernetes sends SIGTERM 30 seconds before shutting down the pod.
		var started bool
		for sig := range sh.sigs {
			if sig == syscall.SIGQUIT {
				zap.S().Infow("Received signal, exiting without cleanup", "signal", sig.String())
				if onQuit != nil {
					onQuit()
				}
				continue
			}
			if started {
				zap.S().Infow("Received signal during shutdown, ignoring", "signal", sig.String())
				continue
			}
			started = true
			sh.shuttingDown <- true
			zap.S().Infow("Received signal, shutting down", "signal", sig.String())
			go func(t time.Duration) {
				<-time.After(t)
				zap.S().Errorw("Shutdown tasks did not complete in time", "timeout", t)
				// Flush buffer
				_ = zap.S().Sync()
				os.Exit(1)
			}(shutdownTasksTimeout)
			if onShutdown != nil {
				if err := onShutdown(); err != nil {
					zap.S().Errorw("Error during shutdown", "error", err)
				}
			}
		}
	}()

	return sh
}

func (sh *shutdownHandler) ShuttingDown() bool {
	select {
	case <-sh.shuttingDown:
		// Put the value back, in case it's checked again later during shutdown.
		sh.shuttingDown <- true
		return true
	default:
		return false
	}
}

func (sh *shutdownHandler) Shutdown() {
	// Only send a SIGTERM signal if we are not already shutting down.
	if !sh.ShuttingDown() {
		sh.sigs <- syscall.SIGTERM
	}
}
