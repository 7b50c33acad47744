//go:build windows

package util

import "os"

// ShutdownSignals returns the signals to listen for graceful shutdown.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// GracefulSignal attempts graceful process termination.
// On Windows, SIGINT delivery to child processes is not supported; the
// capture process is torn down by closing its stdout pipe instead.
func GracefulSignal(p *os.Process) error {
	return nil
}
