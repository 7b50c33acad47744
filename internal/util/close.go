package util

import (
	"io"
	"log/slog"
)

// SafeCloseFunc returns a function that closes c and logs any close error.
// Intended for defer at call sites where the error is not actionable.
func SafeCloseFunc(c io.Closer, what string) func() {
	return func() {
		if err := c.Close(); err != nil {
			slog.Warn("close failed", "what", what, "error", err)
		}
	}
}
