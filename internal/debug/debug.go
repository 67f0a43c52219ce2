// Package debug provides gated stderr tracing, the same shape the rest of
// this tree calls as debug.Logf throughout internal/rpc and internal/daemon.
package debug

import (
	"fmt"
	"os"
	"sync"
)

var (
	once    sync.Once
	enabled bool
)

func isEnabled() bool {
	once.Do(func() {
		v := os.Getenv("COORDCTL_DEBUG")
		enabled = v == "1" || v == "true"
	})
	return enabled
}

// Logf writes a trace line to stderr when COORDCTL_DEBUG is "1" or "true".
func Logf(format string, args ...interface{}) {
	if !isEnabled() {
		return
	}
	fmt.Fprintf(os.Stderr, "[debug] "+format+"\n", args...)
}
