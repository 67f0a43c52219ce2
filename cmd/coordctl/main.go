// Command coordctl is the CLI surface for the decompilation coordination
// subsystem: extract/scratch/claim/worktree/stub/commit/workflow/state
// subcommands, each dispatched either to a running daemon
// over its Unix socket or, when none is reachable, to an in-process
// equivalent so every command behaves identically either way. Structured
// the way BeadsLog's cmd/bd lays out one cobra command per file, registered
// onto a shared rootCmd from each file's init.
package main

import (
	"fmt"
	"os"

	"github.com/doldecomp/agentcoord/internal/errs"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		if coordErr, ok := err.(*errs.CoordError); ok {
			fmt.Fprintln(os.Stderr, "coordctl: "+coordErr.Error())
			os.Exit(coordErr.ExitCode())
		}
		fmt.Fprintln(os.Stderr, "coordctl:", err)
		os.Exit(1)
	}
}
