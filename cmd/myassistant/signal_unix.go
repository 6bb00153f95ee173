//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals stop serve and chat. SIGTERM comes from process managers.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
