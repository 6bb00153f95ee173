//go:build windows

package main

import "os"

// terminationSignals stop serve and chat.
var terminationSignals = []os.Signal{os.Interrupt}
