//go:build windows

package main

import "os"

// Windows 仅支持 os.Interrupt。
var shutdownSignals = []os.Signal{os.Interrupt}
