// Package monitoring is the logging seam for the motion analysis service.
// Every component logs through Logf with a bracketed prefix naming it,
// e.g. "[Fusion]" or "[Session]".
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf
// and may be swapped out with SetLogger to redirect or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger, which keeps noisy pipeline tests quiet.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
