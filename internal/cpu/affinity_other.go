//go:build !linux

package cpu

import "runtime"

// Pin locks the calling goroutine to its OS thread. Binding the thread to a
// core is not available on this platform.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()
	return runtime.UnlockOSThread, nil
}

// Supported reports whether Pin can bind threads to cores on this platform.
func Supported() bool { return false }
