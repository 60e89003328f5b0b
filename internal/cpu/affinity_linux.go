//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its OS thread and binds that thread to
// core workerID modulo the number of logical CPUs. The returned func undoes
// the lock; it must run on the same goroutine.
func Pin(workerID int) (release func(), err error) {
	runtime.LockOSThread()

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(coreFor(workerID))

	// pid 0 is the calling thread
	if err := unix.SchedSetaffinity(0, &mask); err != nil {
		runtime.UnlockOSThread()
		return func() {}, err
	}

	return runtime.UnlockOSThread, nil
}

// Supported reports whether Pin can bind threads to cores on this platform.
func Supported() bool { return true }
