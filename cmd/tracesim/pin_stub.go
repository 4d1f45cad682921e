//go:build !linux

package main

import "runtime"

// pinToCPU on platforms without sched_setaffinity still locks the
// goroutine to one OS thread; CPU placement is left to the scheduler.
func pinToCPU(cpu int) {
	_ = cpu
	runtime.LockOSThread()
}
