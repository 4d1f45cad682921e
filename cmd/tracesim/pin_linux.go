// pin_linux.go — Linux binding for sched_setaffinity(2)
//go:build linux

package main

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCPU locks the calling goroutine to its OS thread and binds that
// thread to a single CPU, so the sampler's cache working set stays put.
func pinToCPU(cpu int) {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	// Best effort: a constrained cpuset (container, taskset) may reject
	// the requested CPU, and the sampler still works unpinned.
	_ = unix.SchedSetaffinity(0, &set)
}
