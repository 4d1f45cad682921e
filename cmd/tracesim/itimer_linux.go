// itimer_linux.go — arms the kernel's profiling interval timer
//go:build linux

package main

import (
	"time"

	"golang.org/x/sys/unix"
)

// armProfTimer asks the kernel to deliver SIGPROF every interval of
// process CPU time, which is exactly the cadence a sampling profiler
// samples at.
func armProfTimer(interval time.Duration) error {
	tv := unix.NsecToTimeval(interval.Nanoseconds())
	it := unix.Itimerval{Interval: tv, Value: tv}
	_, err := unix.Setitimer(unix.ItimerProf, it)
	return err
}
