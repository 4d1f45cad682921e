//go:build !linux

package main

import (
	"errors"
	"time"
)

// armProfTimer has no portable implementation off Linux; the caller falls
// back to a plain ticker feeding the same sample ring.
func armProfTimer(time.Duration) error {
	return errors.New("profiling interval timer not supported on this platform")
}
