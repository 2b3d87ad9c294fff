//go:build linux

package core

import (
	"time"

	"golang.org/x/sys/unix"
)

func readClockRes() (time.Duration, error) {
	var res, now unix.Timespec
	if err := unix.ClockGetres(unix.CLOCK_MONOTONIC, &res); err != nil {
		return 0, err
	}
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &now); err != nil {
		return 0, err
	}
	return time.Duration(res.Nano()), nil
}
