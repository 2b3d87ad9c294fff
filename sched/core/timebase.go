package core

import (
	"os"
	"sync"
	"time"
)

// timebase anchors all duration conversions of the scheduler.
type timebase struct {
	origin     time.Time
	resolution time.Duration
}

var (
	tb     timebase
	tbOnce sync.Once
)

// InitTimebase performs the one-time clock setup. The process exits if the
// monotonic clock is unavailable.
func InitTimebase() {
	tbOnce.Do(func() {
		res, err := readClockRes()
		if err != nil {
			Log.Fatal(nil, "Monotonic clock unavailable", "err", err)
			os.Exit(2)
		}
		tb = timebase{origin: time.Now(), resolution: res}
		Log.Debug(nil, "Timebase initialized", "resolution", res)
	})
}

// Now returns monotonic nanoseconds since InitTimebase.
func Now() uint64 {
	if tb.origin.IsZero() {
		panic("[BUG] timebase used before InitTimebase")
	}
	return uint64(time.Since(tb.origin))
}

// Resolution returns the clock resolution reported at init.
func Resolution() time.Duration {
	return tb.resolution
}

// ToTicks converts a duration to timebase ticks, rounding to the resolution.
func ToTicks(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	if r := tb.resolution; r > 1 {
		d = d.Round(r)
	}
	return uint64(d)
}

// ToDuration converts timebase ticks back to a duration.
func ToDuration(ticks uint64) time.Duration {
	return time.Duration(ticks)
}
