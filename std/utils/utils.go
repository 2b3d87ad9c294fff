package utils

// PktschedVersion is stamped at build time.
var PktschedVersion string = "unknown"

// If is the ternary operator (eager evaluation)
func If[T any](cond bool, t, f T) T {
	if cond {
		return t
	}
	return f
}
