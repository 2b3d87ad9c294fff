package core

import "time"

// StartTimestamp is the time the scheduler was started.
var StartTimestamp time.Time
