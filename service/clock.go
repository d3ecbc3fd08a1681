package service

import "time"

var epoch = time.Now()

// Now is the process-wide monotonic clock, in nanoseconds, that message
// timestamps are expressed in. Latency is only meaningful for messages
// stamped by the same process.
func Now() uint64 {
	return uint64(time.Since(epoch))
}
