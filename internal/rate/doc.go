// Package rate implements keyed fixed-window attempt counters on Redis.
//
// A counter starts on the first Hit for a key and decays after the window
// TTL elapses; unknown keys behave as zero-count. The limiter does pure
// bookkeeping: callers decide what a rejection means.
package rate
