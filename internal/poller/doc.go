// Package poller runs the per-symbol monitoring loop.
//
// Each cycle fetches the lookback window, buckets it, classifies the newest
// completed bucket and emits an alert on a breakout:
//
//	FETCH -> AGGREGATE -> CLASSIFY -> (EMIT) -> SLEEP
//
// A cycle never takes the loop down: panics are recovered, the cycle runs
// under its own timeout, and any failure counts as a cycle without a signal.
// The sleep starts after the cycle finishes, so the cadence drifts by the
// cycle's own duration. Consecutive failures stretch the sleep exponentially
// up to MaxBackoff.
//
// Loops share nothing mutable. Each owns its exchange client (from a
// SourceFactory), its cursor and its suppression state. Group runs one loop
// per symbol under an errgroup.
package poller
