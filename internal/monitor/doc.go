// Package monitor runs the polling loop: fetch the prover's latest order,
// notify on change, send heartbeats on a cadence and stop on cancellation.
//
// All loop state is owned by the goroutine running Run (or the caller of
// Tick). Other goroutines only read the Snapshot published after each tick.
package monitor
