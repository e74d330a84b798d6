// Package pace implements a jittered periodic task driver.
//
// # Overview
//
// A Pacer invokes a caller-supplied Action at a fixed nominal period,
// perturbing each invocation's start by a bounded uniform random jitter.
// While running it measures how closely actual execution tracks the
// intended schedule: action execution durations are accumulated into a
// Collector, and ticks whose jittered target time had already passed are
// counted as missed intervals.
//
// # Scheduling
//
// The schedule advances by adding the fixed nominal period to the previous
// interval start, never by re-reading the clock. A slow action therefore
// delays at most its own tick; the cumulative schedule position never
// drifts relative to the run's first instant.
//
// # Modes
//
// RunCount blocks the caller for a fixed number of iterations. Start/Stop
// runs the same loop on a background goroutine until stopped; Stop is
// cooperative (it never interrupts a sleep or an in-flight action) and
// blocks until the worker exits.
//
// A Pacer drives exactly one action and at most one run at a time. State
// accessors (Runtime, Missed, Iterations, Durations) are valid once a run
// has completed.
package pace
