// Package probe runs named jitter measurements on top of pkg/pace.
//
// A probe binds a pacer configuration to a workload and owns the jitter
// collector fed by the driven action. Running a probe yields a Report:
// iteration and missed-interval counts, the schedule span, and summary
// statistics for both the drawn jitter values and the measured action
// execution durations.
package probe
