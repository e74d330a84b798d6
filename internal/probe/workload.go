package probe

import "time"

// SleepWork is the no-op workload: the action does nothing, so the report
// characterizes pure scheduler latency. Returned as nil because the runner
// treats a nil Work as no-op without the call overhead.
func SleepWork() func() { return nil }

// SpinWork busy-loops for roughly d per invocation, simulating a CPU-bound
// action without yielding to the OS scheduler.
func SpinWork(d time.Duration) func() {
	return func() {
		deadline := time.Now().Add(d)
		for time.Now().Before(deadline) {
		}
	}
}
