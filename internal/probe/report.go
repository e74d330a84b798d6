package probe

import (
	"fmt"
	"strings"
	"time"

	"jitterpace/pkg/pace"
)

// Report is the per-run summary. Only summaries leave the process; raw
// samples stay inside the collectors and die with the run.
type Report struct {
	Probe      string
	Started    time.Time
	Finished   time.Time
	Period     time.Duration
	Iterations int
	Missed     int
	Runtime    time.Duration

	// Jitter summarizes the jitter values applied across the run.
	Jitter pace.Stats
	// Durations summarizes the measured action execution durations.
	Durations pace.Stats
}

// String renders the report for console output, one stat per line.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "probe %s: %d iterations, %d missed, schedule span %v\n",
		r.Probe, r.Iterations, r.Missed, r.Runtime)
	writeStats(&b, "jitter", r.Jitter)
	writeStats(&b, "duration", r.Durations)
	return b.String()
}

func writeStats(b *strings.Builder, label string, s pace.Stats) {
	if s.Count == 0 {
		fmt.Fprintf(b, "  %s: no samples\n", label)
		return
	}
	fmt.Fprintf(b, "  %s: min=%v max=%v avg=%v median=%v (n=%d)\n",
		label, s.Smallest, s.Largest, s.Average, s.Median, s.Count)
}
