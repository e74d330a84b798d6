package probe

import (
	"strings"
	"testing"
	"time"

	"jitterpace/pkg/logx"
	"jitterpace/pkg/pace"
)

func baseSpec() Spec {
	return Spec{
		Name:   "test",
		Period: 500 * time.Microsecond,
		Jitter: pace.JitterRange{Min: 100 * time.Microsecond, Max: 200 * time.Microsecond},
		Count:  20,
		Seed:   11,
	}
}

func TestBoundedRunReport(t *testing.T) {
	t.Parallel()
	r, err := New(baseSpec(), logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rep, err := r.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rep.Probe != "test" {
		t.Fatalf("Probe = %q, want test", rep.Probe)
	}
	if rep.Iterations != 20 {
		t.Fatalf("Iterations = %d, want 20", rep.Iterations)
	}
	if want := 20 * 500 * time.Microsecond; rep.Runtime != want {
		t.Fatalf("Runtime = %v, want exactly %v", rep.Runtime, want)
	}
	if rep.Jitter.Count != 20 || rep.Durations.Count != 20 {
		t.Fatalf("sample counts = (%d, %d), want (20, 20)", rep.Jitter.Count, rep.Durations.Count)
	}
	if rep.Jitter.Smallest < 100*time.Microsecond || rep.Jitter.Largest > 200*time.Microsecond {
		t.Fatalf("jitter stats outside configured range: %+v", rep.Jitter)
	}
	if rep.Finished.Before(rep.Started) {
		t.Fatalf("Finished %v before Started %v", rep.Finished, rep.Started)
	}
}

func TestRunRequiresPositiveCount(t *testing.T) {
	t.Parallel()
	spec := baseSpec()
	spec.Count = 0
	r, err := New(spec, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.Run(); err == nil {
		t.Fatal("expected error for bounded run with count 0")
	}
}

func TestContinuousStartStop(t *testing.T) {
	t.Parallel()
	spec := baseSpec()
	spec.Count = 0
	spec.Period = 5 * time.Millisecond
	r, err := New(spec, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(25 * time.Millisecond)
	rep, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if rep.Iterations < 1 {
		t.Fatalf("Iterations = %d, want >= 1 after 25ms at 5ms period", rep.Iterations)
	}
	if rep.Jitter.Count != rep.Iterations {
		t.Fatalf("jitter samples = %d, iterations = %d", rep.Jitter.Count, rep.Iterations)
	}
}

func TestSpinWorkBusyLoops(t *testing.T) {
	t.Parallel()
	work := SpinWork(2 * time.Millisecond)
	start := time.Now()
	work()
	if elapsed := time.Since(start); elapsed < 2*time.Millisecond {
		t.Fatalf("spin returned after %v, want >= 2ms", elapsed)
	}
}

func TestReportString(t *testing.T) {
	t.Parallel()
	rep := Report{
		Probe:      "demo",
		Iterations: 100,
		Missed:     2,
		Runtime:    100 * time.Millisecond,
		Jitter: pace.Stats{
			Count: 100, Smallest: 100 * time.Microsecond, Largest: 500 * time.Microsecond,
			Average: 300 * time.Microsecond, Median: 310 * time.Microsecond,
		},
	}
	s := rep.String()
	for _, want := range []string{"probe demo", "100 iterations", "2 missed", "duration: no samples"} {
		if !strings.Contains(s, want) {
			t.Fatalf("report %q missing %q", s, want)
		}
	}
}
