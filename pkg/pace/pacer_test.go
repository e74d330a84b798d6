package pace

import (
	"errors"
	"testing"
	"time"

	"jitterpace/pkg/logx"
)

func mustPacer(t *testing.T, cfg Config) *Pacer {
	t.Helper()
	p, err := New(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestNewValidation(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Period: 0}, logx.Nop()); err == nil {
		t.Fatal("expected error for zero period")
	}
	if _, err := New(Config{Period: -time.Millisecond}, logx.Nop()); err == nil {
		t.Fatal("expected error for negative period")
	}
	if _, err := New(Config{
		Period: time.Millisecond,
		Jitter: JitterRange{Min: time.Millisecond, Max: time.Microsecond},
	}, logx.Nop()); err == nil {
		t.Fatal("expected error for inverted jitter range")
	}
}

func TestRunCountInvokesExactly(t *testing.T) {
	t.Parallel()
	p := mustPacer(t, Config{
		Period: 2 * time.Millisecond,
		Jitter: JitterRange{Min: 100 * time.Microsecond, Max: 500 * time.Microsecond},
		Seed:   1,
	})

	invoked := 0
	if err := p.RunCount(func(time.Duration) { invoked++ }, 10); err != nil {
		t.Fatalf("RunCount: %v", err)
	}
	if invoked != 10 {
		t.Fatalf("action invoked %d times, want 10", invoked)
	}
	if p.Iterations() != 10 {
		t.Fatalf("Iterations = %d, want 10", p.Iterations())
	}
	if p.Durations().Count() != 10 {
		t.Fatalf("duration samples = %d, want 10", p.Durations().Count())
	}
}

func TestRunCountUsageErrors(t *testing.T) {
	t.Parallel()
	p := mustPacer(t, Config{Period: time.Millisecond, Seed: 1})

	if err := p.RunCount(nil, 5); !errors.Is(err, ErrNilAction) {
		t.Fatalf("nil action: got %v, want ErrNilAction", err)
	}
	if err := p.RunCount(func(time.Duration) {}, 0); err == nil {
		t.Fatal("expected error for zero count")
	}
	if err := p.RunCount(func(time.Duration) {}, -3); err == nil {
		t.Fatal("expected error for negative count")
	}
}

// The drift-free property: the schedule position after N iterations is
// exactly N nominal periods past the first instant, no matter how badly a
// slow action overruns individual ticks.
func TestDriftFreeScheduleWithSlowAction(t *testing.T) {
	t.Parallel()
	const (
		period = 5 * time.Millisecond
		n      = 4
	)
	p := mustPacer(t, Config{
		Period: period,
		Jitter: JitterRange{Min: time.Millisecond, Max: time.Millisecond},
		Seed:   1,
	})

	slow := func(time.Duration) { time.Sleep(12 * time.Millisecond) }
	if err := p.RunCount(slow, n); err != nil {
		t.Fatalf("RunCount: %v", err)
	}

	if got, want := p.Runtime(), time.Duration(n)*period; got != want {
		t.Fatalf("Runtime = %v, want exactly %v", got, want)
	}
	if p.Missed() == 0 {
		t.Fatal("expected missed intervals with an overrunning action")
	}
}

func TestMissedIntervalCallback(t *testing.T) {
	t.Parallel()
	var behinds []time.Duration
	p := mustPacer(t, Config{
		Period: 2 * time.Millisecond,
		Jitter: JitterRange{Min: 500 * time.Microsecond, Max: 500 * time.Microsecond},
		Seed:   1,
		OnMissed: func(behind time.Duration) {
			behinds = append(behinds, behind)
		},
	})

	slow := func(time.Duration) { time.Sleep(6 * time.Millisecond) }
	if err := p.RunCount(slow, 3); err != nil {
		t.Fatalf("RunCount: %v", err)
	}
	if len(behinds) != p.Missed() {
		t.Fatalf("callback fired %d times, missed count %d", len(behinds), p.Missed())
	}
	for i, b := range behinds {
		if b < 0 {
			t.Fatalf("behind[%d] = %v, want >= 0", i, b)
		}
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()
	const period = 20 * time.Millisecond
	p := mustPacer(t, Config{
		Period: period,
		Jitter: JitterRange{Min: time.Millisecond, Max: 2 * time.Millisecond},
		Seed:   1,
	})

	started := time.Now()
	if err := p.Start(func(time.Duration) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(70 * time.Millisecond)
	n, err := p.Stop()
	elapsed := time.Since(started)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if n < 0 {
		t.Fatalf("iteration count = %d, want >= 0", n)
	}
	// Iterations are gated by the period, so the count cannot exceed the
	// wall-clock budget by more than the in-flight tick.
	if max := int(elapsed/period) + 2; n > max {
		t.Fatalf("iteration count = %d, want <= %d (elapsed %v)", n, max, elapsed)
	}
	if p.Iterations() != n {
		t.Fatalf("Iterations = %d, Stop returned %d", p.Iterations(), n)
	}
}

func TestStartStopUsageErrors(t *testing.T) {
	t.Parallel()
	p := mustPacer(t, Config{Period: 10 * time.Millisecond, Seed: 1})

	if _, err := p.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("Stop before Start: got %v, want ErrNotRunning", err)
	}
	if err := p.Start(nil); !errors.Is(err, ErrNilAction) {
		t.Fatalf("Start(nil): got %v, want ErrNilAction", err)
	}

	if err := p.Start(func(time.Duration) {}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Start(func(time.Duration) {}); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Start: got %v, want ErrAlreadyRunning", err)
	}
	if err := p.RunCount(func(time.Duration) {}, 1); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("RunCount while running: got %v, want ErrAlreadyRunning", err)
	}
	if _, err := p.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := p.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("second Stop: got %v, want ErrNotRunning", err)
	}
}

func TestJitterWithinRangeAcrossRun(t *testing.T) {
	t.Parallel()
	jr := JitterRange{Min: 100 * time.Microsecond, Max: 300 * time.Microsecond}
	p := mustPacer(t, Config{Period: 500 * time.Microsecond, Jitter: jr, Seed: 3})

	if err := p.RunCount(func(j time.Duration) {
		if j < jr.Min || j > jr.Max {
			t.Errorf("jitter %v outside [%v, %v]", j, jr.Min, jr.Max)
		}
	}, 200); err != nil {
		t.Fatalf("RunCount: %v", err)
	}
}

func TestJitterSequenceReplayable(t *testing.T) {
	t.Parallel()
	cfg := Config{
		Period: 500 * time.Microsecond,
		Jitter: JitterRange{Min: 100 * time.Microsecond, Max: 500 * time.Microsecond},
		Seed:   42,
	}

	runSeq := func() []time.Duration {
		p := mustPacer(t, cfg)
		var seq []time.Duration
		if err := p.RunCount(func(j time.Duration) { seq = append(seq, j) }, 25); err != nil {
			t.Fatalf("RunCount: %v", err)
		}
		return seq
	}

	a, b := runSeq(), runSeq()
	if len(a) != len(b) {
		t.Fatalf("sequence lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sequences diverge at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestActionsNeverOverlap(t *testing.T) {
	t.Parallel()
	p := mustPacer(t, Config{
		Period: time.Millisecond,
		Jitter: JitterRange{Min: 0, Max: 500 * time.Microsecond},
		Seed:   9,
	})

	type span struct{ enter, exit time.Time }
	var spans []span
	action := func(time.Duration) {
		s := span{enter: time.Now()}
		time.Sleep(200 * time.Microsecond)
		s.exit = time.Now()
		spans = append(spans, s)
	}

	if err := p.RunCount(action, 50); err != nil {
		t.Fatalf("RunCount: %v", err)
	}
	for i := 1; i < len(spans); i++ {
		if spans[i].enter.Before(spans[i-1].exit) {
			t.Fatalf("invocation %d entered at %v before %d exited at %v",
				i, spans[i].enter, i-1, spans[i-1].exit)
		}
	}
}

func TestRunCountReusableAfterCompletion(t *testing.T) {
	t.Parallel()
	p := mustPacer(t, Config{Period: time.Millisecond, Seed: 1})

	if err := p.RunCount(func(time.Duration) {}, 3); err != nil {
		t.Fatalf("first RunCount: %v", err)
	}
	first := p.Runtime()
	if err := p.RunCount(func(time.Duration) {}, 5); err != nil {
		t.Fatalf("second RunCount: %v", err)
	}
	if p.Iterations() != 5 {
		t.Fatalf("Iterations = %d, want 5 (state not reset between runs)", p.Iterations())
	}
	if want := 5 * time.Millisecond; p.Runtime() != want {
		t.Fatalf("Runtime = %v, want %v (first run was %v)", p.Runtime(), want, first)
	}
}
