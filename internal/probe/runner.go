package probe

import (
	"fmt"
	"time"

	"jitterpace/pkg/logx"
	"jitterpace/pkg/pace"
)

// Spec describes one measurement run.
type Spec struct {
	Name   string
	Period time.Duration
	Jitter pace.JitterRange

	// Count > 0 runs bounded; Count == 0 runs continuously until Stop.
	Count int

	// Work is the per-iteration workload, invoked by the action after the
	// jitter sample is recorded. Nil means no-op (pure scheduler latency).
	Work func()

	// Seed makes the jitter sequence replayable. Zero seeds from the clock.
	Seed int64

	// OnMissed is forwarded to the pacer (see pace.Config.OnMissed).
	OnMissed func(behind time.Duration)
}

// Runner executes a Spec. A Runner is single-use: construct, run (bounded
// or Start/Stop), read the Report.
type Runner struct {
	spec    Spec
	log     logx.Logger
	pacer   *pace.Pacer
	jitters *pace.Collector
	started time.Time
}

func New(spec Spec, log logx.Logger) (*Runner, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("probe: name is required")
	}
	p, err := pace.New(pace.Config{
		Period:   spec.Period,
		Jitter:   spec.Jitter,
		Seed:     spec.Seed,
		OnMissed: spec.OnMissed,
	}, log.With(logx.String("probe", spec.Name)))
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", spec.Name, err)
	}
	return &Runner{
		spec:    spec,
		log:     log.With(logx.String("probe", spec.Name)),
		pacer:   p,
		jitters: pace.NewCollector(),
	}, nil
}

// action records the jitter applied to this invocation, then does the
// workload. This is the probe-owned side of the measurement; the pacer
// accumulates execution durations on its own.
func (r *Runner) action(jitter time.Duration) {
	r.jitters.Insert(jitter)
	if r.spec.Work != nil {
		r.spec.Work()
	}
}

// Run executes a bounded probe (Spec.Count iterations) and blocks until it
// completes.
func (r *Runner) Run() (Report, error) {
	if r.spec.Count <= 0 {
		return Report{}, fmt.Errorf("probe %s: bounded run requires a positive count", r.spec.Name)
	}
	r.started = time.Now()
	r.log.Info("probe run starting",
		logx.Duration("period", r.spec.Period),
		logx.Int("count", r.spec.Count))
	if err := r.pacer.RunCount(r.action, r.spec.Count); err != nil {
		return Report{}, fmt.Errorf("probe %s: %w", r.spec.Name, err)
	}
	return r.report()
}

// Start launches a continuous probe in the background.
func (r *Runner) Start() error {
	r.started = time.Now()
	r.log.Info("probe starting (continuous)", logx.Duration("period", r.spec.Period))
	if err := r.pacer.Start(r.action); err != nil {
		return fmt.Errorf("probe %s: %w", r.spec.Name, err)
	}
	return nil
}

// Stop terminates a continuous probe and returns its Report.
func (r *Runner) Stop() (Report, error) {
	n, err := r.pacer.Stop()
	if err != nil {
		return Report{}, fmt.Errorf("probe %s: %w", r.spec.Name, err)
	}
	r.log.Info("probe stopped", logx.Int("iterations", n))
	return r.report()
}

func (r *Runner) report() (Report, error) {
	rep := Report{
		Probe:      r.spec.Name,
		Started:    r.started,
		Finished:   time.Now(),
		Period:     r.spec.Period,
		Iterations: r.pacer.Iterations(),
		Missed:     r.pacer.Missed(),
		Runtime:    r.pacer.Runtime(),
	}
	// A run stopped before its first iteration legitimately has no samples.
	if js, err := r.jitters.Stats(); err == nil {
		rep.Jitter = js
	}
	if ds, err := r.pacer.Durations().Stats(); err == nil {
		rep.Durations = ds
	}
	return rep, nil
}
