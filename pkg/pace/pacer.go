package pace

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"jitterpace/pkg/logx"
)

// Action is the callback a Pacer drives. It receives the jitter applied to
// its own invocation; side effects (recording the jitter, doing work) are
// the action's business.
type Action func(jitter time.Duration)

// Config parameterizes a Pacer.
type Config struct {
	// Period is the fixed nominal spacing between schedule ticks. Must be > 0.
	Period time.Duration
	// Jitter bounds the uniform random delay added to each tick.
	Jitter JitterRange
	// Seed seeds the pacer-owned random generator. Zero means seed from the
	// clock; set it explicitly to make jitter sequences replayable.
	Seed int64
	// OnMissed, when set, is invoked from the run loop for every missed
	// interval with how far past the target the loop was. It must be fast;
	// it runs on the scheduling path.
	OnMissed func(behind time.Duration)
}

// Pacer drives an Action at a jittered fixed period.
//
// The schedule state is written by the run loop only and read by the owner
// after the run has exited (RunCount returned, or Stop returned); the join
// on the worker's done channel provides the visibility barrier.
type Pacer struct {
	period   time.Duration
	jitter   JitterRange
	rng      *rand.Rand
	log      logx.Logger
	onMissed func(behind time.Duration)

	running atomic.Bool
	stopReq atomic.Bool
	done    chan struct{}

	intervalFirst time.Time
	intervalLast  time.Time
	iterations    int
	missed        int
	durations     *Collector
}

func New(cfg Config, log logx.Logger) (*Pacer, error) {
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("pace: period must be > 0, got %v", cfg.Period)
	}
	// Re-validate in case the range was built as a literal.
	jr, err := NewJitterRange(cfg.Jitter.Min, cfg.Jitter.Max)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Pacer{
		period:   cfg.Period,
		jitter:   jr,
		rng:      rand.New(rand.NewSource(seed)),
		log:      log,
		onMissed: cfg.OnMissed,
	}, nil
}

// RunCount drives the action for exactly count iterations, blocking the
// caller until they complete.
func (p *Pacer) RunCount(action Action, count int) error {
	if action == nil {
		return ErrNilAction
	}
	if count <= 0 {
		return fmt.Errorf("pace: repeat count must be positive, got %d", count)
	}
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.running.Store(false)
	p.reset()
	p.done = nil
	p.loop(action, count)
	return nil
}

// Start launches the run loop on a background goroutine and returns
// immediately. The loop runs until Stop is called.
func (p *Pacer) Start(action Action) error {
	if action == nil {
		return ErrNilAction
	}
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	p.reset()
	p.stopReq.Store(false)
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		p.loop(action, 0)
	}()
	return nil
}

// Stop requests cooperative termination at the next loop-top check, waits
// for the worker to exit, and returns the number of iterations it
// completed. Stop never interrupts a sleep or an in-flight action, so its
// latency bound is one full period plus one action execution.
func (p *Pacer) Stop() (int, error) {
	if !p.running.Load() || p.done == nil {
		return 0, ErrNotRunning
	}
	p.stopReq.Store(true)
	<-p.done
	p.done = nil
	p.running.Store(false)
	return p.iterations, nil
}

// Runtime returns intervalLast - intervalFirst for the most recent run:
// the span the schedule covered, which for a bounded run of N iterations
// is exactly N times the nominal period. Valid once a run has completed.
func (p *Pacer) Runtime() time.Duration { return p.intervalLast.Sub(p.intervalFirst) }

// Missed returns how many ticks of the most recent run found their target
// time already in the past (a prior iteration overran its budget).
func (p *Pacer) Missed() int { return p.missed }

// Iterations returns how many iterations the most recent run completed.
func (p *Pacer) Iterations() int { return p.iterations }

// Durations returns the collector of action execution durations for the
// most recent run.
func (p *Pacer) Durations() *Collector { return p.durations }

func (p *Pacer) reset() {
	p.intervalFirst = time.Time{}
	p.intervalLast = time.Time{}
	p.iterations = 0
	p.missed = 0
	p.durations = NewCollector()
}

// loop is the shared per-iteration algorithm. A positive limit runs that
// many iterations (bounded mode); limit 0 runs until stopReq is observed
// at the top of the loop (continuous mode).
//
// The schedule advances by the fixed nominal period only (step 5). Target
// times are never recomputed from the current clock, so per-iteration
// overruns do not accumulate into a shifted phase.
func (p *Pacer) loop(action Action, limit int) {
	jitter := p.jitter.draw(p.rng)
	p.intervalFirst = time.Now()
	current := p.intervalFirst

	p.log.Debug("pacer run started",
		logx.Duration("period", p.period),
		logx.Duration("jitter_min", p.jitter.Min),
		logx.Duration("jitter_max", p.jitter.Max),
		logx.Int("limit", limit))

	for n := 0; ; n++ {
		if limit > 0 {
			if n >= limit {
				break
			}
		} else if p.stopReq.Load() {
			break
		}

		target := current.Add(jitter)
		if wait := time.Until(target); wait > 0 {
			time.Sleep(wait)
		} else {
			// The jitter delay could not be honored; the previous
			// iteration overran. Count it and carry on.
			p.missed++
			if p.onMissed != nil {
				p.onMissed(-wait)
			}
		}

		start := time.Now()
		action(jitter)
		p.durations.Insert(time.Since(start))

		jitter = p.jitter.draw(p.rng)
		current = current.Add(p.period)
		p.iterations = n + 1
	}

	p.intervalLast = current

	p.log.Debug("pacer run finished",
		logx.Int("iterations", p.iterations),
		logx.Int("missed", p.missed),
		logx.Duration("runtime", p.Runtime()))
}
