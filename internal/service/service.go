package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jitterpace/internal/config"
	"jitterpace/internal/history"
	"jitterpace/internal/probe"
	"jitterpace/pkg/logx"
)

type Config struct {
	// MissedWarnPerSec caps missed-interval warnings per second.
	MissedWarnPerSec int
}

// Service owns the daemon lifecycle: cron registration for scheduled
// probes, continuous probe runners, and report persistence.
type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	store  *history.Store // nil when history is disabled
	parser cron.Parser

	c      *cron.Cron
	probes []config.Probe

	// continuous runners, keyed by probe name; live while running
	runners map[string]*probe.Runner

	// runMu serializes bounded probe runs; scheduled triggers that find it
	// held are skipped rather than queued.
	runMu sync.Mutex

	missedLog *logx.Throttled
	startWG   sync.WaitGroup
	running   bool
}

func New(cfg Config, store *history.Store, log logx.Logger) *Service {
	perSec := cfg.MissedWarnPerSec
	if perSec <= 0 {
		perSec = 2
	}
	return &Service{
		log:   log,
		cfg:   cfg,
		store: store,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser:    cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		runners:   map[string]*probe.Runner{},
		missedLog: logx.Throttle(log, perSec),
	}
}

// ValidateSchedules checks the cron syntax of every scheduled probe. Used
// as a config-reload validator so a bad spec never reaches Apply.
func (s *Service) ValidateSchedules(probes []config.Probe) error {
	for _, p := range probes {
		if p.Schedule == "" {
			continue
		}
		if _, err := s.parser.Parse(p.Schedule); err != nil {
			return fmt.Errorf("probe %s: invalid schedule %q: %w", p.Name, p.Schedule, err)
		}
	}
	return nil
}

// Start registers and launches the given probe set. One-shot bounded
// probes run immediately in the background; continuous probes start their
// pacers; scheduled probes wait for their cron triggers.
func (s *Service) Start(ctx context.Context, probes []config.Probe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("service: already running")
	}
	if err := s.ValidateSchedules(probes); err != nil {
		return err
	}

	s.probes = probes
	s.c = cron.New(cron.WithParser(s.parser))

	scheduled := 0
	for _, p := range probes {
		switch {
		case p.Count == 0:
			r, err := s.newRunner(p)
			if err != nil {
				s.haltLocked()
				return err
			}
			if err := r.Start(); err != nil {
				s.haltLocked()
				return err
			}
			s.runners[p.Name] = r

		case p.Schedule != "":
			pc := p
			if _, err := s.c.AddFunc(p.Schedule, func() { s.triggeredRun(ctx, pc) }); err != nil {
				s.haltLocked()
				return fmt.Errorf("probe %s: %w", p.Name, err)
			}
			scheduled++

		default:
			pc := p
			s.startWG.Add(1)
			go func() {
				defer s.startWG.Done()
				defer s.recoverRun(pc.Name)
				s.runMu.Lock()
				defer s.runMu.Unlock()
				s.runBounded(ctx, pc)
			}()
		}
	}

	s.c.Start()
	s.running = true
	s.log.Info("service started",
		logx.Int("probes", len(probes)),
		logx.Int("scheduled", scheduled),
		logx.Int("continuous", len(s.runners)))
	return nil
}

// Stop halts cron triggers, waits for in-flight bounded runs, and stops
// every continuous probe, persisting their final reports.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	start := time.Now()

	if s.c != nil {
		// Wait for any cron-launched run to finish.
		<-s.c.Stop().Done()
		s.c = nil
	}
	s.startWG.Wait()

	for name, r := range s.runners {
		rep, err := r.Stop()
		if err != nil {
			s.log.Error("continuous probe stop failed", logx.String("probe", name), logx.Err(err))
			continue
		}
		s.finishRun(ctx, rep)
	}
	s.runners = map[string]*probe.Runner{}

	s.running = false
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
	return nil
}

// Apply swaps the probe set at runtime (config hot reload): the current
// registrations are torn down and the new set is started.
func (s *Service) Apply(ctx context.Context, probes []config.Probe) error {
	if err := s.Stop(ctx); err != nil {
		return err
	}
	return s.Start(ctx, probes)
}

// haltLocked unwinds a partially built Start. Caller holds s.mu.
func (s *Service) haltLocked() {
	if s.c != nil {
		s.c.Stop()
		s.c = nil
	}
	for name, r := range s.runners {
		if _, err := r.Stop(); err != nil {
			s.log.Error("probe stop failed during unwind", logx.String("probe", name), logx.Err(err))
		}
	}
	s.runners = map[string]*probe.Runner{}
}

// triggeredRun is the cron entry point for a scheduled bounded probe.
func (s *Service) triggeredRun(ctx context.Context, p config.Probe) {
	defer s.recoverRun(p.Name)
	if !s.runMu.TryLock() {
		s.log.Warn("probe run skipped; another run active", logx.String("probe", p.Name))
		return
	}
	defer s.runMu.Unlock()
	s.runBounded(ctx, p)
}

func (s *Service) runBounded(ctx context.Context, p config.Probe) {
	r, err := s.newRunner(p)
	if err != nil {
		s.log.Error("probe setup failed", logx.String("probe", p.Name), logx.Err(err))
		return
	}
	rep, err := r.Run()
	if err != nil {
		s.log.Error("probe run failed", logx.String("probe", p.Name), logx.Err(err))
		return
	}
	s.finishRun(ctx, rep)
}

func (s *Service) newRunner(p config.Probe) (*probe.Runner, error) {
	work := probe.SleepWork()
	if p.Workload == config.WorkloadSpin {
		work = probe.SpinWork(p.Spin)
	}
	name := p.Name
	return probe.New(probe.Spec{
		Name:   p.Name,
		Period: p.Period,
		Jitter: p.Jitter,
		Count:  p.Count,
		Work:   work,
		Seed:   p.Seed,
		OnMissed: func(behind time.Duration) {
			s.missedLog.Warn("missed interval",
				logx.String("probe", name),
				logx.Duration("behind", behind))
		},
	}, s.log)
}

func (s *Service) finishRun(ctx context.Context, rep probe.Report) {
	s.log.Info("probe run completed",
		logx.String("probe", rep.Probe),
		logx.Int("iterations", rep.Iterations),
		logx.Int("missed", rep.Missed),
		logx.Duration("runtime", rep.Runtime),
		logx.Duration("jitter_median", rep.Jitter.Median),
		logx.Duration("dur_median", rep.Durations.Median))

	if s.store == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.store.Append(sctx, rep); err != nil {
		s.log.Error("report persist failed", logx.String("probe", rep.Probe), logx.Err(err))
	}
}

func (s *Service) recoverRun(name string) {
	if r := recover(); r != nil {
		s.log.Error("panic in probe run",
			logx.String("probe", name),
			logx.Any("panic", r),
			logx.String("stack", string(debug.Stack())))
	}
}
