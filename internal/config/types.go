package config

import (
	"fmt"
	"strings"
	"time"

	"jitterpace/pkg/pace"
)

// Config is the on-disk configuration (YAML or JSON). All duration fields
// are Go duration strings (e.g. "100us", "1ms", "720h").
type Config struct {
	Logging LoggingConfig  `json:"logging"`
	History *HistoryConfig `json:"history,omitempty"`
	Daemon  DaemonConfig   `json:"daemon"`
	Probes  []ProbeConfig  `json:"probes"`
}

type LoggingConfig struct {
	Level   string     `json:"level,omitempty"`
	Console bool       `json:"console"`
	File    FileConfig `json:"file,omitempty"`
}

type FileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// HistoryConfig controls the run-report store. Nil (section omitted) means
// disabled; only per-run summaries are ever written, never raw samples.
type HistoryConfig struct {
	Enabled     bool   `json:"enabled"`
	Path        string `json:"path,omitempty"`
	MaxAge      string `json:"max_age,omitempty"`  // prune reports older than this
	MaxRows     int    `json:"max_rows,omitempty"` // prune beyond this many reports
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type DaemonConfig struct {
	// MissedWarnPerSec caps missed-interval warnings per second (default 2).
	MissedWarnPerSec int `json:"missed_warn_per_sec,omitempty"`
	// SystemdNotify enables sd_notify readiness/stopping messages when the
	// daemon runs as a systemd service.
	SystemdNotify bool `json:"systemd_notify,omitempty"`
}

// ProbeConfig defines one named measurement run.
type ProbeConfig struct {
	Name      string `json:"name"`
	Period    string `json:"period"`
	JitterMin string `json:"jitter_min,omitempty"`
	JitterMax string `json:"jitter_max,omitempty"`

	// Count is the number of iterations per run. Zero means continuous:
	// the probe starts with the daemon and stops with it.
	Count int `json:"count,omitempty"`

	// Workload selects the driven action: "sleep" (no-op, pure scheduler
	// latency) or "spin" (busy loop of Spin length).
	Workload string `json:"workload,omitempty"`
	Spin     string `json:"spin,omitempty"`

	// Schedule is a cron spec ("*/5 * * * *", "@hourly", "@every 15m") for
	// repeated bounded runs. Empty means run once at daemon start.
	Schedule string `json:"schedule,omitempty"`

	// Seed makes the jitter sequence replayable. Zero seeds from the clock.
	Seed int64 `json:"seed,omitempty"`
}

const (
	WorkloadSleep = "sleep"
	WorkloadSpin  = "spin"
)

// Probe is a ProbeConfig with durations parsed and defaults applied.
type Probe struct {
	Name     string
	Period   time.Duration
	Jitter   pace.JitterRange
	Count    int
	Workload string
	Spin     time.Duration
	Schedule string
	Seed     int64
}

// Validate checks structural invariants and returns the parsed probe set.
// Cron schedule syntax is validated by the daemon when registering, since
// the parser configuration lives there.
func (c *Config) Validate() ([]Probe, error) {
	if len(c.Probes) == 0 {
		return nil, fmt.Errorf("probes: at least one probe is required")
	}

	seen := make(map[string]struct{}, len(c.Probes))
	probes := make([]Probe, 0, len(c.Probes))
	for i, pc := range c.Probes {
		path := fmt.Sprintf("probes[%d]", i)
		p, err := pc.parse(path)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate probe name %q", path, p.Name)
		}
		seen[p.Name] = struct{}{}
		probes = append(probes, p)
	}

	if c.History != nil && c.History.Enabled {
		if _, err := ParseDurationField("history.max_age", c.History.MaxAge); err != nil {
			return nil, err
		}
		if _, err := ParseDurationField("history.busy_timeout", c.History.BusyTimeout); err != nil {
			return nil, err
		}
	}
	return probes, nil
}

func (pc ProbeConfig) parse(path string) (Probe, error) {
	name := strings.TrimSpace(pc.Name)
	if name == "" {
		return Probe{}, fmt.Errorf("%s: name is required", path)
	}

	period, err := ParseRequiredDuration(path+".period", pc.Period)
	if err != nil {
		return Probe{}, err
	}

	jmin, err := ParseDurationField(path+".jitter_min", pc.JitterMin)
	if err != nil {
		return Probe{}, err
	}
	jmax, err := ParseDurationField(path+".jitter_max", pc.JitterMax)
	if err != nil {
		return Probe{}, err
	}
	jr, err := pace.NewJitterRange(jmin, jmax)
	if err != nil {
		return Probe{}, fmt.Errorf("%s: %w", path, err)
	}

	if pc.Count < 0 {
		return Probe{}, fmt.Errorf("%s.count: must be >= 0, got %d", path, pc.Count)
	}
	if pc.Count == 0 && strings.TrimSpace(pc.Schedule) != "" {
		return Probe{}, fmt.Errorf("%s: a continuous probe (count 0) cannot have a schedule", path)
	}

	workload := strings.TrimSpace(strings.ToLower(pc.Workload))
	if workload == "" {
		workload = WorkloadSleep
	}
	if workload != WorkloadSleep && workload != WorkloadSpin {
		return Probe{}, fmt.Errorf("%s.workload: unknown workload %q", path, pc.Workload)
	}
	spin, err := ParseDurationField(path+".spin", pc.Spin)
	if err != nil {
		return Probe{}, err
	}
	if workload == WorkloadSpin && spin <= 0 {
		return Probe{}, fmt.Errorf("%s.spin: spin workload requires a positive spin duration", path)
	}

	return Probe{
		Name:     name,
		Period:   period,
		Jitter:   jr,
		Count:    pc.Count,
		Workload: workload,
		Spin:     spin,
		Schedule: strings.TrimSpace(pc.Schedule),
		Seed:     pc.Seed,
	}, nil
}
