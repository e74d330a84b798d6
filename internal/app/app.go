package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	sdnotify "github.com/coreos/go-systemd/v22/daemon"

	"jitterpace/internal/config"
	"jitterpace/internal/history"
	"jitterpace/internal/service"
	"jitterpace/pkg/logx"
)

// App wires config, logging, history, and the probe service into a
// runnable daemon.
type App struct {
	mgr    *config.Manager
	logSvc *logx.Service
	log    logx.Logger
	store  *history.Store
	svc    *service.Service

	notify bool

	watchCancel context.CancelFunc
	watchWG     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if _, err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	mgr.SetLogger(log.With(logx.String("component", "config")))

	var store *history.Store
	if h := cfg.History; h != nil && h.Enabled {
		maxAge, _ := config.ParseDurationOrDefault("history.max_age", h.MaxAge, 30*24*time.Hour)
		busy, _ := config.ParseDurationOrDefault("history.busy_timeout", h.BusyTimeout, 5*time.Second)
		maxRows := h.MaxRows
		if maxRows <= 0 {
			maxRows = 1000
		}
		path := strings.TrimSpace(h.Path)
		if path == "" {
			path = "./jitterpace.db"
		}
		store, err = history.Open(history.Config{
			Path:        path,
			MaxAge:      maxAge,
			MaxRows:     maxRows,
			BusyTimeout: busy,
		}, log.With(logx.String("component", "history")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
	}

	svc := service.New(service.Config{
		MissedWarnPerSec: cfg.Daemon.MissedWarnPerSec,
	}, store, log.With(logx.String("component", "service")))

	// Reject bad configs before they are committed/published on reload.
	mgr.SetValidator(func(ctx context.Context, c *config.Config) error {
		probes, err := c.Validate()
		if err != nil {
			return err
		}
		return svc.ValidateSchedules(probes)
	})

	return &App{
		mgr:    mgr,
		logSvc: logSvc,
		log:    log,
		store:  store,
		svc:    svc,
		notify: cfg.Daemon.SystemdNotify,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.mgr.Get()
	probes, err := cfg.Validate()
	if err != nil {
		return err
	}
	if err := a.svc.Start(ctx, probes); err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	a.watchCancel = cancel
	sub := a.mgr.Subscribe(4)

	a.watchWG.Add(2)
	go func() {
		defer a.watchWG.Done()
		_ = a.mgr.Watch(watchCtx)
	}()
	go func() {
		defer a.watchWG.Done()
		defer a.mgr.Unsubscribe(sub)
		a.reloadLoop(watchCtx, sub, cfg)
	}()

	if a.notify {
		// Best effort; no-op when not running under systemd.
		_, _ = sdnotify.SdNotify(false, sdnotify.SdNotifyReady)
	}
	a.log.Info("jitterpace started")
	return nil
}

// reloadLoop applies published config updates: logging changes take effect
// in place, probe-set changes restart the service registrations.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config, prev *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok || cfg == nil {
				return
			}
			changed, attrs := config.SummarizeChange(prev, cfg)
			if len(changed) == 0 {
				continue
			}
			a.log.Info("applying config change",
				append(attrs, logx.String("sections", strings.Join(changed, ",")))...)

			for _, section := range changed {
				switch section {
				case "logging":
					a.logSvc.Apply(logx.Config{
						Level:   cfg.Logging.Level,
						Console: cfg.Logging.Console,
						File: logx.FileConfig{
							Enabled: cfg.Logging.File.Enabled,
							Path:    cfg.Logging.File.Path,
						},
					})
				case "probes":
					probes, err := cfg.Validate()
					if err != nil {
						// The validator should have rejected this already.
						a.log.Error("reload validation failed", logx.Err(err))
						continue
					}
					if err := a.svc.Apply(ctx, probes); err != nil {
						a.log.Error("probe set apply failed", logx.Err(err))
					}
				case "history", "daemon":
					a.log.Warn("section change requires restart", logx.String("section", section))
				}
			}
			prev = cfg
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.notify {
		_, _ = sdnotify.SdNotify(false, sdnotify.SdNotifyStopping)
	}
	if a.watchCancel != nil {
		a.watchCancel()
		a.watchWG.Wait()
	}
	err := a.svc.Stop(ctx)
	if a.store != nil {
		_ = a.store.Close()
	}
	a.log.Info("jitterpace stopped")
	_ = a.logSvc.Close()
	return err
}
