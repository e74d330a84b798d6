package config

import (
	"reflect"
	"sort"

	"jitterpace/pkg/logx"
)

// SummarizeChange returns a compact list of changed sections plus
// structured attrs suitable for logging the reload.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 8)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	oldH := derefHistory(oldCfg.History)
	newH := derefHistory(newCfg.History)
	if !reflect.DeepEqual(oldH, newH) {
		changed = append(changed, "history")
		attrs = append(attrs,
			logx.Bool("history.enabled", newH.Enabled),
			logx.Bool("history.path_set", newH.Path != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Daemon, newCfg.Daemon) {
		changed = append(changed, "daemon")
		attrs = append(attrs,
			logx.Int("daemon.missed_warn_per_sec", newCfg.Daemon.MissedWarnPerSec))
	}

	if !reflect.DeepEqual(oldCfg.Probes, newCfg.Probes) {
		changed = append(changed, "probes")
		attrs = append(attrs, logx.Int("probes.count", len(newCfg.Probes)))
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefHistory(h *HistoryConfig) HistoryConfig {
	if h == nil {
		return HistoryConfig{}
	}
	return *h
}
