package logx

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Throttled wraps a Logger with a token-bucket limiter so that hot call
// sites (e.g. a per-tick missed-interval warning on a saturated host)
// cannot flood the sinks. Suppressed lines are counted and the count is
// attached to the next line that passes. Safe for concurrent use.
type Throttled struct {
	l        Logger
	lim      *rate.Limiter
	suppress atomic.Int64
}

// Throttle allows at most perSec lines per second (burst perSec).
func Throttle(l Logger, perSec int) *Throttled {
	if perSec <= 0 {
		perSec = 1
	}
	return &Throttled{
		l:   l,
		lim: rate.NewLimiter(rate.Limit(perSec), perSec),
	}
}

func (t *Throttled) Warn(msg string, fields ...Field) { t.emit(LevelWarn, msg, fields) }
func (t *Throttled) Info(msg string, fields ...Field) { t.emit(LevelInfo, msg, fields) }

func (t *Throttled) emit(level Level, msg string, fields []Field) {
	if !t.lim.Allow() {
		t.suppress.Add(1)
		return
	}
	if n := t.suppress.Swap(0); n > 0 {
		fields = append(fields, Int64("suppressed", n))
	}
	switch level {
	case LevelWarn:
		t.l.Warn(msg, fields...)
	default:
		t.l.Info(msg, fields...)
	}
}
