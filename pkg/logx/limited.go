package logx

import (
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Limited guards a Logger with a token bucket so hot paths (scheduler
// callbacks, dropped deliveries) cannot flood the sink. Suppressed lines are
// counted and reported on the next line that gets through.
type Limited struct {
	log        Logger
	limiter    *rate.Limiter
	suppressed atomic.Uint64
}

// NewLimited allows perSec lines per second with the given burst.
func NewLimited(l Logger, perSec float64, burst int) *Limited {
	if burst <= 0 {
		burst = 1
	}
	return &Limited{log: l, limiter: rate.NewLimiter(rate.Limit(perSec), burst)}
}

func (l *Limited) Warn(msg string, fields ...Field)  { l.emit(LevelWarn, msg, fields) }
func (l *Limited) Error(msg string, fields ...Field) { l.emit(LevelError, msg, fields) }

// Suppressed returns how many lines were dropped since the last emitted one.
func (l *Limited) Suppressed() uint64 { return l.suppressed.Load() }

func (l *Limited) emit(level Level, msg string, fields []Field) {
	if !l.log.Enabled(level) {
		return
	}
	if !l.limiter.Allow() {
		l.suppressed.Add(1)
		return
	}
	if n := l.suppressed.Swap(0); n > 0 {
		fields = append(fields, Uint64("suppressed", n))
	}
	if level == LevelError {
		l.log.Error(msg, fields...)
		return
	}
	l.log.Warn(msg, fields...)
}
