package hostsched

import (
	"time"

	"github.com/vnykmshr/goasync/pkg/common/validation"
	"github.com/vnykmshr/goasync/pkg/logx"
	"github.com/vnykmshr/goasync/pkg/metrics"
	"github.com/vnykmshr/goasync/pkg/scheduling/workerpool"
)

// Config holds Loop configuration.
type Config struct {
	// Name labels the loop in metrics and logs (default: "default").
	Name string

	// Workers is the number of delivery goroutines (default: 4).
	Workers int

	// QueueSize is the delivery queue depth (default: 100).
	QueueSize int

	// MinPeriod is the floor for repeating actions (default: MinPeriod).
	MinPeriod time.Duration

	// MaxSleep caps how long the loop sleeps before re-checking the clock,
	// so wall-clock jumps and suspended hosts are noticed (default: 60s).
	MaxSleep time.Duration

	// Pool delivers callbacks. If nil the loop creates and owns one.
	Pool workerpool.Pool

	Logger  logx.Logger
	Metrics *metrics.Registry
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.QueueSize == 0 {
		c.QueueSize = 100
	}
	if c.MinPeriod <= 0 {
		c.MinPeriod = MinPeriod
	}
	if c.MaxSleep <= 0 {
		c.MaxSleep = 60 * time.Second
	}
	if c.Logger.IsZero() {
		c.Logger = logx.Nop()
	}
	return c
}

func (c Config) validate() error {
	if c.Pool == nil {
		if err := validation.ValidatePositive("hostsched", "workers", c.Workers); err != nil {
			return err
		}
		if err := validation.ValidatePositive("hostsched", "queue_size", c.QueueSize); err != nil {
			return err
		}
	}
	return nil
}
