// Package config loads goasync settings from YAML or JSON files.
//
// Both formats are decoded strictly: unknown fields and trailing data are
// errors. Durations are Go duration strings ("250ms", "1m").
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vnykmshr/goasync/pkg/async/crontask"
	gferrors "github.com/vnykmshr/goasync/pkg/common/errors"
	"github.com/vnykmshr/goasync/pkg/common/validation"
	"github.com/vnykmshr/goasync/pkg/logx"
	"github.com/vnykmshr/goasync/pkg/metrics"
	"github.com/vnykmshr/goasync/pkg/scheduling/hostsched"
)

type Config struct {
	Scheduler SchedulerConfig `json:"scheduler"`
	Logging   LoggingConfig   `json:"logging"`
	Metrics   MetricsConfig   `json:"metrics"`

	// Timers are named timer or cron tasks an application starts.
	Timers []TimerConfig `json:"timers,omitempty"`

	// Checks are HTTP endpoints fetched on an interval.
	Checks []CheckConfig `json:"checks,omitempty"`
}

// SchedulerConfig configures the hostsched.Loop.
//
// Defaults (when fields are omitted/zero):
//   - name: "default"
//   - workers: 4
//   - queue_size: 100
//   - min_period: "1ms"
//   - max_sleep: "60s"
type SchedulerConfig struct {
	Name      string `json:"name,omitempty"`
	Workers   int    `json:"workers,omitempty"`
	QueueSize int    `json:"queue_size,omitempty"`
	MinPeriod string `json:"min_period,omitempty"`
	MaxSleep  string `json:"max_sleep,omitempty"`
}

type LoggingConfig struct {
	Level  string `json:"level,omitempty"`
	Format string `json:"format,omitempty"`
}

// MetricsConfig controls the Prometheus registry. Listen is the address an
// application serves /metrics on; empty disables the endpoint.
type MetricsConfig struct {
	Enabled   bool              `json:"enabled"`
	Namespace string            `json:"namespace,omitempty"`
	Listen    string            `json:"listen,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Timer kinds.
const (
	KindOneOff   = "one_off"
	KindPeriodic = "periodic"
	KindCron     = "cron"
)

// TimerConfig describes one timer. Period and InitialPeriod apply to
// one_off and periodic timers; Cron applies to cron timers.
type TimerConfig struct {
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	Period        string `json:"period,omitempty"`
	InitialPeriod string `json:"initial_period,omitempty"`
	Cron          string `json:"cron,omitempty"`
	Location      string `json:"location,omitempty"`
}

// CheckConfig describes an HTTP endpoint fetched every Interval.
type CheckConfig struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Method   string `json:"method,omitempty"`
	Interval string `json:"interval"`
	Timeout  string `json:"timeout,omitempty"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			Name:      "default",
			Workers:   4,
			QueueSize: 100,
			MinPeriod: "1ms",
			MaxSleep:  "60s",
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "goasync"},
	}
}

// Load reads and validates the file at path. Files ending in .yaml or .yml
// are YAML, anything else is JSON.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, b)
}

// Parse decodes and validates data; name selects the format by extension.
func Parse(name string, data []byte) (*Config, error) {
	jb, format, err := coerceToJSONBytes(name, data)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%s config %s: %w", format, name, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("%s config %s: trailing data", format, name)
		}
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Scheduler.Workers < 0 {
		errs = append(errs, gferrors.NewValidationError("config", "scheduler.workers", c.Scheduler.Workers, "must be >= 0"))
	}
	if c.Scheduler.QueueSize < 0 {
		errs = append(errs, gferrors.NewValidationError("config", "scheduler.queue_size", c.Scheduler.QueueSize, "must be >= 0"))
	}
	if _, err := ParseDurationField("scheduler.min_period", c.Scheduler.MinPeriod); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("scheduler.max_sleep", c.Scheduler.MaxSleep); err != nil {
		errs = append(errs, err)
	}

	if c.Logging.Level != "" {
		if err := validation.ValidateOneOf("config", "logging.level", c.Logging.Level,
			"trace", "debug", "info", "warn", "warning", "error", "off", "disabled"); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Logging.Format != "" {
		if err := validation.ValidateOneOf("config", "logging.format", c.Logging.Format, "console", "json"); err != nil {
			errs = append(errs, err)
		}
	}

	names := make(map[string]bool)
	for i, t := range c.Timers {
		if err := t.validate(i); err != nil {
			errs = append(errs, err)
		}
		if names[t.Name] {
			errs = append(errs, gferrors.NewValidationError("config", fmt.Sprintf("timers[%d].name", i), t.Name, "duplicate name"))
		}
		names[t.Name] = true
	}
	for i, ch := range c.Checks {
		if err := ch.validate(i); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t TimerConfig) validate(i int) error {
	field := func(f string) string { return fmt.Sprintf("timers[%d].%s", i, f) }

	if err := validation.ValidateNotEmpty("config", field("name"), t.Name); err != nil {
		return err
	}
	if err := validation.ValidateOneOf("config", field("kind"), t.Kind, KindOneOff, KindPeriodic, KindCron); err != nil {
		return err
	}
	if t.Kind == KindCron {
		if _, err := crontask.Parse(t.Cron); err != nil {
			return err
		}
		if _, err := t.Loc(); err != nil {
			return gferrors.NewValidationError("config", field("location"), t.Location, err.Error())
		}
		return nil
	}
	if _, err := ParseDurationField(field("period"), t.Period); err != nil {
		return err
	}
	if _, err := ParseDurationField(field("initial_period"), t.InitialPeriod); err != nil {
		return err
	}
	return nil
}

func (c CheckConfig) validate(i int) error {
	field := func(f string) string { return fmt.Sprintf("checks[%d].%s", i, f) }

	if err := validation.ValidateNotEmpty("config", field("name"), c.Name); err != nil {
		return err
	}
	if err := validation.ValidateNotEmpty("config", field("url"), c.URL); err != nil {
		return err
	}
	interval, err := ParseDurationField(field("interval"), c.Interval)
	if err != nil {
		return err
	}
	if interval <= 0 {
		return gferrors.NewValidationError("config", field("interval"), c.Interval, "must be > 0")
	}
	if _, err := ParseDurationField(field("timeout"), c.Timeout); err != nil {
		return err
	}
	return nil
}

// Durations returns the parsed period and initial period.
func (t TimerConfig) Durations() (period, initial time.Duration, err error) {
	if period, err = ParseDurationField("period", t.Period); err != nil {
		return 0, 0, err
	}
	if initial, err = ParseDurationField("initial_period", t.InitialPeriod); err != nil {
		return 0, 0, err
	}
	return period, initial, nil
}

// Loc returns the cron location, UTC when unset.
func (t TimerConfig) Loc() (*time.Location, error) {
	if t.Location == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(t.Location)
}

// IntervalAndTimeout returns the parsed check timings.
func (c CheckConfig) IntervalAndTimeout() (interval, timeout time.Duration, err error) {
	if interval, err = ParseDurationField("interval", c.Interval); err != nil {
		return 0, 0, err
	}
	if timeout, err = ParseDurationField("timeout", c.Timeout); err != nil {
		return 0, 0, err
	}
	return interval, timeout, nil
}

// HostSchedConfig builds the scheduler loop configuration.
func (c *Config) HostSchedConfig(log logx.Logger, reg *metrics.Registry) (hostsched.Config, error) {
	minPeriod, err := ParseDurationOrDefault("scheduler.min_period", c.Scheduler.MinPeriod, hostsched.MinPeriod)
	if err != nil {
		return hostsched.Config{}, err
	}
	maxSleep, err := ParseDurationOrDefault("scheduler.max_sleep", c.Scheduler.MaxSleep, 60*time.Second)
	if err != nil {
		return hostsched.Config{}, err
	}
	return hostsched.Config{
		Name:      c.Scheduler.Name,
		Workers:   c.Scheduler.Workers,
		QueueSize: c.Scheduler.QueueSize,
		MinPeriod: minPeriod,
		MaxSleep:  maxSleep,
		Logger:    log,
		Metrics:   reg,
	}, nil
}

// LogConfig returns the logger configuration; output goes to stderr.
func (c *Config) LogConfig() logx.Config {
	return logx.Config{Level: c.Logging.Level, Format: c.Logging.Format}
}

// MetricsConfig returns the registry configuration for reg. A nil reg means
// the Prometheus default registerer.
func (c *Config) MetricsConfig(reg prometheus.Registerer) metrics.Config {
	var labels prometheus.Labels
	if len(c.Metrics.Labels) > 0 {
		labels = prometheus.Labels(c.Metrics.Labels)
	}
	return metrics.Config{
		Enabled:   c.Metrics.Enabled,
		Registry:  reg,
		Namespace: c.Metrics.Namespace,
		Labels:    labels,
	}
}
