package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace overrides the default "goasync" namespace for metrics.
	Namespace string

	// Labels are additional labels to add to all metrics.
	Labels prometheus.Labels
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Registry:  prometheus.DefaultRegisterer,
		Namespace: "goasync",
		Labels:    nil,
	}
}

// Build returns a Registry for cfg, or nil when metrics are disabled. A
// config matching the defaults returns DefaultRegistry, whose collectors
// are already registered.
func (cfg Config) Build() *Registry {
	if !cfg.Enabled {
		return nil
	}
	if cfg.isDefault() {
		return DefaultRegistry
	}
	return NewRegistryWithConfig(cfg)
}

func (cfg Config) isDefault() bool {
	return (cfg.Registry == nil || cfg.Registry == prometheus.DefaultRegisterer) &&
		(cfg.Namespace == "" || cfg.Namespace == "goasync") &&
		len(cfg.Labels) == 0
}
