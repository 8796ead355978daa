package config

import (
	"fmt"
	"regexp"
)

// MetricsConfig controls the Prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Namespace: "mongokit"}
}

func (c *MetricsConfig) ApplyDefaults() {
	if c.Namespace == "" {
		c.Namespace = "mongokit"
	}
}

func (c *MetricsConfig) ApplyEnvOverrides() {}

func (c *MetricsConfig) ResolvePaths(_ string) {}

var metricNamespace = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func (c *MetricsConfig) Validate() error {
	if !metricNamespace.MatchString(c.Namespace) {
		return fmt.Errorf("invalid metrics namespace: %q", c.Namespace)
	}
	return nil
}
