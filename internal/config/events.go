package config

import (
	"fmt"
	"os"
)

// EventsConfig controls the write event stream.
type EventsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	NatsURL       string `yaml:"nats_url"`
	StreamName    string `yaml:"stream_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
	// Storage is "file" or "memory".
	Storage string `yaml:"storage"`
}

func DefaultEventsConfig() EventsConfig {
	return EventsConfig{
		NatsURL:       "nats://localhost:4222",
		StreamName:    "MONGOKIT_WRITES",
		SubjectPrefix: "mongokit",
		Storage:       "file",
	}
}

func (c *EventsConfig) ApplyDefaults() {
	defaults := DefaultEventsConfig()
	if c.NatsURL == "" {
		c.NatsURL = defaults.NatsURL
	}
	if c.StreamName == "" {
		c.StreamName = defaults.StreamName
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = defaults.SubjectPrefix
	}
	if c.Storage == "" {
		c.Storage = defaults.Storage
	}
}

// ApplyEnvOverrides enables events when NATS_URL is set.
func (c *EventsConfig) ApplyEnvOverrides() {
	if val := os.Getenv("NATS_URL"); val != "" {
		c.NatsURL = val
		c.Enabled = true
	}
}

func (c *EventsConfig) ResolvePaths(_ string) {}

func (c *EventsConfig) Validate() error {
	if c.Storage != "file" && c.Storage != "memory" {
		return fmt.Errorf("invalid events.storage: %s (must be file or memory)", c.Storage)
	}
	if c.Enabled && c.NatsURL == "" {
		return fmt.Errorf("events.nats_url is required when events are enabled")
	}
	return nil
}
