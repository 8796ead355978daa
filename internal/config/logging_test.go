package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()

	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "logs", cfg.Dir)
	assert.Equal(t, 100, cfg.Rotation.MaxSize)
	assert.True(t, cfg.Rotation.Compress)
	assert.True(t, cfg.Console.Enabled)
	assert.False(t, cfg.File.Enabled)
}

func TestLoggingConfigYAMLParsing(t *testing.T) {
	yamlData := `
level: "debug"
format: "json"
dir: "/var/log/mongokit"
rotation:
  max_size: 50
  max_backups: 5
  max_age: 14
  compress: false
console:
  enabled: false
file:
  enabled: true
  level: "info"
  format: "json"
`

	var cfg LoggingConfig
	err := yaml.Unmarshal([]byte(yamlData), &cfg)

	assert.NoError(t, err)
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "/var/log/mongokit", cfg.Dir)
	assert.Equal(t, 50, cfg.Rotation.MaxSize)
	assert.Equal(t, 14, cfg.Rotation.MaxAge)
	assert.False(t, cfg.Console.Enabled)
	assert.True(t, cfg.File.Enabled)
}

func TestLoggingConfigApplyDefaults(t *testing.T) {
	cfg := &LoggingConfig{}
	cfg.ApplyDefaults()

	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "logs", cfg.Dir)
	assert.Equal(t, 10, cfg.Rotation.MaxBackups)
	assert.Equal(t, 30, cfg.Rotation.MaxAge)
	assert.True(t, cfg.Console.Enabled)
	assert.Equal(t, "warn", cfg.Console.Level)
	assert.False(t, cfg.File.Enabled)
}

func TestLoggingConfigApplyDefaultsWithPartialConfig(t *testing.T) {
	cfg := &LoggingConfig{
		Level:   "debug",
		Format:  "json",
		Console: ConsoleConfig{Enabled: true, Level: "error"},
		File:    FileConfig{Enabled: true},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, "error", cfg.Console.Level)
	assert.Equal(t, "json", cfg.Console.Format)
	assert.Equal(t, "debug", cfg.File.Level)
	assert.Equal(t, "json", cfg.File.Format)
}

func TestLoggingConfigResolvePaths(t *testing.T) {
	tests := []struct {
		name     string
		dir      string
		expected string
	}{
		{"relative path next to config dir", "logs", "/app/logs"},
		{"relative with subdirs", "logs/cli", "/app/logs/cli"},
		{"parent relative to config dir", "../var/logs", "/app/var/logs"},
		{"absolute path unchanged", "/var/log/mongokit", "/var/log/mongokit"},
		{"empty dir unchanged", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &LoggingConfig{Dir: tt.dir}
			cfg.ResolvePaths("/app/config")
			assert.Equal(t, tt.expected, cfg.Dir)
		})
	}
}

func TestLoggingConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		cfg         LoggingConfig
		expectError bool
	}{
		{
			name:        "valid config",
			cfg:         LoggingConfig{Level: "info", Format: "text", Dir: "logs"},
			expectError: false,
		},
		{
			name:        "invalid level",
			cfg:         LoggingConfig{Level: "verbose", Format: "text", Dir: "logs"},
			expectError: true,
		},
		{
			name:        "invalid format",
			cfg:         LoggingConfig{Level: "info", Format: "xml", Dir: "logs"},
			expectError: true,
		},
		{
			name:        "empty dir without file output",
			cfg:         LoggingConfig{Level: "info", Format: "text"},
			expectError: false,
		},
		{
			name: "empty dir with file output",
			cfg: LoggingConfig{
				Level: "info", Format: "text",
				File: FileConfig{Enabled: true},
			},
			expectError: true,
		},
		{
			name: "invalid console level when enabled",
			cfg: LoggingConfig{
				Level: "info", Format: "text", Dir: "logs",
				Console: ConsoleConfig{Enabled: true, Level: "loud"},
			},
			expectError: true,
		},
		{
			name: "invalid console level ignored when disabled",
			cfg: LoggingConfig{
				Level: "info", Format: "text", Dir: "logs",
				Console: ConsoleConfig{Level: "loud"},
			},
			expectError: false,
		},
		{
			name: "invalid file format when enabled",
			cfg: LoggingConfig{
				Level: "info", Format: "text", Dir: "logs",
				File: FileConfig{Enabled: true, Level: "info", Format: "xml"},
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoggingConfigApplyEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	cfg := LoggingConfig{Level: "info", Console: ConsoleConfig{Level: "warn"}}
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "warn", cfg.Console.Level)

	t.Setenv("LOG_LEVEL", "Error")
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "error", cfg.Level)
	assert.Equal(t, "error", cfg.Console.Level)
	assert.Equal(t, "error", cfg.File.Level)
}
