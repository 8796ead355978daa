package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/syntrixbase/mongokit/pkg/storage/types"
)

// StorageConfig holds the connection defaults.
type StorageConfig struct {
	// URI is used when a command does not name a connection string.
	URI string `yaml:"uri"`
	// Database is used when the connection string names no database.
	Database       string        `yaml:"database"`
	PoolSize       int           `yaml:"pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		URI:            "mongodb://localhost:27017",
		Database:       types.DefaultDatabase,
		PoolSize:       types.DefaultPoolSize,
		ConnectTimeout: 10 * time.Second,
	}
}

func (c *StorageConfig) ApplyDefaults() {
	defaults := DefaultStorageConfig()
	if c.URI == "" {
		c.URI = defaults.URI
	}
	if c.Database == "" {
		c.Database = defaults.Database
	}
	if c.PoolSize == 0 {
		c.PoolSize = defaults.PoolSize
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaults.ConnectTimeout
	}
}

func (c *StorageConfig) ApplyEnvOverrides() {
	if val := os.Getenv("MONGO_URI"); val != "" {
		c.URI = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database = val
	}
	if val := os.Getenv("MONGOKIT_POOL_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.PoolSize = n
		}
	}
}

func (c *StorageConfig) ResolvePaths(_ string) {}

func (c *StorageConfig) Validate() error {
	if c.PoolSize <= 0 {
		return fmt.Errorf("storage.pool_size must be positive, got %d", c.PoolSize)
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("storage.connect_timeout cannot be negative")
	}
	return nil
}
