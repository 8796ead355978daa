package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/syntrixbase/mongokit/internal/config"
	"github.com/syntrixbase/mongokit/internal/logging"
	"github.com/syntrixbase/mongokit/internal/services"
	"github.com/syntrixbase/mongokit/pkg/storage/types"
	"github.com/urfave/cli/v2"
)

const (
	managerKey      = "manager"
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(nil).RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the command line. A non-nil connector replaces the MongoDB
// driver, which is how tests run commands without a server.
func newApp(connector types.Connector) *cli.App {
	return &cli.App{
		Name:  "mongokit",
		Usage: "Query and modify MongoDB collections",
		// --where values may contain commas
		DisableSliceFlagSeparator: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file (default: config/config.yml and config/config.local.yml)",
			},
			&cli.StringFlag{
				Name:  "uri",
				Usage: "MongoDB connection string",
			},
			&cli.StringFlag{
				Name:  "database",
				Usage: "Database used when the connection string names none",
			},
			&cli.IntFlag{
				Name:  "pool-size",
				Usage: "Maximum connection pool size",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "nats-url",
				Usage: "Publish write events to this NATS server",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Timeout of a single command, 0 for none",
				Value: 30 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Print collected metrics to stderr on exit",
			},
		},
		Before: setup(connector),
		After:  teardown,
		Commands: []*cli.Command{
			pingCommand(),
			getCommand(),
			findCommand(),
			aggregateCommand(),
			searchCommand(),
			writeCommand(),
			bulkCommand(),
			watchCommand(),
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load("config")
	}
	if err != nil {
		return nil, err
	}

	if c.IsSet("uri") {
		cfg.Storage.URI = c.String("uri")
	}
	if c.IsSet("database") {
		cfg.Storage.Database = c.String("database")
	}
	if c.IsSet("pool-size") {
		cfg.Storage.PoolSize = c.Int("pool-size")
	}
	if c.IsSet("log-level") {
		level := c.String("log-level")
		cfg.Logging.Level = level
		cfg.Logging.Console.Level = level
		cfg.Logging.File.Level = level
	}
	if c.IsSet("nats-url") {
		cfg.Events.Enabled = true
		cfg.Events.NatsURL = c.String("nats-url")
	}
	if c.Bool("metrics") {
		cfg.Metrics.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup(connector types.Connector) cli.BeforeFunc {
	return func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		if err := logging.Initialize(cfg.Logging); err != nil {
			return err
		}

		m := services.NewManager(cfg, services.Options{
			Connector: connector,
			Logger:    slog.Default(),
		})
		if err := m.Init(c.Context); err != nil {
			return err
		}
		c.App.Metadata = map[string]interface{}{managerKey: m}
		return nil
	}
}

func teardown(c *cli.Context) error {
	m := manager(c)
	if m == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := m.Shutdown(ctx)
	if c.Bool("metrics") {
		if werr := m.WriteMetrics(c.App.ErrWriter); werr != nil {
			slog.Warn("Failed to write metrics", "error", werr)
		}
	}
	if lerr := logging.Shutdown(); lerr != nil {
		fmt.Fprintln(c.App.ErrWriter, lerr)
	}
	return err
}

func manager(c *cli.Context) *services.Manager {
	if c.App.Metadata == nil {
		return nil
	}
	m, _ := c.App.Metadata[managerKey].(*services.Manager)
	return m
}

// commandContext bounds one command by the --timeout flag.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	if d := c.Duration("timeout"); d > 0 {
		return context.WithTimeout(c.Context, d)
	}
	return context.WithCancel(c.Context)
}
