// Package services assembles the runtime of the mongokit command: the
// connection registry, the document client, metrics and the optional write
// event stream.
package services

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/syntrixbase/mongokit/internal/config"
	"github.com/syntrixbase/mongokit/internal/core/events"
	"github.com/syntrixbase/mongokit/internal/core/pubsub"
	"github.com/syntrixbase/mongokit/pkg/docops"
	"github.com/syntrixbase/mongokit/pkg/storage/metrics"
	"github.com/syntrixbase/mongokit/pkg/storage/registry"
	"github.com/syntrixbase/mongokit/pkg/storage/types"
)

const clientName = "mongokit"

type Options struct {
	// Connector replaces the function used to open MongoDB handles.
	Connector types.Connector
	Logger    *slog.Logger
}

// eventsProvider is the part of the NATS provider the manager uses.
type eventsProvider interface {
	Connect(ctx context.Context) error
	NewPublisher(ctx context.Context, opts pubsub.PublisherOptions) (pubsub.Publisher, error)
	NewConsumer(opts pubsub.ConsumerOptions) (pubsub.Consumer, error)
	Close() error
}

type Manager struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	promRegistry *prometheus.Registry
	metrics      *metrics.Metrics
	registry     *registry.Registry
	client       *docops.Client

	eventsProvider eventsProvider
	emitter        *events.Emitter
}

func NewManager(cfg *config.Config, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
	}
}

func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Client is nil until Init succeeds.
func (m *Manager) Client() *docops.Client {
	return m.client
}

func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// Gatherer returns nil when metrics are disabled.
func (m *Manager) Gatherer() prometheus.Gatherer {
	if m.promRegistry == nil {
		return nil
	}
	return m.promRegistry
}

// Scope targets collection through the configured connection string.
func (m *Manager) Scope(collection string) docops.Scope {
	return docops.Scope{URI: m.cfg.Storage.URI, Collection: collection}
}
