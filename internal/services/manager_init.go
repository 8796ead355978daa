package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/syntrixbase/mongokit/internal/core/events"
	"github.com/syntrixbase/mongokit/internal/core/pubsub"
	natspubsub "github.com/syntrixbase/mongokit/internal/core/pubsub/nats"
	"github.com/syntrixbase/mongokit/pkg/docops"
	"github.com/syntrixbase/mongokit/pkg/storage/metrics"
	"github.com/syntrixbase/mongokit/pkg/storage/registry"
)

var eventsProviderFactory = func(url string, logger *slog.Logger) eventsProvider {
	return natspubsub.NewProvider(url, clientName, logger)
}

// Init builds the runtime. No MongoDB connection is opened here; handles
// are acquired on first use. The event stream is connected when enabled.
func (m *Manager) Init(ctx context.Context) error {
	m.initMetrics()
	m.initRegistry()

	if m.cfg.Events.Enabled {
		if err := m.initEvents(ctx); err != nil {
			return err
		}
	}

	m.client = docops.New(m.registry,
		docops.WithLogger(m.logger),
		docops.WithMetrics(m.metrics),
		docops.WithEmitter(m.emitter),
	)
	return nil
}

func (m *Manager) initMetrics() {
	if !m.cfg.Metrics.Enabled {
		return
	}
	m.promRegistry = prometheus.NewRegistry()
	m.metrics = metrics.New(m.promRegistry, m.cfg.Metrics.Namespace)
}

func (m *Manager) initRegistry() {
	opts := []registry.Option{
		registry.WithPoolSize(m.cfg.Storage.PoolSize),
		registry.WithDefaultDatabase(m.cfg.Storage.Database),
		registry.WithConnectTimeout(m.cfg.Storage.ConnectTimeout),
		registry.WithLogger(m.logger),
		registry.WithMetrics(m.metrics),
	}
	if m.opts.Connector != nil {
		opts = append(opts, registry.WithConnector(m.opts.Connector))
	}
	m.registry = registry.New(opts...)
}

func (m *Manager) initEvents(ctx context.Context) error {
	cfg := m.cfg.Events
	provider := eventsProviderFactory(cfg.NatsURL, m.logger)
	if err := provider.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect event stream: %w", err)
	}

	pub, err := provider.NewPublisher(ctx, pubsub.PublisherOptions{
		StreamName:    cfg.StreamName,
		SubjectPrefix: cfg.SubjectPrefix,
		Storage:       pubsub.ParseStorageType(cfg.Storage),
		OnPublish:     m.metrics.ObservePublish,
	})
	if err != nil {
		_ = provider.Close()
		return fmt.Errorf("failed to create event publisher: %w", err)
	}

	m.eventsProvider = provider
	m.emitter = events.NewEmitter(pub, m.logger)
	m.logger.Info("Write events enabled", "stream", cfg.StreamName, "prefix", cfg.SubjectPrefix)
	return nil
}

// Subscribe streams the write events of database, or of one collection of
// it. An empty database subscribes to every event.
func (m *Manager) Subscribe(ctx context.Context, database, collection string) (<-chan pubsub.Message, error) {
	if m.eventsProvider == nil {
		return nil, fmt.Errorf("write events are disabled")
	}
	opts := pubsub.DefaultConsumerOptions()
	opts.StreamName = m.cfg.Events.StreamName
	opts.FilterSubject = events.FilterSubject(m.cfg.Events.SubjectPrefix, database, collection)
	opts.DeliverNew = true

	consumer, err := m.eventsProvider.NewConsumer(opts)
	if err != nil {
		return nil, err
	}
	return consumer.Subscribe(ctx)
}
