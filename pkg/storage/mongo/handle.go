package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syntrixbase/mongokit/pkg/storage/types"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/description"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultConnectTimeout = 10 * time.Second

// Handle is a MongoDB client bound to one connection string. Its connection
// state follows the driver's topology events.
type Handle struct {
	id       string
	uri      string
	database string
	poolSize int
	logger   *slog.Logger

	client    *mongo.Client
	connected atomic.Bool
	isClosed  atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

var _ types.Handle = (*Handle)(nil)

// Connector returns a types.Connector that opens MongoDB handles and logs
// state changes to logger.
func Connector(logger *slog.Logger) types.Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, uri string, opts types.ConnectOptions) (types.Handle, error) {
		return Connect(ctx, uri, opts, logger)
	}
}

// Connect opens a client for uri and pings it. The handle is connected when
// Connect returns without error.
func Connect(ctx context.Context, uri string, opts types.ConnectOptions, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = types.DefaultPoolSize
	}
	if opts.DefaultDatabase == "" {
		opts.DefaultDatabase = types.DefaultDatabase
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}

	h := &Handle{
		id:       types.NewHandleID(),
		uri:      uri,
		database: types.DatabaseFromURI(uri, opts.DefaultDatabase),
		poolSize: opts.PoolSize,
	}
	h.logger = logger.With("handle", h.id, "uri", types.RedactURI(uri))

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(uint64(opts.PoolSize)).
		SetServerMonitor(&event.ServerMonitor{
			TopologyDescriptionChanged: h.onTopologyChanged,
		})

	// timeouts in the URI win
	if clientOpts.ConnectTimeout == nil {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}
	if clientOpts.ServerSelectionTimeout == nil {
		clientOpts.SetServerSelectionTimeout(opts.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping: %w", err)
	}

	h.client = client
	h.connected.Store(true)
	h.logger.Debug("Handle connected", "database", h.database, "pool_size", h.poolSize)
	return h, nil
}

// onTopologyChanged runs with the topology locked and must not issue
// operations on the client.
func (h *Handle) onTopologyChanged(e *event.TopologyDescriptionChangedEvent) {
	if h.isClosed.Load() {
		return
	}
	now := topologyReachable(e.NewDescription)
	if was := h.connected.Swap(now); was != now {
		h.logger.Info("Handle connection state changed", "connected", now)
	}
}

func topologyReachable(t description.Topology) bool {
	for _, s := range t.Servers {
		if s.Kind != description.Unknown {
			return true
		}
	}
	return false
}

func (h *Handle) ID() string       { return h.id }
func (h *Handle) URI() string      { return h.uri }
func (h *Handle) Database() string { return h.database }
func (h *Handle) PoolSize() int    { return h.poolSize }

// Client returns the underlying MongoDB client
func (h *Handle) Client() *mongo.Client {
	return h.client
}

func (h *Handle) IsConnected() bool {
	return h.connected.Load()
}

func (h *Handle) Collection(name string) types.Collection {
	return h.client.Database(h.database).Collection(name)
}

// Close disconnects the client. Later calls return the first result.
func (h *Handle) Close(ctx context.Context) error {
	h.closeOnce.Do(func() {
		h.isClosed.Store(true)
		h.connected.Store(false)
		if h.client != nil {
			h.closeErr = h.client.Disconnect(ctx)
		}
		h.logger.Debug("Handle closed")
	})
	return h.closeErr
}
