// Package docops is a convenience layer over MongoDB collections: reads
// with pagination, search, single and bulk writes, and a collection-bound
// tool set on top of them.
//
// Every operation names its target with a Scope. Handles are obtained from
// a HandleSource, usually a *registry.Registry from pkg/storage/registry, so
// connections are shared across calls and replaced when they go stale.
package docops

import (
	"context"
	"log/slog"
	"time"

	"github.com/syntrixbase/mongokit/internal/core/events"
	"github.com/syntrixbase/mongokit/pkg/model"
	"github.com/syntrixbase/mongokit/pkg/storage/metrics"
	"github.com/syntrixbase/mongokit/pkg/storage/types"
)

// HandleSource hands out client handles by connection string. A pool size
// of zero asks for the source default; a non-zero size only applies when a
// handle is opened.
type HandleSource interface {
	AcquireWithPoolSize(ctx context.Context, uri string, poolSize int) (types.Handle, error)
}

// Scope names the target of an operation.
type Scope struct {
	URI        string
	Collection string
	// PoolSize is requested when the connection is first opened. Zero
	// means the source default.
	PoolSize int
}

func (s Scope) validate(kind error) error {
	if s.URI == "" {
		return model.Errorf(kind, "connection string is required")
	}
	if s.Collection == "" {
		return model.Errorf(kind, "collection name is required")
	}
	return nil
}

// Client runs document operations. It keeps no state between calls and is
// safe for concurrent use.
type Client struct {
	source  HandleSource
	logger  *slog.Logger
	metrics *metrics.Metrics
	events  *events.Emitter
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithEmitter publishes an event after every write that changed documents.
func WithEmitter(e *events.Emitter) Option {
	return func(c *Client) { c.events = e }
}

// New creates a Client that acquires handles from source.
func New(source HandleSource, opts ...Option) *Client {
	c := &Client{
		source: source,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "docops")
	return c
}

// ConnOption configures a Conn.
type ConnOption func(*Conn)

// WithPoolSize asks for a pool of n connections. It is honoured only if the
// connection string has no open handle yet.
func WithPoolSize(n int) ConnOption {
	return func(c *Conn) { c.poolSize = n }
}

// Conn returns operations bound to one connection string.
func (c *Client) Conn(uri string, opts ...ConnOption) *Conn {
	conn := &Conn{client: c, uri: uri}
	for _, opt := range opts {
		opt(conn)
	}
	return conn
}

// Collection returns the tool set bound to scope.
func (c *Client) Collection(scope Scope) *Collection {
	return &Collection{client: c, scope: scope}
}

// collection resolves scope to a collection of its handle's database.
func (c *Client) collection(ctx context.Context, scope Scope) (types.Collection, types.Handle, error) {
	h, err := c.source.AcquireWithPoolSize(ctx, scope.URI, scope.PoolSize)
	if err != nil {
		return nil, nil, err
	}
	return h.Collection(scope.Collection), h, nil
}

// observe records an operation that started at start. It is deferred by
// every operation that reaches the store.
func (c *Client) observe(op string, scope Scope, start time.Time, err error) {
	c.metrics.ObserveOperation(op, start, err)
	attrs := []any{
		"op", op,
		"collection", scope.Collection,
		"uri", types.RedactURI(scope.URI),
		"duration", time.Since(start),
	}
	if err != nil && !model.IsPreIO(err) {
		c.logger.Warn("Operation failed", append(attrs, "error", err)...)
		return
	}
	c.logger.Debug("Operation done", attrs...)
}

func (c *Client) emit(ctx context.Context, h types.Handle, scope Scope, op string, affected int64) {
	if affected <= 0 {
		return
	}
	c.events.Emit(ctx, h.Database(), scope.Collection, op, affected)
}
