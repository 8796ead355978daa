package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/syntrixbase/mongokit/pkg/model"
	"github.com/syntrixbase/mongokit/pkg/storage/metrics"
	"github.com/syntrixbase/mongokit/pkg/storage/mongo"
	"github.com/syntrixbase/mongokit/pkg/storage/types"
)

const staleCloseTimeout = 10 * time.Second

// Registry maps connection strings to shared client handles. It holds at
// most one handle per connection string and replaces handles that report a
// lost connection. The zero value is not usable, use New.
type Registry struct {
	connector      types.Connector
	poolSize       int
	database       string
	connectTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	handles map[string]types.Handle
}

// Option configures a Registry.
type Option func(*Registry)

// WithConnector replaces the function used to open handles.
func WithConnector(c types.Connector) Option {
	return func(r *Registry) { r.connector = c }
}

// WithPoolSize sets the pool size used when a caller does not ask for one.
func WithPoolSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.poolSize = n
		}
	}
}

// WithDefaultDatabase sets the database used for connection strings that
// name none.
func WithDefaultDatabase(name string) Option {
	return func(r *Registry) {
		if name != "" {
			r.database = name
		}
	}
}

// WithConnectTimeout bounds how long opening a handle may take.
func WithConnectTimeout(d time.Duration) Option {
	return func(r *Registry) { r.connectTimeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// New creates an empty registry. Handles are opened lazily on Acquire.
func New(opts ...Option) *Registry {
	r := &Registry{
		poolSize: types.DefaultPoolSize,
		database: types.DefaultDatabase,
		logger:   slog.Default(),
		locks:    make(map[string]*sync.Mutex),
		handles:  make(map[string]types.Handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.connector == nil {
		r.connector = mongo.Connector(r.logger)
	}
	r.logger = r.logger.With("component", "registry")
	return r
}

// Acquire returns the handle for uri, connecting on first use and
// reconnecting when the cached handle is no longer connected.
func (r *Registry) Acquire(ctx context.Context, uri string) (types.Handle, error) {
	return r.AcquireWithPoolSize(ctx, uri, 0)
}

// AcquireWithPoolSize is Acquire with an explicit pool size. A zero size
// means the registry default. The size only applies when a handle is opened;
// an open handle is returned as is whatever size it was opened with.
func (r *Registry) AcquireWithPoolSize(ctx context.Context, uri string, poolSize int) (types.Handle, error) {
	if uri == "" {
		return nil, model.Errorf(model.ErrConfig, "connection string is required")
	}
	if poolSize < 0 {
		return nil, model.Errorf(model.ErrConfig, "pool size must be positive, got %d", poolSize)
	}
	requested := poolSize
	if poolSize == 0 {
		poolSize = r.poolSize
	}

	lock := r.lockFor(uri)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	current := r.handles[uri]
	r.mu.Unlock()

	if current != nil && current.IsConnected() {
		if requested != 0 && requested != current.PoolSize() {
			r.logger.Debug("Pool size ignored for open handle",
				"uri", types.RedactURI(uri),
				"handle", current.ID(),
				"requested", requested,
				"pool_size", current.PoolSize())
		}
		return current, nil
	}

	h, err := r.connect(ctx, uri, poolSize)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.handles[uri] = h
	open := len(r.handles)
	r.mu.Unlock()
	r.metrics.SetOpenHandles(open)

	if current != nil {
		r.metrics.ObserveReconnect()
		r.logger.Info("Replaced stale handle",
			"uri", types.RedactURI(uri),
			"stale", current.ID(),
			"handle", h.ID())
		go r.closeStale(current)
	}
	return h, nil
}

func (r *Registry) connect(ctx context.Context, uri string, poolSize int) (types.Handle, error) {
	h, err := r.connector(ctx, uri, types.ConnectOptions{
		PoolSize:        poolSize,
		DefaultDatabase: r.database,
		ConnectTimeout:  r.connectTimeout,
	})
	r.metrics.ObserveConnect(err)
	if err != nil {
		r.logger.Warn("Failed to connect", "uri", types.RedactURI(uri), "error", err)
		if model.IsCanceled(err) {
			return nil, model.ErrCanceled
		}
		return nil, &model.StoreError{Op: "connect", Message: err.Error(), Err: err}
	}
	return h, nil
}

func (r *Registry) closeStale(h types.Handle) {
	ctx, cancel := context.WithTimeout(context.Background(), staleCloseTimeout)
	defer cancel()
	if err := h.Close(ctx); err != nil {
		r.logger.Warn("Failed to close stale handle", "handle", h.ID(), "error", err)
	}
}

func (r *Registry) lockFor(uri string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[uri]
	if !ok {
		l = &sync.Mutex{}
		r.locks[uri] = l
	}
	return l
}

// CloseAll closes every handle and empties the registry, including the
// per connection string locks. Every handle is closed even when some fail;
// the failures are joined into one error matching model.ErrClose. Calling
// it on an empty registry is a no-op. It must not run concurrently with
// Acquire or with operations using the handles.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]types.Handle)
	r.locks = make(map[string]*sync.Mutex)
	r.mu.Unlock()
	r.metrics.SetOpenHandles(0)

	var errs []error
	for uri, h := range handles {
		if err := h.Close(ctx); err != nil {
			r.logger.Warn("Failed to close handle", "uri", types.RedactURI(uri), "handle", h.ID(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", types.RedactURI(uri), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", model.ErrClose, errors.Join(errs...))
	}
	if len(handles) > 0 {
		r.logger.Info("Closed all handles", "count", len(handles))
	}
	return nil
}

// Len returns the number of cached handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// URIs returns the cached connection strings in sorted order.
func (r *Registry) URIs() []string {
	r.mu.Lock()
	uris := make([]string, 0, len(r.handles))
	for uri := range r.handles {
		uris = append(uris, uri)
	}
	r.mu.Unlock()
	sort.Strings(uris)
	return uris
}

// PoolSize returns the default pool size.
func (r *Registry) PoolSize() int {
	return r.poolSize
}
