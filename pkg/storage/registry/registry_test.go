package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/mongokit/pkg/model"
	"github.com/syntrixbase/mongokit/pkg/storage/metrics"
	"github.com/syntrixbase/mongokit/pkg/storage/types"
)

type fakeHandle struct {
	id        string
	uri       string
	database  string
	poolSize  int
	connected atomic.Bool
	closes    atomic.Int32
	closeErr  error
}

func (h *fakeHandle) ID() string                              { return h.id }
func (h *fakeHandle) URI() string                             { return h.uri }
func (h *fakeHandle) Database() string                        { return h.database }
func (h *fakeHandle) PoolSize() int                           { return h.poolSize }
func (h *fakeHandle) IsConnected() bool                       { return h.connected.Load() }
func (h *fakeHandle) Collection(name string) types.Collection { return nil }
func (h *fakeHandle) Close(ctx context.Context) error {
	h.closes.Add(1)
	h.connected.Store(false)
	return h.closeErr
}

type fakeConnector struct {
	mu      sync.Mutex
	calls   int
	handles []*fakeHandle
	err     error
	delay   time.Duration
	// closeErr is set on every handle created
	closeErr error
}

func (c *fakeConnector) connect(ctx context.Context, uri string, opts types.ConnectOptions) (types.Handle, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	h := &fakeHandle{
		id:       fmt.Sprintf("h%d", c.calls),
		uri:      uri,
		database: types.DatabaseFromURI(uri, opts.DefaultDatabase),
		poolSize: opts.PoolSize,
		closeErr: c.closeErr,
	}
	h.connected.Store(true)
	c.handles = append(c.handles, h)
	return h, nil
}

func (c *fakeConnector) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func newTestRegistry(opts ...Option) (*Registry, *fakeConnector) {
	fc := &fakeConnector{}
	return New(append([]Option{WithConnector(fc.connect)}, opts...)...), fc
}

func TestAcquire_EmptyURI(t *testing.T) {
	r, fc := newTestRegistry()

	for i := 0; i < 2; i++ {
		h, err := r.Acquire(context.Background(), "")
		assert.ErrorIs(t, err, model.ErrConfig)
		assert.Nil(t, h)
	}
	assert.Equal(t, 0, fc.Calls())
	assert.Equal(t, 0, r.Len())
}

func TestAcquire_Reuse(t *testing.T) {
	r, fc := newTestRegistry()
	ctx := context.Background()

	h1, err := r.Acquire(ctx, "mongodb://localhost/app")
	require.NoError(t, err)
	h2, err := r.Acquire(ctx, "mongodb://localhost/app")
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, 1, fc.Calls())
	assert.Equal(t, "app", h1.Database())
	assert.Equal(t, types.DefaultPoolSize, h1.PoolSize())

	h3, err := r.Acquire(ctx, "mongodb://localhost")
	require.NoError(t, err)
	assert.NotSame(t, h1, h3)
	assert.Equal(t, types.DefaultDatabase, h3.Database())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"mongodb://localhost", "mongodb://localhost/app"}, r.URIs())
}

func TestAcquire_ReconnectsStaleHandle(t *testing.T) {
	m := metrics.New(nil, "test")
	r, fc := newTestRegistry(WithMetrics(m))
	ctx := context.Background()
	uri := "mongodb://localhost/app"

	h1, err := r.Acquire(ctx, uri)
	require.NoError(t, err)
	h1.(*fakeHandle).connected.Store(false)

	h2, err := r.Acquire(ctx, uri)
	require.NoError(t, err)
	assert.NotSame(t, h1, h2)
	assert.True(t, h2.IsConnected())
	assert.Equal(t, 2, fc.Calls())
	assert.Equal(t, 1, r.Len())

	// The stale handle is closed in the background
	assert.Eventually(t, func() bool {
		return h1.(*fakeHandle).closes.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), h2.(*fakeHandle).closes.Load())

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Reconnects))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Connects.WithLabelValues(metrics.ResultOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OpenHandles))
}

func TestAcquire_ReconnectFailureKeepsStaleEntry(t *testing.T) {
	r, fc := newTestRegistry()
	ctx := context.Background()
	uri := "mongodb://localhost/app"

	h1, err := r.Acquire(ctx, uri)
	require.NoError(t, err)
	h1.(*fakeHandle).connected.Store(false)

	fc.mu.Lock()
	fc.err = errors.New("connection refused")
	fc.mu.Unlock()

	_, err = r.Acquire(ctx, uri)
	assert.ErrorIs(t, err, model.ErrStore)
	assert.False(t, model.IsPreIO(err))
	var se *model.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "connect", se.Op)
	assert.Equal(t, "connection refused", se.Message)

	// A later acquire retries once the store is reachable again
	fc.mu.Lock()
	fc.err = nil
	fc.mu.Unlock()

	h2, err := r.Acquire(ctx, uri)
	require.NoError(t, err)
	assert.True(t, h2.IsConnected())
	assert.Equal(t, 3, fc.Calls())
}

func TestAcquire_ConnectCanceled(t *testing.T) {
	r, fc := newTestRegistry()
	fc.err = context.DeadlineExceeded

	_, err := r.Acquire(context.Background(), "mongodb://localhost/app")
	assert.ErrorIs(t, err, model.ErrCanceled)
	assert.Equal(t, 0, r.Len())
}

func TestAcquireWithPoolSize(t *testing.T) {
	r, _ := newTestRegistry(WithPoolSize(8))
	ctx := context.Background()

	_, err := r.AcquireWithPoolSize(ctx, "mongodb://localhost/app", -1)
	assert.ErrorIs(t, err, model.ErrConfig)

	h, err := r.Acquire(ctx, "mongodb://localhost/a")
	require.NoError(t, err)
	assert.Equal(t, 8, h.PoolSize())

	h1, err := r.AcquireWithPoolSize(ctx, "mongodb://localhost/b", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, h1.PoolSize())

	// The pool size of an open handle is not changed
	h2, err := r.AcquireWithPoolSize(ctx, "mongodb://localhost/b", 50)
	require.NoError(t, err)
	assert.Same(t, h1, h2)
	assert.Equal(t, 20, h2.PoolSize())
}

func TestAcquire_ConcurrentSingleHandle(t *testing.T) {
	r, fc := newTestRegistry()
	fc.delay = 20 * time.Millisecond
	ctx := context.Background()

	const n = 16
	results := make([]types.Handle, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := r.Acquire(ctx, "mongodb://localhost/app")
			assert.NoError(t, err)
			results[i] = h
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, fc.Calls())
	for _, h := range results {
		assert.Same(t, results[0], h)
	}
}

func TestAcquire_DistinctURIsDoNotBlock(t *testing.T) {
	r, fc := newTestRegistry()
	fc.delay = 50 * time.Millisecond
	ctx := context.Background()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Acquire(ctx, fmt.Sprintf("mongodb://host%d/app", i))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 4, fc.Calls())
	assert.Equal(t, 4, r.Len())
	assert.Less(t, time.Since(start), 180*time.Millisecond)
}

func TestCloseAll(t *testing.T) {
	m := metrics.New(nil, "test")
	r, fc := newTestRegistry(WithMetrics(m))
	ctx := context.Background()

	// Empty registry
	require.NoError(t, r.CloseAll(ctx))

	_, err := r.Acquire(ctx, "mongodb://a/app")
	require.NoError(t, err)
	_, err = r.Acquire(ctx, "mongodb://b/app")
	require.NoError(t, err)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.OpenHandles))

	assert.Len(t, r.locks, 2)

	require.NoError(t, r.CloseAll(ctx))
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.URIs())
	assert.Empty(t, r.locks)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.OpenHandles))
	for _, h := range fc.handles {
		assert.Equal(t, int32(1), h.closes.Load())
	}

	// Idempotent
	require.NoError(t, r.CloseAll(ctx))
	for _, h := range fc.handles {
		assert.Equal(t, int32(1), h.closes.Load())
	}

	// Reusable after shutdown
	h, err := r.Acquire(ctx, "mongodb://a/app")
	require.NoError(t, err)
	assert.True(t, h.IsConnected())
	assert.Equal(t, 3, fc.Calls())
}

func TestCloseAll_ThenAcquire(t *testing.T) {
	r, fc := newTestRegistry()
	ctx := context.Background()

	_, err := r.Acquire(ctx, "mongodb://a/app")
	require.NoError(t, err)
	require.NoError(t, r.CloseAll(ctx))

	h, err := r.Acquire(ctx, "mongodb://a/app")
	require.NoError(t, err)
	assert.True(t, h.IsConnected())
	assert.Equal(t, 2, fc.Calls())
	assert.Len(t, r.locks, 1)
}

func TestCloseAll_BestEffort(t *testing.T) {
	r, fc := newTestRegistry()
	ctx := context.Background()

	fc.closeErr = errors.New("disconnect failed")
	_, err := r.Acquire(ctx, "mongodb://a/app")
	require.NoError(t, err)
	_, err = r.Acquire(ctx, "mongodb://b/app")
	require.NoError(t, err)
	fc.closeErr = nil
	_, err = r.Acquire(ctx, "mongodb://c/app")
	require.NoError(t, err)

	err = r.CloseAll(ctx)
	assert.ErrorIs(t, err, model.ErrClose)
	assert.Contains(t, err.Error(), "disconnect failed")

	// Every handle was closed despite the failures
	for _, h := range fc.handles {
		assert.Equal(t, int32(1), h.closes.Load(), h.id)
	}
	assert.Equal(t, 0, r.Len())
}

func TestNew_Defaults(t *testing.T) {
	r := New()
	assert.NotNil(t, r.connector)
	assert.Equal(t, types.DefaultPoolSize, r.PoolSize())
	assert.Equal(t, types.DefaultDatabase, r.database)

	r = New(WithPoolSize(0), WithDefaultDatabase(""), WithLogger(nil))
	assert.Equal(t, types.DefaultPoolSize, r.PoolSize())
	assert.Equal(t, types.DefaultDatabase, r.database)

	r = New(WithPoolSize(9), WithDefaultDatabase("app"))
	assert.Equal(t, 9, r.PoolSize())
	assert.Equal(t, "app", r.database)
}

func TestAcquire_PassesConnectOptions(t *testing.T) {
	var got types.ConnectOptions
	r := New(
		WithPoolSize(7),
		WithDefaultDatabase("inventory"),
		WithConnectTimeout(3*time.Second),
		WithConnector(func(ctx context.Context, uri string, opts types.ConnectOptions) (types.Handle, error) {
			got = opts
			h := &fakeHandle{id: "h1", uri: uri, database: opts.DefaultDatabase, poolSize: opts.PoolSize}
			h.connected.Store(true)
			return h, nil
		}),
	)

	h, err := r.Acquire(context.Background(), "mongodb://localhost:27017")
	require.NoError(t, err)
	assert.Equal(t, "inventory", h.Database())
	assert.Equal(t, types.ConnectOptions{PoolSize: 7, DefaultDatabase: "inventory", ConnectTimeout: 3 * time.Second}, got)
}
