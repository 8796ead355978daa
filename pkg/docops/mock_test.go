package docops

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/mongokit/pkg/storage/types"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MockCollection is a mock implementation of types.Collection
type MockCollection struct {
	mock.Mock
}

func (m *MockCollection) Name() string {
	return "users"
}

func (m *MockCollection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	args := m.Called(ctx, filter, opts)
	return cursorArg(args), args.Error(1)
}

func (m *MockCollection) Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	args := m.Called(ctx, pipeline, opts)
	return cursorArg(args), args.Error(1)
}

func (m *MockCollection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	args := m.Called(ctx, filter, opts)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCollection) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	args := m.Called(ctx, document)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mongo.InsertOneResult), args.Error(1)
}

func (m *MockCollection) ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	args := m.Called(ctx, filter, replacement)
	return updateResultArg(args), args.Error(1)
}

func (m *MockCollection) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	args := m.Called(ctx, filter, update)
	return updateResultArg(args), args.Error(1)
}

func (m *MockCollection) UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	args := m.Called(ctx, filter, update)
	return updateResultArg(args), args.Error(1)
}

func (m *MockCollection) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	args := m.Called(ctx, filter)
	return deleteResultArg(args), args.Error(1)
}

func (m *MockCollection) DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	args := m.Called(ctx, filter)
	return deleteResultArg(args), args.Error(1)
}

func (m *MockCollection) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	args := m.Called(ctx, models, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mongo.BulkWriteResult), args.Error(1)
}

func cursorArg(args mock.Arguments) *mongo.Cursor {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*mongo.Cursor)
}

func updateResultArg(args mock.Arguments) *mongo.UpdateResult {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*mongo.UpdateResult)
}

func deleteResultArg(args mock.Arguments) *mongo.DeleteResult {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*mongo.DeleteResult)
}

// cursorOf returns a cursor over in-memory documents.
func cursorOf(t *testing.T, docs ...interface{}) *mongo.Cursor {
	t.Helper()
	c, err := mongo.NewCursorFromDocuments(docs, nil, nil)
	require.NoError(t, err)
	return c
}

type fakeHandle struct {
	database string
	coll     *MockCollection
	names    []string
}

func (h *fakeHandle) ID() string                      { return "h1" }
func (h *fakeHandle) URI() string                     { return testURI }
func (h *fakeHandle) Database() string                { return h.database }
func (h *fakeHandle) PoolSize() int                   { return types.DefaultPoolSize }
func (h *fakeHandle) IsConnected() bool               { return true }
func (h *fakeHandle) Close(ctx context.Context) error { return nil }

func (h *fakeHandle) Collection(name string) types.Collection {
	h.names = append(h.names, name)
	return h.coll
}

type fakeSource struct {
	mu        sync.Mutex
	handle    *fakeHandle
	err       error
	uris      []string
	poolSizes []int
}

func (s *fakeSource) AcquireWithPoolSize(ctx context.Context, uri string, poolSize int) (types.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uris = append(s.uris, uri)
	s.poolSizes = append(s.poolSizes, poolSize)
	if s.err != nil {
		return nil, s.err
	}
	return s.handle, nil
}

func (s *fakeSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uris)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	return m.Called(ctx, subject, data).Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

const testURI = "mongodb://localhost:27017/app"

var testScope = Scope{URI: testURI, Collection: "users"}

// newTestClient wires a Client to a mock collection of database "app".
func newTestClient(opts ...Option) (*Client, *MockCollection, *fakeSource) {
	coll := new(MockCollection)
	src := &fakeSource{handle: &fakeHandle{database: "app", coll: coll}}
	return New(src, opts...), coll, src
}
