package types

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultPoolSize is the maximum pool size of a handle when none is requested.
const DefaultPoolSize = 5

// DefaultDatabase is used when a connection string names no database.
const DefaultDatabase = "test"

// Collection is the subset of *mongo.Collection the document operations are
// written against.
type Collection interface {
	Name() string
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	Aggregate(ctx context.Context, pipeline interface{}, opts ...*options.AggregateOptions) (*mongo.Cursor, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
	BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
}

var _ Collection = (*mongo.Collection)(nil)

// Handle is a shared, long-lived client bound to one connection string.
type Handle interface {
	// ID identifies the handle in logs.
	ID() string
	// URI is the connection string the handle was opened with.
	URI() string
	// Database is the database the connection string targets.
	Database() string
	// PoolSize is the maximum pool size the handle was opened with.
	PoolSize() int
	// IsConnected reports the last known connection state.
	IsConnected() bool
	// Collection returns a collection of the handle's database.
	Collection(name string) Collection
	// Close disconnects the client. Closing twice is a no-op.
	Close(ctx context.Context) error
}

// ConnectOptions configures a new handle.
type ConnectOptions struct {
	PoolSize        int
	DefaultDatabase string
	// ConnectTimeout bounds dialing and server selection unless the
	// connection string sets its own timeouts. Zero means 10s.
	ConnectTimeout time.Duration
}

// Connector opens a new handle for a connection string.
type Connector func(ctx context.Context, uri string, opts ConnectOptions) (Handle, error)
