package docops

import (
	"context"

	"github.com/syntrixbase/mongokit/pkg/model"
)

// Conn is a Client bound to one connection string.
type Conn struct {
	client   *Client
	uri      string
	poolSize int
}

func (c *Conn) URI() string {
	return c.uri
}

func (c *Conn) scope(collection string) Scope {
	return Scope{URI: c.uri, Collection: collection, PoolSize: c.poolSize}
}

// Collection returns the tool set for the named collection.
func (c *Conn) Collection(name string) *Collection {
	return c.client.Collection(c.scope(name))
}

func (c *Conn) GetData(ctx context.Context, collection string, req model.ReadRequest) (*model.ReadResult, error) {
	return c.client.GetData(ctx, c.scope(collection), req)
}

func (c *Conn) Search(ctx context.Context, collection string, req model.SearchRequest) (*model.SearchResult, error) {
	return c.client.Search(ctx, c.scope(collection), req)
}

func (c *Conn) WriteData(ctx context.Context, collection string, kind model.WriteKind, document, filter model.M) (*model.WriteResult, error) {
	return c.client.WriteData(ctx, c.scope(collection), kind, document, filter)
}

func (c *Conn) WriteBulkData(ctx context.Context, collection string, kind model.BulkKind, documents []model.M, ordered bool) (*model.BulkResult, error) {
	return c.client.WriteBulkData(ctx, c.scope(collection), kind, documents, ordered)
}

// Query holds the optional parts of a filtered find.
type Query struct {
	Projection model.M
	Sort       model.D
	Page       *model.Page
	Collation  *model.Collation
}

// Collection is the tool set bound to one collection. Bulk helpers are
// unordered; use WriteBulkData for ordered execution.
type Collection struct {
	client *Client
	scope  Scope
}

func (c *Collection) Scope() Scope {
	return c.scope
}

func (c *Collection) GetData(ctx context.Context, req model.ReadRequest) (*model.ReadResult, error) {
	return c.client.GetData(ctx, c.scope, req)
}

func (c *Collection) Search(ctx context.Context, req model.SearchRequest) (*model.SearchResult, error) {
	return c.client.Search(ctx, c.scope, req)
}

func (c *Collection) WriteData(ctx context.Context, kind model.WriteKind, document, filter model.M) (*model.WriteResult, error) {
	return c.client.WriteData(ctx, c.scope, kind, document, filter)
}

func (c *Collection) WriteBulkData(ctx context.Context, kind model.BulkKind, documents []model.M, ordered bool) (*model.BulkResult, error) {
	return c.client.WriteBulkData(ctx, c.scope, kind, documents, ordered)
}

// GetDataByID returns the document with the given _id. A 24 character hex
// string is matched as an ObjectID.
func (c *Collection) GetDataByID(ctx context.Context, id interface{}) (model.M, error) {
	if id == nil {
		return nil, model.Errorf(model.ErrValidation, "id is required")
	}
	res, err := c.GetData(ctx, model.ReadRequest{
		Filter: model.M{model.IDField: model.NormalizeID(id)},
		Page:   model.NewPage(1, 1),
	})
	if err != nil {
		return nil, err
	}
	if len(res.Documents) == 0 {
		return nil, model.ErrNotFound
	}
	return res.Documents[0], nil
}

func (c *Collection) GetDataByFilter(ctx context.Context, filter model.M, q *Query) ([]model.M, error) {
	req := model.ReadRequest{Filter: filter}
	if q != nil {
		req.Projection = q.Projection
		req.Sort = q.Sort
		req.Page = q.Page
		req.Collation = q.Collation
	}
	res, err := c.GetData(ctx, req)
	if err != nil {
		return nil, err
	}
	return res.Documents, nil
}

func (c *Collection) GetDataByAggregate(ctx context.Context, pipeline []model.M, opts *model.AggregateOptions) ([]model.M, error) {
	res, err := c.GetData(ctx, model.ReadRequest{
		Mode:             model.ModeAggregate,
		Pipeline:         pipeline,
		AggregateOptions: opts,
	})
	if err != nil {
		return nil, err
	}
	return res.Documents, nil
}

func (c *Collection) GetDataCount(ctx context.Context, filter model.M) (int64, error) {
	res, err := c.GetData(ctx, model.ReadRequest{Mode: model.ModeCount, Filter: filter})
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// List returns one page of the collection in natural order.
func (c *Collection) List(ctx context.Context, page *model.Page) ([]model.M, error) {
	return c.GetDataByFilter(ctx, nil, &Query{Page: page})
}

func (c *Collection) InsertOne(ctx context.Context, document model.M) (*model.WriteResult, error) {
	return c.WriteData(ctx, model.InsertOne, document, nil)
}

func (c *Collection) ReplaceOne(ctx context.Context, filter, replacement model.M) (*model.WriteResult, error) {
	return c.WriteData(ctx, model.ReplaceOne, replacement, filter)
}

func (c *Collection) UpdateOne(ctx context.Context, filter, update model.M) (*model.WriteResult, error) {
	return c.WriteData(ctx, model.UpdateOne, update, filter)
}

func (c *Collection) UpdateMany(ctx context.Context, filter, update model.M) (*model.WriteResult, error) {
	return c.WriteData(ctx, model.UpdateMany, update, filter)
}

func (c *Collection) DeleteOne(ctx context.Context, filter model.M) (*model.WriteResult, error) {
	return c.WriteData(ctx, model.DeleteOne, nil, filter)
}

func (c *Collection) DeleteMany(ctx context.Context, filter model.M) (*model.WriteResult, error) {
	return c.WriteData(ctx, model.DeleteMany, nil, filter)
}

func (c *Collection) InsertBulk(ctx context.Context, documents []model.M) (*model.BulkResult, error) {
	return c.WriteBulkData(ctx, model.InsertBulk, documents, false)
}

// ReplaceBulk takes elements of the form {filter, replacement, upsert}.
func (c *Collection) ReplaceBulk(ctx context.Context, operations []model.M) (*model.BulkResult, error) {
	return c.WriteBulkData(ctx, model.ReplaceBulk, operations, false)
}

// UpdateBulk takes elements of the form {filter, update, upsert}.
func (c *Collection) UpdateBulk(ctx context.Context, operations []model.M) (*model.BulkResult, error) {
	return c.WriteBulkData(ctx, model.UpdateBulk, operations, false)
}

// DeleteBulk takes elements of the form {filter}.
func (c *Collection) DeleteBulk(ctx context.Context, operations []model.M) (*model.BulkResult, error) {
	return c.WriteBulkData(ctx, model.DeleteBulk, operations, false)
}

// WriteBulk runs tagged operation descriptors such as
// {deleteMany: {filter: {...}}}.
func (c *Collection) WriteBulk(ctx context.Context, operations []model.M) (*model.BulkResult, error) {
	return c.WriteBulkData(ctx, model.AllBulk, operations, false)
}
