package docops

import (
	"context"
	"time"

	"github.com/syntrixbase/mongokit/pkg/model"
	"github.com/syntrixbase/mongokit/pkg/storage/types"
)

// WriteData runs one single-document write. document is the inserted
// document, the replacement, or the update spec depending on kind; filter
// selects the target and defaults to all documents. Unknown kinds fail
// before a handle is acquired.
func (c *Client) WriteData(ctx context.Context, scope Scope, kind model.WriteKind, document model.M, filter model.M) (res *model.WriteResult, err error) {
	if !kind.IsValid() {
		return nil, model.Errorf(model.ErrInvalidOperation, "unknown write kind %q", kind)
	}
	if err := scope.validate(model.ErrConfig); err != nil {
		return nil, err
	}
	switch kind {
	case model.InsertOne, model.ReplaceOne, model.UpdateOne, model.UpdateMany:
		if document == nil {
			return nil, model.Errorf(model.ErrValidation, "%s requires a document", kind)
		}
	}

	start := time.Now()
	defer func() { c.observe(string(kind), scope, start, err) }()

	coll, h, err := c.collection(ctx, scope)
	if err != nil {
		return nil, err
	}

	res, err = write(ctx, coll, kind, document, filter)
	if err != nil {
		return nil, storeError(string(kind), err, nil)
	}
	c.emit(ctx, h, scope, string(kind), res.Affected())
	return res, nil
}

func write(ctx context.Context, coll types.Collection, kind model.WriteKind, document, filter model.M) (*model.WriteResult, error) {
	f := model.FilterBSON(filter)
	switch kind {
	case model.InsertOne:
		r, err := coll.InsertOne(ctx, model.ToBSON(document))
		if err != nil {
			return nil, err
		}
		return &model.WriteResult{InsertedID: r.InsertedID}, nil

	case model.ReplaceOne:
		r, err := coll.ReplaceOne(ctx, f, model.ToBSON(document))
		if err != nil {
			return nil, err
		}
		return &model.WriteResult{
			MatchedCount:  r.MatchedCount,
			ModifiedCount: r.ModifiedCount,
			UpsertedCount: r.UpsertedCount,
			UpsertedID:    r.UpsertedID,
		}, nil

	case model.UpdateOne, model.UpdateMany:
		update := coll.UpdateOne
		if kind == model.UpdateMany {
			update = coll.UpdateMany
		}
		r, err := update(ctx, f, model.ToBSON(document))
		if err != nil {
			return nil, err
		}
		return &model.WriteResult{
			MatchedCount:  r.MatchedCount,
			ModifiedCount: r.ModifiedCount,
			UpsertedCount: r.UpsertedCount,
			UpsertedID:    r.UpsertedID,
		}, nil

	default:
		remove := coll.DeleteOne
		if kind == model.DeleteMany {
			remove = coll.DeleteMany
		}
		r, err := remove(ctx, f)
		if err != nil {
			return nil, err
		}
		return &model.WriteResult{DeletedCount: r.DeletedCount}, nil
	}
}
