package docops

import (
	"context"
	"fmt"
	"time"

	"github.com/syntrixbase/mongokit/pkg/model"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// WriteBulkData submits documents as one bulk write. Each element is
// wrapped according to kind:
//
//	insertBulk   the document to insert
//	replaceBulk  {filter, replacement, upsert}
//	updateBulk   {filter, update, upsert}
//	deleteBulk   {filter}
//	allBulk      a tagged operation, e.g. {updateMany: {filter, update}}
//
// An ordered bulk stops at the first failure. On failure the partial result
// is returned together with a *model.StoreError carrying it.
func (c *Client) WriteBulkData(ctx context.Context, scope Scope, kind model.BulkKind, documents []model.M, ordered bool) (res *model.BulkResult, err error) {
	if !kind.IsValid() {
		return nil, model.Errorf(model.ErrInvalidOperation, "unknown bulk kind %q", kind)
	}
	if err := scope.validate(model.ErrConfig); err != nil {
		return nil, err
	}
	models, err := writeModels(kind, documents)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { c.observe(string(kind), scope, start, err) }()

	coll, h, err := c.collection(ctx, scope)
	if err != nil {
		return nil, err
	}

	r, bulkErr := coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(ordered))
	res = bulkResult(r, bulkErr)
	c.emit(ctx, h, scope, string(kind), res.Affected())
	if bulkErr != nil {
		return res, storeError(string(kind), bulkErr, res)
	}
	return res, nil
}

func bulkResult(r *mongo.BulkWriteResult, err error) *model.BulkResult {
	res := &model.BulkResult{}
	if r != nil {
		res.InsertedCount = r.InsertedCount
		res.MatchedCount = r.MatchedCount
		res.ModifiedCount = r.ModifiedCount
		res.DeletedCount = r.DeletedCount
		res.UpsertedCount = r.UpsertedCount
		res.UpsertedIDs = r.UpsertedIDs
	}
	res.Failed = bulkFailures(err)
	return res
}

func writeModels(kind model.BulkKind, documents []model.M) ([]mongo.WriteModel, error) {
	if len(documents) == 0 {
		return nil, model.Errorf(model.ErrValidation, "%s requires at least one document", kind)
	}
	models := make([]mongo.WriteModel, len(documents))
	for i, doc := range documents {
		if doc == nil {
			return nil, model.Errorf(model.ErrValidation, "%s element %d is empty", kind, i)
		}
		var (
			m   mongo.WriteModel
			err error
		)
		switch kind {
		case model.InsertBulk:
			m = mongo.NewInsertOneModel().SetDocument(model.ToBSON(doc))
		case model.ReplaceBulk:
			m, err = operationModel(model.ReplaceOne, doc)
		case model.UpdateBulk:
			m, err = operationModel(model.UpdateOne, doc)
		case model.DeleteBulk:
			m, err = operationModel(model.DeleteOne, doc)
		case model.AllBulk:
			m, err = taggedModel(doc)
		}
		if err != nil {
			return nil, model.Errorf(model.ErrValidation, "%s element %d: %v", kind, i, err)
		}
		models[i] = m
	}
	return models, nil
}

// taggedModel reads a descriptor with exactly one operation key.
func taggedModel(doc model.M) (mongo.WriteModel, error) {
	if len(doc) != 1 {
		return nil, fmt.Errorf("operation descriptor must have exactly one key, got %d", len(doc))
	}
	for key, value := range doc {
		kind := model.WriteKind(key)
		if !kind.IsValid() {
			return nil, fmt.Errorf("unknown operation %q", key)
		}
		body, ok := asM(value)
		if !ok {
			return nil, fmt.Errorf("%s must be a document", key)
		}
		return operationModel(kind, body)
	}
	panic("unreachable")
}

func operationModel(kind model.WriteKind, body model.M) (mongo.WriteModel, error) {
	if kind == model.InsertOne {
		doc, ok := asM(body["document"])
		if !ok {
			return nil, fmt.Errorf("insertOne requires a document")
		}
		return mongo.NewInsertOneModel().SetDocument(model.ToBSON(doc)), nil
	}

	if _, ok := body["filter"]; !ok {
		return nil, fmt.Errorf("%s requires a filter", kind)
	}
	filter, ok := asM(body["filter"])
	if !ok {
		return nil, fmt.Errorf("%s filter must be a document", kind)
	}
	f := model.FilterBSON(filter)
	upsert, _ := body["upsert"].(bool)

	switch kind {
	case model.ReplaceOne:
		replacement, ok := asM(body["replacement"])
		if !ok {
			return nil, fmt.Errorf("replaceOne requires a replacement document")
		}
		return mongo.NewReplaceOneModel().SetFilter(f).SetReplacement(model.ToBSON(replacement)).SetUpsert(upsert), nil
	case model.UpdateOne, model.UpdateMany:
		update, ok := body["update"]
		if !ok || update == nil {
			return nil, fmt.Errorf("%s requires an update", kind)
		}
		if kind == model.UpdateMany {
			return mongo.NewUpdateManyModel().SetFilter(f).SetUpdate(model.ToBSON(update)).SetUpsert(upsert), nil
		}
		return mongo.NewUpdateOneModel().SetFilter(f).SetUpdate(model.ToBSON(update)).SetUpsert(upsert), nil
	case model.DeleteMany:
		return mongo.NewDeleteManyModel().SetFilter(f), nil
	default:
		return mongo.NewDeleteOneModel().SetFilter(f), nil
	}
}

// asM accepts the document shapes produced by JSON and BSON decoding.
func asM(v interface{}) (model.M, bool) {
	switch d := v.(type) {
	case model.M:
		return d, true
	case map[string]interface{}:
		return model.M(d), true
	case model.D:
		return d.Map(), true
	}
	switch d := model.FromBSON(v).(type) {
	case model.M:
		return d, true
	case model.D:
		return d.Map(), true
	}
	return nil, false
}
