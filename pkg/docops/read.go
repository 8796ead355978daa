package docops

import (
	"context"
	"time"

	"github.com/syntrixbase/mongokit/pkg/model"
	"github.com/syntrixbase/mongokit/pkg/storage/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GetData runs a find, count or aggregate. Find returns an empty result
// without contacting the store when the page resolves to a zero limit.
func (c *Client) GetData(ctx context.Context, scope Scope, req model.ReadRequest) (res *model.ReadResult, err error) {
	if err := scope.validate(model.ErrConfig); err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = model.ModeFind
	}

	var window model.Window
	var paged bool
	switch mode {
	case model.ModeFind:
		window, paged = req.Page.Window()
		if paged && window.Empty() {
			return &model.ReadResult{Documents: []model.M{}}, nil
		}
	case model.ModeCount:
	case model.ModeAggregate:
		if err := validatePipeline(req.Pipeline); err != nil {
			return nil, err
		}
	default:
		return nil, model.Errorf(model.ErrInvalidOperation, "unknown read mode %q", mode)
	}

	start := time.Now()
	defer func() { c.observe(string(mode), scope, start, err) }()

	coll, _, err := c.collection(ctx, scope)
	if err != nil {
		return nil, err
	}

	switch mode {
	case model.ModeCount:
		opts := options.Count()
		if req.Collation != nil {
			opts.SetCollation(collation(req.Collation))
		}
		n, err := coll.CountDocuments(ctx, model.FilterBSON(req.Filter), opts)
		if err != nil {
			return nil, storeError("count", err, nil)
		}
		return &model.ReadResult{Count: n}, nil

	case model.ModeAggregate:
		docs, err := aggregate(ctx, coll, req.Pipeline, req.AggregateOptions)
		if err != nil {
			return nil, storeError("aggregate", err, nil)
		}
		return &model.ReadResult{Documents: docs}, nil
	}

	opts := options.Find()
	if len(req.Projection) > 0 {
		opts.SetProjection(model.ToBSON(req.Projection))
	}
	if len(req.Sort) > 0 {
		opts.SetSort(model.ToBSON(req.Sort))
	}
	if req.Collation != nil {
		opts.SetCollation(collation(req.Collation))
	}
	if paged {
		opts.SetSkip(window.Skip).SetLimit(window.Limit)
	}

	cursor, err := coll.Find(ctx, model.FilterBSON(req.Filter), opts)
	if err != nil {
		return nil, storeError("find", err, nil)
	}
	docs, err := readAll(ctx, cursor)
	if err != nil {
		return nil, storeError("find", err, nil)
	}
	return &model.ReadResult{Documents: docs}, nil
}

func aggregate(ctx context.Context, coll types.Collection, pipeline []model.M, ao *model.AggregateOptions) ([]model.M, error) {
	stages := make(bson.A, len(pipeline))
	for i, stage := range pipeline {
		stages[i] = model.ToBSON(stage)
	}
	cursor, err := coll.Aggregate(ctx, stages, aggregateOptions(ao))
	if err != nil {
		return nil, err
	}
	return readAll(ctx, cursor)
}

func aggregateOptions(ao *model.AggregateOptions) *options.AggregateOptions {
	opts := options.Aggregate()
	if ao == nil {
		return opts
	}
	if ao.AllowDiskUse {
		opts.SetAllowDiskUse(true)
	}
	if ao.BatchSize > 0 {
		opts.SetBatchSize(ao.BatchSize)
	}
	if ao.MaxTime > 0 {
		opts.SetMaxTime(ao.MaxTime)
	}
	if ao.Collation != nil {
		opts.SetCollation(collation(ao.Collation))
	}
	if ao.Comment != "" {
		opts.SetComment(ao.Comment)
	}
	if ao.Hint != nil {
		opts.SetHint(model.ToBSON(ao.Hint))
	}
	return opts
}

// validatePipeline requires a sequence of stages, each a document with a
// single "$"-prefixed key.
func validatePipeline(pipeline []model.M) error {
	if pipeline == nil {
		return model.Errorf(model.ErrInvalidQuery, "aggregate requires a pipeline")
	}
	for i, stage := range pipeline {
		if len(stage) != 1 {
			return model.Errorf(model.ErrInvalidQuery, "pipeline stage %d must have exactly one field, got %d", i, len(stage))
		}
		for name := range stage {
			if len(name) < 2 || name[0] != '$' {
				return model.Errorf(model.ErrInvalidQuery, "pipeline stage %d has invalid name %q", i, name)
			}
		}
	}
	return nil
}

func collation(c *model.Collation) *options.Collation {
	return &options.Collation{
		Locale:          c.Locale,
		Strength:        c.Strength,
		CaseLevel:       c.CaseLevel,
		CaseFirst:       c.CaseFirst,
		NumericOrdering: c.NumericOrdering,
	}
}

func readAll(ctx context.Context, cursor *mongo.Cursor) ([]model.M, error) {
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, err
	}
	docs := make([]model.M, len(raw))
	for i, d := range raw {
		docs[i] = model.DocumentFromBSON(d)
	}
	return docs, nil
}
