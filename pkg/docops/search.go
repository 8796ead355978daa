package docops

import (
	"context"
	"time"

	"github.com/syntrixbase/mongokit/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
)

// ScoreField receives the search relevance score of every hit.
const ScoreField = "score"

// Search runs a $search aggregation. With IncludeCount the hits come back
// with a {total, page} metadata record computed in the same round trip.
func (c *Client) Search(ctx context.Context, scope Scope, req model.SearchRequest) (res *model.SearchResult, err error) {
	if err := scope.validate(model.ErrValidation); err != nil {
		return nil, err
	}
	if len(req.Spec) == 0 {
		return nil, model.Errorf(model.ErrValidation, "search spec is required")
	}
	window, paged := req.Page.Window()
	if paged && window.Empty() {
		return &model.SearchResult{Data: []model.M{}}, nil
	}

	start := time.Now()
	defer func() { c.observe("search", scope, start, err) }()

	coll, _, err := c.collection(ctx, scope)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Aggregate(ctx, searchPipeline(req, window, paged))
	if err != nil {
		return nil, storeError("search", err, nil)
	}
	defer cursor.Close(ctx)

	if !req.IncludeCount {
		docs, err := readAll(ctx, cursor)
		if err != nil {
			return nil, storeError("search", err, nil)
		}
		return &model.SearchResult{Data: docs}, nil
	}

	var facets []struct {
		Metadata []model.SearchMetadata `bson:"metadata"`
		Data     []bson.M               `bson:"data"`
	}
	if err := cursor.All(ctx, &facets); err != nil {
		return nil, storeError("search", err, nil)
	}

	res = &model.SearchResult{Data: []model.M{}}
	if len(facets) == 0 {
		return res, nil
	}
	if len(facets[0].Metadata) > 0 {
		md := facets[0].Metadata[0]
		res.Metadata = &md
	}
	for _, d := range facets[0].Data {
		res.Data = append(res.Data, model.DocumentFromBSON(d))
	}
	return res, nil
}

// searchPipeline builds
//
//	$search -> $addFields score -> [$project] -> [$sort] -> $facet | $skip/$limit
func searchPipeline(req model.SearchRequest, window model.Window, paged bool) bson.A {
	pipeline := bson.A{
		bson.D{{Key: "$search", Value: model.ToBSON(req.Spec)}},
		bson.D{{Key: "$addFields", Value: bson.D{
			{Key: ScoreField, Value: bson.D{{Key: "$meta", Value: "searchScore"}}},
		}}},
	}
	if len(req.Projection) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$project", Value: model.ToBSON(req.Projection)}})
	}
	if len(req.Sort) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$sort", Value: model.ToBSON(req.Sort)}})
	}

	page := bson.A{}
	if paged {
		page = append(page,
			bson.D{{Key: "$skip", Value: window.Skip}},
			bson.D{{Key: "$limit", Value: window.Limit}},
		)
	}

	if !req.IncludeCount {
		return append(pipeline, page...)
	}

	pageNumber := int64(1)
	if paged {
		pageNumber = window.PageNumber()
	}
	if len(page) == 0 {
		// $facet does not accept empty sub-pipelines
		page = bson.A{bson.D{{Key: "$skip", Value: int64(0)}}}
	}
	return append(pipeline, bson.D{{Key: "$facet", Value: bson.D{
		{Key: "metadata", Value: bson.A{
			bson.D{{Key: "$count", Value: "total"}},
			bson.D{{Key: "$addFields", Value: bson.D{{Key: "page", Value: pageNumber}}}},
		}},
		{Key: "data", Value: page},
	}}})
}
