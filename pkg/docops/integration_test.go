package docops

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/mongokit/pkg/model"
	storemongo "github.com/syntrixbase/mongokit/pkg/storage/mongo"
	"github.com/syntrixbase/mongokit/pkg/storage/registry"
)

// newIntegrationCollection returns a fresh collection on the server named by
// MONGOKIT_TEST_URI, dropped again when the test ends.
func newIntegrationCollection(t *testing.T) *Collection {
	t.Helper()
	uri := os.Getenv("MONGOKIT_TEST_URI")
	if uri == "" {
		t.Skip("MONGOKIT_TEST_URI not set")
	}

	reg := registry.New(registry.WithDefaultDatabase("mongokit_docops_test"))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.CloseAll(ctx)
	})

	name := "it_" + uuid.NewString()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h, err := reg.Acquire(ctx, uri)
		if err != nil {
			return
		}
		if mh, ok := h.(*storemongo.Handle); ok {
			if err := mh.Client().Database(mh.Database()).Collection(name).Drop(ctx); err != nil {
				t.Logf("drop %s: %v", name, err)
			}
		}
	})
	return New(reg).Conn(uri).Collection(name)
}

func TestIntegration_RoundTrip(t *testing.T) {
	coll := newIntegrationCollection(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := coll.InsertOne(ctx, model.M{"_id": "a", "n": int32(1)})
	require.NoError(t, err)
	assert.Equal(t, "a", res.InsertedID)

	doc, err := coll.GetDataByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int32(1), doc["n"])

	_, err = coll.InsertBulk(ctx, []model.M{{"_id": "b", "n": int32(2)}, {"_id": "c", "n": int32(3)}})
	require.NoError(t, err)

	docs, err := coll.GetDataByFilter(ctx, model.M{"n": model.M{"$gte": 2}}, &Query{
		Sort: model.D{{Key: "n", Value: -1}},
		Page: model.NewPage(1, 1),
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "c", docs[0].GetID())

	n, err := coll.GetDataCount(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestIntegration_BulkOrdering(t *testing.T) {
	coll := newIntegrationCollection(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docs := []model.M{{"_id": 1}, {"_id": 1}, {"_id": 2}}

	// ordered stops at the duplicate
	res, err := coll.WriteBulkData(ctx, model.InsertBulk, docs, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrStore))
	assert.Equal(t, int64(1), res.InsertedCount)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, 1, res.Failed[0].Index)

	_, err = coll.DeleteMany(ctx, nil)
	require.NoError(t, err)

	// unordered carries on past it
	res, err = coll.WriteBulkData(ctx, model.InsertBulk, docs, false)
	require.Error(t, err)
	assert.Equal(t, int64(2), res.InsertedCount)
}
