package item

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoStoreItem(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "restaurant.items", mtest.FirstBatch, bson.D{
			{Key: "id", Value: int64(1)},
			{Key: "name", Value: "Mutton Biriyani"},
			{Key: "price", Value: int32(220)},
		}))

		istore, err := NewMongoStore(mt.DB)
		require.NoError(mt, err)

		item, err := istore.Item(t.Context(), 1)
		require.NoError(mt, err)
		assert.Equal(mt, Item{ID: 1, Name: "Mutton Biriyani", Price: 220}, *item)
	})

	mt.Run("not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "restaurant.items", mtest.FirstBatch))

		istore, err := NewMongoStore(mt.DB)
		require.NoError(mt, err)

		_, err = istore.Item(t.Context(), 99)
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("command failure", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Name:    "InterruptedAtShutdown",
			Message: "interrupted at shutdown",
		}))

		istore, err := NewMongoStore(mt.DB)
		require.NoError(mt, err)

		_, err = istore.Item(t.Context(), 1)
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, ErrNotFound)
	})
}
