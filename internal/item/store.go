package item

import (
	"context"
	"fmt"

	"github.com/naughtygopher/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// persistentStore is the read-only record store of items. A missing id is reported as ErrNotFound.
type persistentStore interface {
	Item(ctx context.Context, id int64) (*Item, error)
}

const mongoCollectionItems = "items"

// mongoItem is the document stored in the items collection.
type mongoItem struct {
	ID    int64  `bson:"id"`
	Name  string `bson:"name"`
	Price int    `bson:"price"`
}

type mongoItemStore struct {
	itemCollection *mongo.Collection
}

func NewMongoStore(database *mongo.Database) (*mongoItemStore, error) { //nolint:revive // it is ok to return unexported type in this case, ensures controlled access
	return &mongoItemStore{
		itemCollection: database.Collection(mongoCollectionItems),
	}, nil
}

func (mstore *mongoItemStore) Item(ctx context.Context, id int64) (*Item, error) {
	doc := mongoItem{}
	err := mstore.itemCollection.FindOne(
		ctx,
		bson.D{{Key: "id", Value: id}},
		options.FindOne().SetProjection(bson.D{
			{Key: "_id", Value: 0},
			{Key: "id", Value: 1},
			{Key: "name", Value: 1},
			{Key: "price", Value: 1},
		}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errors.Wrap(ErrNotFound, fmt.Sprintf("id '%d'", id))
		}
		return nil, errors.Wrap(err, "failed getting item")
	}

	return &Item{ID: doc.ID, Name: doc.Name, Price: doc.Price}, nil
}
