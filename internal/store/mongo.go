package store

import (
	"context"
	"encoding/json"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reconciliation-close-backend/internal/apperr"
)

// mongoDocument wraps the marshalled JSON so documents round-trip without a
// bson mapping per model.
type mongoDocument struct {
	Key  string `bson:"_id"`
	Data []byte `bson:"data"`
}

// MongoStore keeps one Mongo collection per logical collection, with the
// document key as _id.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) Get(ctx context.Context, collection, key string, out any) error {
	var doc mongoDocument
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return apperr.NotFound(collection, key)
	}
	if err != nil {
		return apperr.Upstream("mongo get", err)
	}
	return json.Unmarshal(doc.Data, out)
}

func (s *MongoStore) Put(ctx context.Context, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(collection).ReplaceOne(
		ctx,
		bson.M{"_id": key},
		mongoDocument{Key: key, Data: raw},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return apperr.Upstream("mongo put", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, collection string) (map[string]json.RawMessage, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		return nil, apperr.Upstream("mongo list", err)
	}
	defer cursor.Close(ctx)

	out := make(map[string]json.RawMessage)
	for cursor.Next(ctx) {
		var doc mongoDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, apperr.Upstream("mongo decode", err)
		}
		out[doc.Key] = json.RawMessage(doc.Data)
	}
	if err := cursor.Err(); err != nil {
		return nil, apperr.Upstream("mongo list", err)
	}
	return out, nil
}
