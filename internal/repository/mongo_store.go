package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type stateDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStore keeps one document per key.
type MongoStore struct {
	Col *mongo.Collection
}

func NewMongoStore(db *mongo.Database, collection string) *MongoStore {
	if collection == "" {
		collection = "questionnaire_state"
	}
	return &MongoStore{Col: db.Collection(collection)}
}

func (s *MongoStore) Get(ctx context.Context, key string) (string, bool, error) {
	var doc stateDocument
	err := s.Col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return doc.Value, true, nil
}

func (s *MongoStore) Set(ctx context.Context, key, value string) error {
	doc := stateDocument{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.Col.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Delete(ctx context.Context, key string) error {
	_, err := s.Col.DeleteOne(ctx, bson.M{"_id": key})
	return err
}
