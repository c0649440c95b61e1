package docstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const recordsCollection = "records"

// Record is one user's editable copy of an interactive template.
type Record struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     string             `bson:"user_id" json:"user_id"`
	TemplateID string             `bson:"template_id" json:"template_id"`
	Structure  map[string]any     `bson:"structure" json:"structure"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// MongoStore implements Store on a MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
	log        *zap.Logger
}

func NewMongoStore(db *mongo.Database, log *zap.Logger) *MongoStore {
	return &MongoStore{
		collection: db.Collection(recordsCollection),
		log:        log.Named("docstore.mongo"),
	}
}

func (s *MongoStore) CreateUserRecord(ctx context.Context, userID, templateID string, structure map[string]any) (string, error) {
	if userID == "" || templateID == "" {
		return "", Permanent(errors.New("user_id and template_id are required"))
	}
	if structure == nil {
		structure = map[string]any{}
	}

	now := time.Now().UTC()
	record := Record{
		UserID:     userID,
		TemplateID: templateID,
		Structure:  structure,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	result, err := s.collection.InsertOne(ctx, record)
	if err != nil {
		return "", err
	}

	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", Permanent(errors.New("unexpected inserted id type"))
	}
	return id.Hex(), nil
}

func (s *MongoStore) UpdateUserRecord(ctx context.Context, recordID string, fields map[string]any) error {
	id, err := parseRecordID(recordID)
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{
		"structure":  fields,
		"updated_at": time.Now().UTC(),
	}}
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MongoStore) DeleteUserRecord(ctx context.Context, recordID string) error {
	id, err := parseRecordID(recordID)
	if err != nil {
		return err
	}

	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MongoStore) GetUserRecord(ctx context.Context, recordID string) (*Record, error) {
	id, err := parseRecordID(recordID)
	if err != nil {
		return nil, err
	}

	var record Record
	err = s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func parseRecordID(recordID string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(recordID)
	if err != nil {
		return primitive.NilObjectID, Permanent(err)
	}
	return id, nil
}
