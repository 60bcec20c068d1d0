package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bookbrain-ai/bookbrain-be/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type inclusionRepo struct {
	collection *mongo.Collection
}

// NewInclusionRepo returns the persistent inclusion policy store backed by
// the inclusion_records collection.
func NewInclusionRepo(db *mongo.Database) InclusionRepo {
	return &inclusionRepo{collection: db.Collection("inclusion_records")}
}

func (r *inclusionRepo) SetIncluded(ctx context.Context, documentID string, included bool) error {
	record := types.InclusionRecord{
		DocumentID: documentID,
		Included:   included,
		UpdatedAt:  time.Now().Unix(),
	}
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": documentID},
		record,
		options.Replace().SetUpsert(true))
	return err
}

func (r *inclusionRepo) IsIncluded(ctx context.Context, documentID string) (bool, error) {
	var record types.InclusionRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": documentID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// No record means not included.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return record.Included, nil
}

func (r *inclusionRepo) ListIncluded(ctx context.Context) (map[string]bool, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"included": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	included := make(map[string]bool)
	for cursor.Next(ctx) {
		var record types.InclusionRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, err
		}
		included[record.DocumentID] = true
	}
	return included, cursor.Err()
}

func (r *inclusionRepo) Delete(ctx context.Context, documentID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": documentID})
	return err
}
