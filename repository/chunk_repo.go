package repository

import (
	"context"
	"log"
	"sort"

	"github.com/bookbrain-ai/bookbrain-be/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type chunkRepo struct {
	collection *mongo.Collection
}

func NewChunkRepo(db *mongo.Database) ChunkRepo {
	collection := db.Collection("chunks")
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "document_id", Value: 1},
				{Key: "seq", Value: 1},
			},
		},
	}
	if _, err := collection.Indexes().CreateMany(context.Background(), indexes); err != nil {
		log.Printf("Error creating chunk indexes: %v", err)
	}
	return &chunkRepo{collection: collection}
}

func (r *chunkRepo) ReplaceChunks(ctx context.Context, documentID string, chunks []types.Chunk) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, len(chunks))
	for i, c := range chunks {
		docs[i] = c
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

func (r *chunkRepo) GetChunks(ctx context.Context, documentID string) ([]types.Chunk, error) {
	return r.find(ctx, bson.M{"document_id": documentID})
}

func (r *chunkRepo) ListAllChunks(ctx context.Context) ([]types.Chunk, error) {
	return r.find(ctx, bson.M{})
}

func (r *chunkRepo) DeleteChunks(ctx context.Context, documentID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"document_id": documentID})
	return err
}

func (r *chunkRepo) CountChunks(ctx context.Context) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{})
	return int(n), err
}

func (r *chunkRepo) find(ctx context.Context, filter bson.M) ([]types.Chunk, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var chunks []types.Chunk
	for cursor.Next(ctx) {
		var chunk types.Chunk
		if err := cursor.Decode(&chunk); err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].DocumentID != chunks[j].DocumentID {
			return chunks[i].DocumentID < chunks[j].DocumentID
		}
		return chunks[i].Seq < chunks[j].Seq
	})
	return chunks, nil
}
