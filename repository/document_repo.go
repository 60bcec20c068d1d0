package repository

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/bookbrain-ai/bookbrain-be/types"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type documentRepo struct {
	documents *mongo.Collection
	pages     *mongo.Collection
}

func NewDocumentRepo(db *mongo.Database) DocumentRepo {
	pages := db.Collection("pages")
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "document_id", Value: 1},
				{Key: "index", Value: 1},
			},
		},
	}
	if _, err := pages.Indexes().CreateMany(context.Background(), indexes); err != nil {
		log.Printf("Error creating page indexes: %v", err)
	}

	return &documentRepo{
		documents: db.Collection("documents"),
		pages:     pages,
	}
}

func (r *documentRepo) CreateDocument(ctx context.Context, doc *types.Document) error {
	_, err := r.documents.InsertOne(ctx, doc)
	return err
}

func (r *documentRepo) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	var doc types.Document
	err := r.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	cursor, err := r.documents.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []*types.Document
	for cursor.Next(ctx) {
		var doc types.Document
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, cursor.Err()
}

func (r *documentRepo) UpdateDocument(ctx context.Context, doc *types.Document) error {
	_, err := r.documents.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	return err
}

func (r *documentRepo) DeleteDocument(ctx context.Context, id string) error {
	if _, err := r.pages.DeleteMany(ctx, bson.M{"document_id": id}); err != nil {
		return err
	}
	_, err := r.documents.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *documentRepo) SavePages(ctx context.Context, documentID string, pages []types.Page) error {
	// Replace, not append: page text is versioned per ingestion run.
	if _, err := r.pages.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return err
	}
	if len(pages) == 0 {
		return nil
	}
	docs := make([]interface{}, len(pages))
	for i, p := range pages {
		docs[i] = p
	}
	_, err := r.pages.InsertMany(ctx, docs)
	return err
}

func (r *documentRepo) GetPages(ctx context.Context, documentID string) ([]types.Page, error) {
	cursor, err := r.pages.Find(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var pages []types.Page
	for cursor.Next(ctx) {
		var page types.Page
		if err := cursor.Decode(&page); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	return pages, nil
}
