package repository

import (
	"context"
	"errors"

	"github.com/bookbrain-ai/bookbrain-be/types"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// DocumentRepo persists documents and their extracted pages. Page text is
// versioned per ingestion run: SavePages replaces the previous page set.
type DocumentRepo interface {
	CreateDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, id string) (*types.Document, error)
	ListDocuments(ctx context.Context) ([]*types.Document, error)
	UpdateDocument(ctx context.Context, doc *types.Document) error
	DeleteDocument(ctx context.Context, id string) error

	SavePages(ctx context.Context, documentID string, pages []types.Page) error
	GetPages(ctx context.Context, documentID string) ([]types.Page, error)
}

// ChunkRepo persists chunk text. This is the source of truth the vector
// index is rebuilt from.
type ChunkRepo interface {
	ReplaceChunks(ctx context.Context, documentID string, chunks []types.Chunk) error
	GetChunks(ctx context.Context, documentID string) ([]types.Chunk, error)
	ListAllChunks(ctx context.Context) ([]types.Chunk, error)
	DeleteChunks(ctx context.Context, documentID string) error
	CountChunks(ctx context.Context) (int, error)
}

// InclusionRepo is the inclusion policy store. Toggling inclusion changes
// retrieval visibility only; it never touches chunk or document data.
type InclusionRepo interface {
	SetIncluded(ctx context.Context, documentID string, included bool) error
	IsIncluded(ctx context.Context, documentID string) (bool, error)
	ListIncluded(ctx context.Context) (map[string]bool, error)
	Delete(ctx context.Context, documentID string) error
}
