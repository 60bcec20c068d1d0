package types

import "errors"

var (
	// ErrExtractionFailed means a document produced no usable text on any
	// page. The document is kept and marked for manual review.
	ErrExtractionFailed = errors.New("extraction failed: no page produced usable text")

	// ErrOCREngineUnavailable means the OCR backend could not be reached
	// after the configured retry budget.
	ErrOCREngineUnavailable = errors.New("ocr engine unavailable")

	// ErrEmbeddingModelMismatch means vectors from a different embedding
	// model were offered to the index. This is a configuration error.
	ErrEmbeddingModelMismatch = errors.New("embedding model mismatch")

	// ErrIndexCorruption means the vector index disagrees with stored
	// chunks. Recovered by a full rebuild; chunk storage is authoritative.
	ErrIndexCorruption = errors.New("vector index corrupted")

	// ErrNoKnowledgeBase means zero documents are included at retrieval
	// time. Callers should fall back to ungrounded generation.
	ErrNoKnowledgeBase = errors.New("no knowledge base configured")

	// ErrUnsupportedFileType means the ingested file is not a PDF or DOCX.
	ErrUnsupportedFileType = errors.New("unsupported file type")
)
