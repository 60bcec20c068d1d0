package types

// Extraction methods recorded per page.
const (
	MethodDirect = "direct"
	MethodOCR    = "ocr"
	MethodNone   = "none"
)

// Document lifecycle statuses.
const (
	DocStatusPending    = "pending"
	DocStatusProcessing = "processing"
	DocStatusCompleted  = "completed"
	DocStatusPartial    = "partial"
	DocStatusFailed     = "failed"
)

// Document represents an ingested book or paper. Pages and chunks hang off
// the document id; deleting a document cascades to both.
type Document struct {
	ID         string `bson:"_id" json:"id"`
	Title      string `bson:"title" json:"title"`
	Author     string `bson:"author" json:"author"`
	Source     string `bson:"source" json:"source"`
	TotalPages int    `bson:"total_pages" json:"total_pages"`
	Status     string `bson:"status" json:"status"`
	CreatedAt  int64  `bson:"created_at" json:"created_at"`
	UpdatedAt  int64  `bson:"updated_at" json:"updated_at"`
}

// Page holds the extracted text of a single page. Text is written once per
// ingestion run; re-ingestion replaces the whole page set.
type Page struct {
	DocumentID  string  `bson:"document_id" json:"document_id"`
	Index       int     `bson:"index" json:"index"`
	Text        string  `bson:"text" json:"text"`
	Method      string  `bson:"method" json:"method"`
	Confidence  float64 `bson:"confidence" json:"confidence"`
	NeedsReview bool    `bson:"needs_review" json:"needs_review"`
}

// Chunk is a bounded segment of a document's concatenated page text,
// prepared for embedding. Start/End are character offsets into that
// concatenated text. The embedding vector itself lives in the vector index;
// chunks stored here are the source of truth for index rebuilds.
type Chunk struct {
	ID         string `bson:"_id" json:"id"`
	DocumentID string `bson:"document_id" json:"document_id"`
	Seq        int    `bson:"seq" json:"seq"`
	Start      int    `bson:"start" json:"start"`
	End        int    `bson:"end" json:"end"`
	PageStart  int    `bson:"page_start" json:"page_start"`
	PageEnd    int    `bson:"page_end" json:"page_end"`
	Text       string `bson:"text" json:"text"`
}

// ExtractionResult is the per-document outcome of an extraction run.
type ExtractionResult struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Pages      []Page `json:"pages"`
}

// UsablePages counts pages that produced nonempty text.
func (r *ExtractionResult) UsablePages() int {
	n := 0
	for _, p := range r.Pages {
		if p.Text != "" {
			n++
		}
	}
	return n
}

// InclusionRecord maps a document to its knowledge base visibility.
// Absence of a record means not included.
type InclusionRecord struct {
	DocumentID string `bson:"_id" json:"document_id"`
	Included   bool   `bson:"included" json:"included"`
	UpdatedAt  int64  `bson:"updated_at" json:"updated_at"`
}
