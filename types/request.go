package types

// IngestRequest carries the metadata supplied by the book-management side
// along with an uploaded file. DocumentID targets an existing document
// so a re-ingestion replaces its content instead of creating a duplicate.
type IngestRequest struct {
	DocumentID string `json:"document_id,omitempty"`
	Title      string `json:"title"`
	Author     string `json:"author"`
	Source     string `json:"source"`
}

type SetInclusionRequest struct {
	Included bool `json:"included"`
}

type SearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type ChatRequest struct {
	Messages []Message `json:"messages"`
	Grounded bool      `json:"grounded"`
	Limit    int       `json:"limit,omitempty"`
}
