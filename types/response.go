package types

type DataResponse struct {
	Status  bool        `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	TotalPages int    `json:"total_pages"`
}

// ProcessingDocumentStatus is streamed to the UI while a document is
// being ingested (SSE and websocket).
type ProcessingDocumentStatus struct {
	Status         string  `json:"status"`
	Message        string  `json:"message"`
	Progress       float64 `json:"progress"`
	TotalPages     int     `json:"total_pages"`
	ProcessedPages int     `json:"processed_pages"`
	Page           int     `json:"page,omitempty"`
	Method         string  `json:"method,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
}

type SearchResponse struct {
	Passages []Passage `json:"passages"`
	// NoKnowledgeBase is set when zero documents are included; an empty
	// result in that case is a state, not an error.
	NoKnowledgeBase bool `json:"no_knowledge_base,omitempty"`
}

type ChatResponse struct {
	Message   string    `json:"message"`
	Citations []Passage `json:"citations,omitempty"`
}

type KnowledgeStatsResponse struct {
	DocumentCount  int    `json:"document_count"`
	IncludedCount  int    `json:"included_count"`
	ChunkCount     int    `json:"chunk_count"`
	Dimension      int    `json:"dimension"`
	EmbeddingModel string `json:"embedding_model"`
}
