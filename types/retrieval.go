package types

import "fmt"

// Passage is one retrieved chunk with its similarity score and citation.
type Passage struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	PageStart  int     `json:"page_start"`
	PageEnd    int     `json:"page_end"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// Citation renders the source reference shown next to a passage.
func (p Passage) Citation() string {
	if p.PageStart == p.PageEnd {
		return fmt.Sprintf("%s, p.%d", p.Title, p.PageStart+1)
	}
	return fmt.Sprintf("%s, pp.%d-%d", p.Title, p.PageStart+1, p.PageEnd+1)
}

// PromptPayload is the bounded prompt assembled for the generation service.
type PromptPayload struct {
	Context  string    `json:"context"`
	Passages []Passage `json:"passages"`
	History  []Message `json:"history"`
	Grounded bool      `json:"grounded"`
}
