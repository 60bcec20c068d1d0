package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bookbrain-ai/bookbrain-be/config"
	"github.com/bookbrain-ai/bookbrain-be/types"
)

// ChunkService splits a document's concatenated page text into
// overlapping chunks sized for embedding. Chunking is deterministic:
// the same pages always produce the same chunk set.
type ChunkService struct {
	chunkSize int
	overlap   int
	tolerance int
}

func NewChunkService(cfg config.ChunkingConfig) *ChunkService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = cfg.ChunkSize / 10
	}
	if cfg.Tolerance <= 0 || cfg.Tolerance >= cfg.ChunkSize-cfg.Overlap {
		cfg.Tolerance = (cfg.ChunkSize - cfg.Overlap) / 4
	}
	return &ChunkService{
		chunkSize: cfg.ChunkSize,
		overlap:   cfg.Overlap,
		tolerance: cfg.Tolerance,
	}
}

type pageSpan struct {
	start, end int
	index      int
}

// Chunk produces the chunk set for a document. Pages with no text (failed
// extraction) contribute nothing but do not break page attribution for
// their neighbors. An empty document yields zero chunks.
func (s *ChunkService) Chunk(documentID string, pages []types.Page) []types.Chunk {
	text, spans := concatPages(pages)
	n := len(text)
	if n == 0 {
		return nil
	}

	var chunks []types.Chunk
	pos := 0
	seq := 0
	for {
		end := pos + s.chunkSize
		if end >= n {
			end = n
		} else {
			end = s.cutPoint(text, pos, end)
		}
		chunks = append(chunks, types.Chunk{
			ID:         fmt.Sprintf("%s:%04d", documentID, seq),
			DocumentID: documentID,
			Seq:        seq,
			Start:      pos,
			End:        end,
			PageStart:  pageAt(spans, pos),
			PageEnd:    pageAt(spans, end-1),
			Text:       text[pos:end],
		})
		if end >= n {
			break
		}
		pos = end - s.overlap
		if pos < 0 {
			pos = 0
		}
		// The overlap window may start mid-rune; advance to the next rune.
		for pos < n && !utf8.RuneStart(text[pos]) {
			pos++
		}
		seq++
	}
	return chunks
}

// cutPoint snaps the chunk boundary backward to a sentence end, else a
// whitespace boundary, within the tolerance window. With no boundary in
// the window it hard-cuts at the target (aligned to a rune start).
func (s *ChunkService) cutPoint(text string, pos, target int) int {
	low := target - s.tolerance
	if low < pos+1 {
		low = pos + 1
	}
	for i := target; i >= low; i-- {
		c := text[i-1]
		if c == '.' || c == '?' || c == '!' {
			return i
		}
	}
	for i := target; i >= low; i-- {
		if text[i] == ' ' || text[i] == '\n' || text[i] == '\t' {
			return i
		}
	}
	// Hard cut; do not sever a multi-byte rune.
	for target > pos+1 && !utf8.RuneStart(text[target]) {
		target--
	}
	return target
}

// concatPages joins page texts with newlines, recording the offset range
// each page occupies for later citation lookup.
func concatPages(pages []types.Page) (string, []pageSpan) {
	var sb strings.Builder
	var spans []pageSpan
	for _, p := range pages {
		if p.Text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		start := sb.Len()
		sb.WriteString(p.Text)
		spans = append(spans, pageSpan{start: start, end: sb.Len(), index: p.Index})
	}
	return sb.String(), spans
}

// pageAt returns the page index owning the given text offset. Offsets in
// the separator between pages attach to the preceding page.
func pageAt(spans []pageSpan, offset int) int {
	if len(spans) == 0 {
		return 0
	}
	page := spans[0].index
	for _, span := range spans {
		if span.start > offset {
			break
		}
		page = span.index
	}
	return page
}
