package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/bookbrain-ai/bookbrain-be/config"
	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/panjf2000/ants/v2"
)

// ExtractService decides per page whether the embedded text layer is
// trustworthy or OCR must be invoked, and records method and confidence
// for every page. A single page failing never aborts the document.
type ExtractService struct {
	source PageSource
	ocr    OCREngine
	cfg    config.ExtractionConfig
}

func NewExtractService(cfg config.ExtractionConfig, source PageSource, ocr OCREngine) *ExtractService {
	if cfg.MinDirectChars <= 0 {
		cfg.MinDirectChars = 100
	}
	if cfg.MinAlphaRatio <= 0 {
		cfg.MinAlphaRatio = 0.5
	}
	if cfg.ReviewConfidence <= 0 {
		cfg.ReviewConfidence = 0.7
	}
	if cfg.OCRMaxAttempts <= 0 {
		cfg.OCRMaxAttempts = 3
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &ExtractService{
		source: source,
		ocr:    ocr,
		cfg:    cfg,
	}
}

// Extract runs the two-path extraction state machine over every page of
// the document at path. Progress events are sent on the optional channel.
func (s *ExtractService) Extract(ctx context.Context, doc *types.Document, path string, progress chan<- types.ProcessingDocumentStatus) (*types.ExtractionResult, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return s.extractPDF(ctx, doc, path, progress)
	case ".docx":
		return s.extractDocx(ctx, doc, path, progress)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedFileType, filepath.Ext(path))
	}
}

func (s *ExtractService) extractPDF(ctx context.Context, doc *types.Document, path string, progress chan<- types.ProcessingDocumentStatus) (*types.ExtractionResult, error) {
	totalPages, err := s.source.NumPages(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page count: %w", err)
	}
	log.Printf("Extracting %q: %d pages", doc.Title, totalPages)

	pages := make([]types.Page, totalPages)
	var processed int64

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := 0; i < totalPages; i++ {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			// Each worker writes its own slot, aggregation needs no lock.
			pages[i] = s.extractPage(ctx, doc.ID, path, i)
			done := int(atomic.AddInt64(&processed, 1))
			sendProgress(ctx, progress, types.ProcessingDocumentStatus{
				Status:         "processing",
				Message:        fmt.Sprintf("Processed page %d of %d", done, totalPages),
				Progress:       float64(done) / float64(totalPages),
				TotalPages:     totalPages,
				ProcessedPages: done,
				Page:           i,
				Method:         pages[i].Method,
				Confidence:     pages[i].Confidence,
			})
		}
		if err := pool.Submit(task); err != nil {
			// Pool is closed only on release; run inline as a fallback.
			task()
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &types.ExtractionResult{
		DocumentID: doc.ID,
		Pages:      pages,
	}
	switch usable := result.UsablePages(); {
	case usable == 0:
		result.Status = types.DocStatusFailed
		return result, types.ErrExtractionFailed
	case usable < totalPages:
		result.Status = types.DocStatusPartial
	default:
		result.Status = types.DocStatusCompleted
	}
	return result, nil
}

// extractPage is the per-page state machine: direct extraction, quality
// evaluation, OCR fallback, terminal state.
func (s *ExtractService) extractPage(ctx context.Context, documentID, path string, index int) types.Page {
	page := types.Page{
		DocumentID: documentID,
		Index:      index,
		Method:     types.MethodNone,
	}

	text, err := s.source.PageText(path, index+1)
	if err != nil {
		log.Printf("Warning: direct extraction failed for page %d: %v", index+1, err)
	} else {
		text = cleanText(text)
		if s.directTextUsable(text) {
			page.Text = text
			page.Method = types.MethodDirect
			page.Confidence = 1.0
			return page
		}
	}

	ocrText, confidence, err := s.recognizePage(ctx, path, index+1)
	if err != nil {
		log.Printf("Warning: OCR failed for page %d: %v", index+1, err)
		page.NeedsReview = true
		return page
	}
	ocrText = cleanText(ocrText)
	if ocrText == "" {
		page.NeedsReview = true
		return page
	}

	page.Text = ocrText
	page.Method = types.MethodOCR
	page.Confidence = clamp01(confidence)
	page.NeedsReview = page.Confidence < s.cfg.ReviewConfidence
	return page
}

// recognizePage rasterizes a page and runs OCR with bounded retries. An
// unreachable OCR engine is retried with exponential backoff; exhausting
// the budget leaves the page low-confidence instead of blocking ingestion.
func (s *ExtractService) recognizePage(ctx context.Context, path string, pageNum int) (string, float64, error) {
	tempDir, err := os.MkdirTemp("", "bookbrain-ocr-")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	imagePath, err := s.source.RasterizePage(path, pageNum, tempDir)
	if err != nil {
		return "", 0, err
	}

	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < s.cfg.OCRMaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", 0, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		text, confidence, err := s.ocr.Recognize(ctx, imagePath)
		if err == nil {
			return text, confidence, nil
		}
		lastErr = err
	}
	return "", 0, fmt.Errorf("%w: %v", types.ErrOCREngineUnavailable, lastErr)
}

func (s *ExtractService) extractDocx(ctx context.Context, doc *types.Document, path string, progress chan<- types.ProcessingDocumentStatus) (*types.ExtractionResult, error) {
	text, err := extractDocxText(path)
	if err != nil {
		return nil, err
	}
	text = cleanText(text)

	// DOCX is not paginated; the whole body is one synthetic page.
	page := types.Page{
		DocumentID: doc.ID,
		Index:      0,
		Text:       text,
		Method:     types.MethodDirect,
		Confidence: 1.0,
	}
	result := &types.ExtractionResult{
		DocumentID: doc.ID,
		Pages:      []types.Page{page},
		Status:     types.DocStatusCompleted,
	}
	if text == "" {
		page.Method = types.MethodNone
		page.Confidence = 0
		page.NeedsReview = true
		result.Pages = []types.Page{page}
		result.Status = types.DocStatusFailed
		return result, types.ErrExtractionFailed
	}
	sendProgress(ctx, progress, types.ProcessingDocumentStatus{
		Status:         "processing",
		Message:        "Processed page 1 of 1",
		Progress:       1,
		TotalPages:     1,
		ProcessedPages: 1,
		Method:         types.MethodDirect,
		Confidence:     1.0,
	})
	return result, nil
}

// directTextUsable applies the OCR fallback trigger: enough characters and
// a sane share of alphabetic content.
func (s *ExtractService) directTextUsable(text string) bool {
	if len(text) < s.cfg.MinDirectChars {
		return false
	}
	return alphaRatio(text) >= s.cfg.MinAlphaRatio
}

func alphaRatio(text string) float64 {
	letters, total := 0, 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(letters) / float64(total)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// sendProgress delivers a progress event to the optional channel. The
// send is released by context cancellation so a consumer that stopped
// reading (a disconnected client) never strands a page worker.
func sendProgress(ctx context.Context, c chan<- types.ProcessingDocumentStatus, status types.ProcessingDocumentStatus) {
	if c == nil {
		return
	}
	select {
	case c <- status:
	case <-ctx.Done():
	}
}

func cleanText(text string) string {
	replacements := map[string]string{
		"\u0000": "",   // Null character
		"\ufffd": "",   // Unicode replacement character
		"\u001b": "",   // Escape character
		"\r":     "",   // Carriage return
		"\f":     "\n", // Form feed to newline
		"  ":     " ",  // Multiple spaces to single space
	}
	cleaned := text
	for old, new := range replacements {
		cleaned = strings.ReplaceAll(cleaned, old, new)
	}
	return strings.TrimSpace(cleaned)
}
