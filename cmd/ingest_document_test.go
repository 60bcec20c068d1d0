package cmd

import (
	"testing"

	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/stretchr/testify/assert"
)

func TestFormatProgress(t *testing.T) {
	// Page indices are zero-based on the wire; the terminal shows 1-based.
	firstPage := types.ProcessingDocumentStatus{
		Status:     "processing",
		TotalPages: 12,
		Page:       0,
		Method:     types.MethodDirect,
		Confidence: 1.0,
	}
	assert.Equal(t, "page 1/12 method=direct confidence=1.00", formatProgress(firstPage))

	ocrPage := types.ProcessingDocumentStatus{
		Status:     "processing",
		TotalPages: 12,
		Page:       4,
		Method:     types.MethodOCR,
		Confidence: 0.81,
	}
	assert.Equal(t, "page 5/12 method=ocr confidence=0.81", formatProgress(ocrPage))

	// Pipeline-stage events carry no method and print their message.
	stage := types.ProcessingDocumentStatus{
		Status:  "processing",
		Message: "Embedding 42 chunks",
	}
	assert.Equal(t, "Embedding 42 chunks", formatProgress(stage))
}
