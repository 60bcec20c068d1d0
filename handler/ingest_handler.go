package handler

import (
	"encoding/json"
	"net/http"

	"github.com/bookbrain-ai/bookbrain-be/service"
	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/gin-gonic/gin"
)

type IngestHandler struct {
	ingestService *service.IngestService
}

func NewIngestHandler(ingestService *service.IngestService) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
	}
}

// IngestDocumentHandler accepts a multipart upload and streams per-page
// extraction progress back as SSE while the pipeline runs.
func (h *IngestHandler) IngestDocumentHandler(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid file",
		})
		return
	}
	defer file.Close()

	var req types.IngestRequest
	if metadata := c.Request.FormValue("metadata"); metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &req); err != nil {
			c.JSON(http.StatusBadRequest, types.DataResponse{
				Status:  false,
				Message: "Invalid metadata",
			})
			return
		}
	}

	const maxSize = 100 << 20
	if header.Size > maxSize {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "File too large",
		})
		return
	}

	statusChan := make(chan types.ProcessingDocumentStatus)
	type ingestResult struct {
		doc *types.Document
		err error
	}
	resultChan := make(chan ingestResult, 1)
	go func() {
		doc, err := h.ingestService.IngestFile(c.Request.Context(), req, header, statusChan)
		resultChan <- ingestResult{doc: doc, err: err}
	}()

	clientGone := c.Writer.CloseNotify()
	for {
		select {
		case <-clientGone:
			// Stop writing but keep draining statusChan until the pipeline
			// finishes its cancellation path, so no page worker is left
			// blocked and the document lock is released.
			clientGone = nil
		case status := <-statusChan:
			if clientGone == nil {
				continue
			}
			jsonStatus, err := json.Marshal(status)
			if err != nil {
				continue
			}
			c.SSEvent("message", string(jsonStatus))
			c.Writer.Flush()
		case result := <-resultChan:
			if clientGone == nil {
				return
			}
			if result.err != nil {
				c.JSON(http.StatusInternalServerError, types.DataResponse{
					Status:  false,
					Message: result.err.Error(),
				})
				return
			}
			c.JSON(http.StatusOK, types.DataResponse{
				Status: true,
				Data: types.IngestResponse{
					DocumentID: result.doc.ID,
					Title:      result.doc.Title,
					Status:     string(result.doc.Status),
					TotalPages: result.doc.TotalPages,
				},
			})
			return
		}
	}
}
