package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/bookbrain-ai/bookbrain-be/repository"
	"github.com/bookbrain-ai/bookbrain-be/service"
	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/gin-gonic/gin"
)

// DocumentHandler covers the library explorer: listing documents,
// toggling their retrieval inclusion, deleting them, knowledge base
// stats, and serving stored source files.
type DocumentHandler struct {
	ingestService *service.IngestService
	documents     repository.DocumentRepo
	inclusions    repository.InclusionRepo
	uploadDir     string
}

func NewDocumentHandler(
	ingestService *service.IngestService,
	documents repository.DocumentRepo,
	inclusions repository.InclusionRepo,
	uploadDir string,
) *DocumentHandler {
	return &DocumentHandler{
		ingestService: ingestService,
		documents:     documents,
		inclusions:    inclusions,
		uploadDir:     uploadDir,
	}
}

type documentView struct {
	types.Document
	Included bool `json:"included"`
}

func (h *DocumentHandler) ListDocumentsHandler(c *gin.Context) {
	docs, err := h.documents.ListDocuments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}
	views := make([]documentView, 0, len(docs))
	for _, doc := range docs {
		included, err := h.inclusions.IsIncluded(c.Request.Context(), doc.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, types.DataResponse{
				Status:  false,
				Message: err.Error(),
			})
			return
		}
		views = append(views, documentView{Document: *doc, Included: included})
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   views,
	})
}

func (h *DocumentHandler) GetDocumentHandler(c *gin.Context) {
	doc, err := h.documents.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == repository.ErrNotFound {
			c.JSON(http.StatusNotFound, types.DataResponse{
				Status:  false,
				Message: "Document not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}
	included, err := h.inclusions.IsIncluded(c.Request.Context(), doc.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   documentView{Document: *doc, Included: included},
	})
}

func (h *DocumentHandler) DeleteDocumentHandler(c *gin.Context) {
	if err := h.ingestService.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		if err == repository.ErrNotFound {
			c.JSON(http.StatusNotFound, types.DataResponse{
				Status:  false,
				Message: "Document not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status:  true,
		Message: "Document deleted",
	})
}

func (h *DocumentHandler) SetInclusionHandler(c *gin.Context) {
	var req types.SetInclusionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid request body",
		})
		return
	}
	if err := h.ingestService.SetIncluded(c.Request.Context(), c.Param("id"), req.Included); err != nil {
		if err == repository.ErrNotFound {
			c.JSON(http.StatusNotFound, types.DataResponse{
				Status:  false,
				Message: "Document not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   gin.H{"document_id": c.Param("id"), "included": req.Included},
	})
}

func (h *DocumentHandler) StatsHandler(c *gin.Context) {
	stats, err := h.ingestService.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   stats,
	})
}

// ServeFileHandler streams a stored source file back to the client. The
// path is resolved through the document record, never from user input.
func (h *DocumentHandler) ServeFileHandler(c *gin.Context) {
	doc, err := h.documents.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, types.DataResponse{
			Status:  false,
			Message: "Document not found",
		})
		return
	}
	if filepath.Ext(doc.Source) == ".pdf" {
		c.Header("Content-Type", "application/pdf")
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%s%s", doc.Title, filepath.Ext(doc.Source)))
	c.File(doc.Source)
}
