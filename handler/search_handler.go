package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/bookbrain-ai/bookbrain-be/service"
	"github.com/bookbrain-ai/bookbrain-be/types"
	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	retrievalService *service.RetrievalService
}

func NewSearchHandler(retrievalService *service.RetrievalService) *SearchHandler {
	return &SearchHandler{
		retrievalService: retrievalService,
	}
}

// SearchHandler answers GET /search?q=...&limit=... An empty knowledge
// base is reported as a flagged 200, not an error: the UI renders it as
// "include some books first".
func (h *SearchHandler) SearchHandler(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Query parameter 'q' is required",
		})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, types.DataResponse{
				Status:  false,
				Message: "Invalid limit",
			})
			return
		}
		limit = parsed
	}

	passages, err := h.retrievalService.Retrieve(c.Request.Context(), query, limit)
	if err != nil {
		if errors.Is(err, types.ErrNoKnowledgeBase) {
			c.JSON(http.StatusOK, types.DataResponse{
				Status: true,
				Data: types.SearchResponse{
					Passages:        []types.Passage{},
					NoKnowledgeBase: true,
				},
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
		Data: types.SearchResponse{
			Passages: passages,
		},
	})
}
