package projection

import (
	"errors"
	"net/http"

	httperr "github.com/aevon-lab/pricewatch/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all presenter API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/items", s.HandleListItems)
	r.GET("/v1/items/:identifier/history", s.HandleItemHistory)
	r.GET("/v1/summary", s.HandleSummary)
}

// HandleListItems handles GET /v1/items
// Query parameters: source
func (s *Service) HandleListItems(c *gin.Context) {
	resp, err := s.ListItems(c.Request.Context(), c.Query("source"))
	if err != nil {
		respondError(c, err, "Failed to list items")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleItemHistory handles GET /v1/items/:identifier/history
// Query parameters: granularity (raw|1d), op (min|max|count)
func (s *Service) HandleItemHistory(c *gin.Context) {
	var req HistoryQueryRequest

	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid path parameters",
			Details:   err.Error(),
		})
		return
	}

	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	resp, err := s.ItemHistory(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to query item history")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleSummary handles GET /v1/summary
func (s *Service) HandleSummary(c *gin.Context) {
	resp, err := s.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to build summary")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func respondError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid history query",
			Details:   err.Error(),
		})
	case errors.Is(err, ErrItemNotFound):
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpNotFoundError,
			Message:   "Item not found",
			Details:   err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   message,
			Details:   err.Error(),
		})
	}
}
