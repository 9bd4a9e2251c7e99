package api

import (
	"errors"
	"io"
	"net/http"

	"make-comics-server/routers/middleware"
	"make-comics-server/service"

	"github.com/gin-gonic/gin"
)

// GenerateComic handles POST /v1/api/generate-comic.
func (h *Handler) GenerateComic(c *gin.Context) {
	var req service.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	res, err := h.generator.Generate(c.Request.Context(), middleware.UserID(c), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RedrawPage handles POST /v1/api/pages/:page_id/redraw. An empty body redraws with the stored inputs.
func (h *Handler) RedrawPage(c *gin.Context) {
	var req service.RedrawRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	res, err := h.generator.Redraw(c.Request.Context(), middleware.UserID(c), c.Param("page_id"), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
