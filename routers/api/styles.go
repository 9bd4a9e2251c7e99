package api

import (
	"net/http"

	"make-comics-server/service"

	"github.com/gin-gonic/gin"
)

// ListStyles handles GET /v1/api/styles.
func (h *Handler) ListStyles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"styles":       service.Styles(),
		"defaultStyle": service.DefaultStyleID,
		"models":       service.ModelModes(),
	})
}
