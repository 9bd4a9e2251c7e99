package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"make-comics-server/routers/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadCharacterImage handles POST /v1/api/uploads. The returned key is what callers pass as a
// character image; url is a fresh link for previewing it.
func (h *Handler) UploadCharacterImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+1<<20)

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file"})
		return
	}
	if file.Size > h.maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("File exceeds %d bytes", h.maxUploadBytes)})
		return
	}
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only image uploads are supported"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read file"})
		return
	}
	defer src.Close()

	userID := middleware.UserID(c)
	key := fmt.Sprintf("uploads/%s/%s%s", userID, uuid.NewString(), strings.ToLower(filepath.Ext(file.Filename)))
	ctx := c.Request.Context()
	if err := h.objects.Put(ctx, src, file.Size, key, contentType); err != nil {
		h.logger.Error("upload failed", zap.String("user_id", userID), zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}
	url, err := h.objects.ObjectURL(ctx, key)
	if err != nil {
		h.logger.Error("upload url failed", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "key": key})
}
