package api

import (
	"errors"
	"net/http"

	"make-comics-server/models"
	"make-comics-server/routers/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type storySummary struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// GetStory handles GET /v1/api/stories/:slug. The slug "all" lists the caller's stories.
func (h *Handler) GetStory(c *gin.Context) {
	slug := c.Param("slug")
	userID := middleware.UserID(c)
	ctx := c.Request.Context()

	if slug == "all" {
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required for this endpoint"})
			return
		}
		stories, err := h.stories.ListStoriesByUser(ctx, userID)
		if err != nil {
			h.logger.Error("list stories failed", zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch story"})
			return
		}
		summaries := make([]storySummary, 0, len(stories))
		for _, s := range stories {
			summaries = append(summaries, storySummary{ID: s.ID, Slug: s.Slug, Title: s.Title})
		}
		c.JSON(http.StatusOK, gin.H{"message": "User stories", "stories": summaries})
		return
	}

	story, err := h.stories.GetStoryBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Story not found"})
			return
		}
		h.logger.Error("get story failed", zap.String("slug", slug), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch story"})
		return
	}
	pages, err := h.stories.ListPages(ctx, story.ID)
	if err != nil {
		h.logger.Error("list pages failed", zap.String("story_id", story.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch story"})
		return
	}
	if pages == nil {
		pages = []models.Page{}
	}
	for i := range pages {
		h.presentPage(ctx, &pages[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"story":   story,
		"pages":   pages,
		"isOwner": userID != "" && story.UserID == userID,
	})
}

// ListStories handles GET /v1/api/stories.
func (h *Handler) ListStories(c *gin.Context) {
	userID := middleware.UserID(c)
	stories, err := h.stories.ListStoriesByUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("list stories failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stories"})
		return
	}
	if stories == nil {
		stories = []models.Story{}
	}
	c.JSON(http.StatusOK, gin.H{"stories": stories})
}
