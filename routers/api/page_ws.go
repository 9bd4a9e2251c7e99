package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"make-comics-server/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const pageWatchLimit = 5 * time.Minute

// PageStatusWebSocket streams a page over a websocket. The current row is sent first, then every
// status change, and the connection closes once the page is ready or failed. Polling stops as soon
// as the client goes away.
func (h *Handler) PageStatusWebSocket(c *gin.Context) {
	pageID := c.Param("page_id")
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	page, err := h.stories.GetPage(ctx, pageID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Page not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load page"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("page_id", pageID), zap.Error(err))
		return
	}
	defer conn.Close()

	// the request context outlives a hijacked connection; a failed read is the disconnect signal
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.presentPage(ctx, page)
	if err := conn.WriteJSON(page); err != nil || page.Status.Terminal() {
		closeNormal(conn)
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()
	deadline := time.After(pageWatchLimit)
	prev := page.Status

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			closeNormal(conn)
			return
		case <-ticker.C:
			cur, err := h.stories.GetPage(ctx, pageID)
			if err != nil {
				continue
			}
			if cur.Status == prev {
				continue
			}
			h.presentPage(ctx, cur)
			if err := conn.WriteJSON(cur); err != nil {
				return
			}
			prev = cur.Status
			if cur.Status.Terminal() {
				closeNormal(conn)
				return
			}
		}
	}
}

func closeNormal(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}
