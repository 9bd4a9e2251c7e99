package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"make-comics-server/models"
	"make-comics-server/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ComicGenerator runs page generation for the comic endpoints.
type ComicGenerator interface {
	Generate(ctx context.Context, userID string, req service.GenerateRequest) (*service.GenerateResult, error)
	Redraw(ctx context.Context, userID, pageID string, req service.RedrawRequest) (*service.GenerateResult, error)
}

// StoryReader is the read side of the store used by the story and page endpoints.
type StoryReader interface {
	GetStoryBySlug(ctx context.Context, slug string) (*models.Story, error)
	ListStoriesByUser(ctx context.Context, userID string) ([]models.Story, error)
	ListPages(ctx context.Context, storyID string) ([]models.Page, error)
	GetPage(ctx context.Context, id string) (*models.Page, error)
}

// ObjectStore keeps uploaded and archived images by key and issues URLs for them on read.
type ObjectStore interface {
	Put(ctx context.Context, r io.Reader, size int64, objectName, contentType string) error
	ObjectURL(ctx context.Context, objectName string) (string, error)
}

type Handler struct {
	generator      ComicGenerator
	stories        StoryReader
	objects        ObjectStore
	maxUploadBytes int64
	pollInterval   time.Duration
	logger         *zap.Logger
}

func NewHandler(generator ComicGenerator, stories StoryReader, objects ObjectStore, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = 10 << 20
	}
	return &Handler{
		generator:      generator,
		stories:        stories,
		objects:        objects,
		maxUploadBytes: maxUploadBytes,
		pollInterval:   time.Second,
		logger:         logger.Named("API"),
	}
}

// respondError writes the JSON error body for err. Unknown errors become a generic 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	e, ok := service.AsError(err)
	if !ok {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error: " + err.Error()})
		return
	}

	status := e.HTTPStatus()
	body := gin.H{"error": e.Message}
	switch e.Kind {
	case service.KindInsufficientCredits:
		body["errorType"] = "credit_limit"
	case service.KindUpstream:
		body["errorType"] = "api_error"
	case service.KindRateLimited:
		body["isRateLimited"] = true
		body["resetDate"] = formatResetDate(e.ResetAt)
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

const resetDateLayout = "2006-01-02T15:04:05.000Z07:00"

// formatResetDate renders t in UTC with millisecond precision, rounded up so a client
// retrying at the reported instant is never early.
func formatResetDate(t time.Time) string {
	t = t.UTC()
	ms := t.Truncate(time.Millisecond)
	if ms.Before(t) {
		ms = ms.Add(time.Millisecond)
	}
	return ms.Format(resetDateLayout)
}

// presentPage fills the URLs a client needs from the object keys stored on p.
func (h *Handler) presentPage(ctx context.Context, p *models.Page) {
	if h.objects == nil {
		return
	}
	if p.ArchivedObjectKey != nil && *p.ArchivedObjectKey != "" {
		u, err := h.objects.ObjectURL(ctx, *p.ArchivedObjectKey)
		if err != nil {
			h.logger.Warn("archived image url unavailable", zap.String("page_id", p.ID), zap.Error(err))
		} else {
			p.ArchivedImageURL = u
		}
	}
	if len(p.CharacterImageURLs) == 0 {
		return
	}
	refs := make(models.StringList, len(p.CharacterImageURLs))
	for i, ref := range p.CharacterImageURLs {
		refs[i] = ref
		if !service.IsObjectKey(ref) {
			continue
		}
		u, err := h.objects.ObjectURL(ctx, ref)
		if err != nil {
			h.logger.Warn("character image url unavailable", zap.String("page_id", p.ID), zap.Error(err))
			continue
		}
		refs[i] = u
	}
	p.CharacterImageURLs = refs
}
