package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"make-comics-server/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// ArchiveStore is the persistence the archive worker needs.
type ArchiveStore interface {
	GetPage(ctx context.Context, id string) (*models.Page, error)
	SetPageArchive(ctx context.Context, pageID, objectKey string) error
}

// ObjectWriter stores archived page images by key.
type ObjectWriter interface {
	Put(ctx context.Context, r io.Reader, size int64, objectName, contentType string) error
}

// Processor consumes archive jobs.
type Processor struct {
	store      ArchiveStore
	storage    ObjectWriter
	httpClient *http.Client
	logger     *zap.Logger
}

func NewProcessor(store ArchiveStore, storage ObjectWriter, httpClient *http.Client, logger *zap.Logger) *Processor {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		store:      store,
		storage:    storage,
		httpClient: httpClient,
		logger:     logger.Named("Processor"),
	}
}

// Start runs the asynq server in the background. Callers shut it down on exit.
func (p *Processor) Start(opt asynq.RedisConnOpt, concurrency int) (*asynq.Server, error) {
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
		},
		Logger: p.logger.Sugar(),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeArchivePage, p.HandleArchivePage)

	p.logger.Info("starting archive processor", zap.Int("concurrency", concurrency))
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("start processor: %w", err)
	}
	return srv, nil
}

func archiveObjectName(storyID string, pageNumber int) string {
	return fmt.Sprintf("comics/%s/page-%d.jpg", storyID, pageNumber)
}

// HandleArchivePage copies a ready page's generated image into object storage.
func (p *Processor) HandleArchivePage(ctx context.Context, t *asynq.Task) error {
	err := p.archivePage(ctx, t)
	switch {
	case err == nil:
		archiveTotal.WithLabelValues("success").Inc()
	case errors.Is(err, asynq.SkipRetry):
		archiveTotal.WithLabelValues("skipped").Inc()
	default:
		archiveTotal.WithLabelValues("error").Inc()
	}
	return err
}

func (p *Processor) archivePage(ctx context.Context, t *asynq.Task) error {
	var payload ArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	page, err := p.store.GetPage(ctx, payload.PageID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("page %s: %v: %w", payload.PageID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("load page %s: %w", payload.PageID, err)
	}
	if page.Status != models.PageStatusReady || page.GeneratedImageURL == nil || *page.GeneratedImageURL == "" {
		return fmt.Errorf("page %s has no generated image: %w", page.ID, asynq.SkipRetry)
	}
	log := p.logger.With(zap.String("page_id", page.ID), zap.String("story_id", page.StoryID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *page.GeneratedImageURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %v: %w", err, asynq.SkipRetry)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status: %d", resp.StatusCode)
	}

	objectName := archiveObjectName(page.StoryID, page.PageNumber)
	if err := p.storage.Put(ctx, resp.Body, resp.ContentLength, objectName, resp.Header.Get("Content-Type")); err != nil {
		return err
	}
	if err := p.store.SetPageArchive(ctx, page.ID, objectName); err != nil {
		return fmt.Errorf("record archive: %w", err)
	}
	log.Info("page archived", zap.String("object", objectName))
	return nil
}
