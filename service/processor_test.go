package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"make-comics-server/models"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchiveStore struct {
	pages    map[string]*models.Page
	archived map[string]string
	setErr   error
}

func (f *fakeArchiveStore) GetPage(_ context.Context, id string) (*models.Page, error) {
	p, ok := f.pages[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (f *fakeArchiveStore) SetPageArchive(_ context.Context, pageID, objectKey string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.archived[pageID] = objectKey
	return nil
}

type fakeObjectWriter struct {
	objectName  string
	contentType string
	body        []byte
}

func (f *fakeObjectWriter) Put(_ context.Context, r io.Reader, _ int64, objectName, contentType string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objectName, f.contentType, f.body = objectName, contentType, b
	return nil
}

func readyPage(id, imageURL string) *models.Page {
	return &models.Page{
		ID:                id,
		StoryID:           "story-9",
		PageNumber:        2,
		Status:            models.PageStatusReady,
		GeneratedImageURL: &imageURL,
	}
}

func TestNewArchiveTask(t *testing.T) {
	task, err := NewArchiveTask("page-1")
	require.NoError(t, err)
	assert.Equal(t, TypeArchivePage, task.Type())

	var payload ArchivePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "page-1", payload.PageID)
}

func TestProcessor_HandleArchivePage(t *testing.T) {
	img := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNGDATA"))
	}))
	defer img.Close()

	pending := readyPage("page-pending", img.URL+"/p.png")
	pending.Status = models.PageStatusPending
	store := &fakeArchiveStore{
		pages: map[string]*models.Page{
			"page-ok":      readyPage("page-ok", img.URL+"/p.png"),
			"page-gone":    readyPage("page-gone", img.URL+"/missing.png"),
			"page-pending": pending,
		},
		archived: map[string]string{},
	}
	uploader := &fakeObjectWriter{}
	p := NewProcessor(store, uploader, img.Client(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("archives ready page", func(t *testing.T) {
		task, _ := NewArchiveTask("page-ok")
		require.NoError(t, p.HandleArchivePage(ctx, task))
		assert.Equal(t, "comics/story-9/page-2.jpg", uploader.objectName)
		assert.Equal(t, "image/png", uploader.contentType)
		assert.Equal(t, "PNGDATA", string(uploader.body))
		// the key is stored, never an expiring URL
		assert.Equal(t, "comics/story-9/page-2.jpg", store.archived["page-ok"])
	})

	t.Run("download failure is retried", func(t *testing.T) {
		task, _ := NewArchiveTask("page-gone")
		err := p.HandleArchivePage(ctx, task)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("unknown page is not retried", func(t *testing.T) {
		task, _ := NewArchiveTask("nope")
		assert.ErrorIs(t, p.HandleArchivePage(ctx, task), asynq.SkipRetry)
	})

	t.Run("page without image is not retried", func(t *testing.T) {
		task, _ := NewArchiveTask("page-pending")
		assert.ErrorIs(t, p.HandleArchivePage(ctx, task), asynq.SkipRetry)
	})

	t.Run("bad payload is not retried", func(t *testing.T) {
		err := p.HandleArchivePage(ctx, asynq.NewTask(TypeArchivePage, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("store failure is retried", func(t *testing.T) {
		store.setErr = errors.New("db down")
		defer func() { store.setErr = nil }()
		task, _ := NewArchiveTask("page-ok")
		err := p.HandleArchivePage(ctx, task)
		require.Error(t, err)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})
}

func TestStorage_ObjectURL(t *testing.T) {
	s, err := NewStorage("localhost:9000", "ak", "sk", "make-comics", false, "https://cdn.example.com/", nil)
	require.NoError(t, err)

	u, err := s.ObjectURL(context.Background(), "uploads/user/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/make-comics/uploads/user/a.png", u)
}

func TestStorage_ResolveReference(t *testing.T) {
	s, err := NewStorage("localhost:9000", "ak", "sk", "make-comics", false, "https://cdn.example.com", nil)
	require.NoError(t, err)
	ctx := context.Background()

	u, err := s.ResolveReference(ctx, "comics/story-9/page-2.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/make-comics/comics/story-9/page-2.jpg", u)

	u, err = s.ResolveReference(ctx, "https://img.example/hero.png")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/hero.png", u)

	assert.True(t, IsObjectKey("uploads/u/a.png"))
	assert.False(t, IsObjectKey("https://img.example/hero.png"))
	assert.False(t, IsObjectKey(""))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", contentTypeFor("comics/s/page-1.jpg"))
	assert.Equal(t, "image/jpeg", contentTypeFor("a.JPEG"))
	assert.Equal(t, "image/png", contentTypeFor("a.png"))
	assert.Equal(t, "image/webp", contentTypeFor("a.webp"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("a"))
}
