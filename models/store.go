package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const slugAttempts = 3

// Store is the gorm-backed gateway for stories and pages.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// CreateStory inserts a story with a fresh slug, retrying when the slug is already taken.
func (s *Store) CreateStory(ctx context.Context, in NewStory) (*Story, error) {
	var story *Story
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		story, err = createStory(tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return story, nil
}

func createStory(tx *gorm.DB, in NewStory) (*Story, error) {
	var lastErr error
	for i := 0; i < slugAttempts; i++ {
		story := &Story{
			ID:          uuid.NewString(),
			Slug:        NewSlug(in.Title),
			Title:       in.Title,
			Description: in.Description,
			UserID:      in.UserID,
			Style:       in.Style,
		}
		if err := tx.SavePoint("story").Error; err != nil {
			return nil, fmt.Errorf("savepoint: %w", err)
		}
		err := tx.Create(story).Error
		if err == nil {
			return story, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("create story: %w", err)
		}
		tx.RollbackTo("story")
		lastErr = err
	}
	return nil, fmt.Errorf("create story: slug collisions: %w", lastErr)
}

func newPage(storyID string, pageNumber int, prompt string, characterImageURLs []string) *Page {
	urls := StringList(characterImageURLs)
	if urls == nil {
		urls = StringList{}
	}
	return &Page{
		ID:                 uuid.NewString(),
		StoryID:            storyID,
		PageNumber:         pageNumber,
		Prompt:             prompt,
		CharacterImageURLs: urls,
		Status:             PageStatusPending,
	}
}

// CreatePage inserts a pending page with an explicit number.
func (s *Store) CreatePage(ctx context.Context, storyID string, pageNumber int, prompt string, characterImageURLs []string) (*Page, error) {
	page := newPage(storyID, pageNumber, prompt, characterImageURLs)
	if err := s.db.WithContext(ctx).Create(page).Error; err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return page, nil
}

// NextPageNumber returns the number of pages in the story plus one.
func (s *Store) NextPageNumber(ctx context.Context, storyID string) (int, error) {
	return nextPageNumber(s.db.WithContext(ctx), storyID)
}

func nextPageNumber(db *gorm.DB, storyID string) (int, error) {
	var count int64
	if err := db.Model(&Page{}).Where("story_id = ?", storyID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return int(count) + 1, nil
}

// CreateStoryWithFirstPage creates the story and its page 1 in one transaction.
func (s *Store) CreateStoryWithFirstPage(ctx context.Context, in NewStory, prompt string, characterImageURLs []string) (*Story, *Page, error) {
	var (
		story *Story
		page  *Page
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		story, err = createStory(tx, in)
		if err != nil {
			return err
		}
		page = newPage(story.ID, 1, prompt, characterImageURLs)
		if err := tx.Create(page).Error; err != nil {
			return fmt.Errorf("create page: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return story, page, nil
}

// CreateNextPage appends a pending page to the story. The story row is locked for the
// duration of the transaction so concurrent appends to one story are serialized.
func (s *Store) CreateNextPage(ctx context.Context, storyID, prompt string, characterImageURLs []string) (*Page, error) {
	var page *Page
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var story Story
		if err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Select("id").First(&story, "id = ?", storyID).Error; err != nil {
			return notFound(err)
		}
		n, err := nextPageNumber(tx, storyID)
		if err != nil {
			return err
		}
		page = newPage(storyID, n, prompt, characterImageURLs)
		if err := tx.Create(page).Error; err != nil {
			return fmt.Errorf("create page: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Store) GetStoryByID(ctx context.Context, id string) (*Story, error) {
	var story Story
	if err := s.db.WithContext(ctx).First(&story, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &story, nil
}

func (s *Store) GetStoryBySlug(ctx context.Context, slug string) (*Story, error) {
	var story Story
	if err := s.db.WithContext(ctx).First(&story, "slug = ?", slug).Error; err != nil {
		return nil, notFound(err)
	}
	return &story, nil
}

// ListStoriesByUser returns the user's stories, newest first.
func (s *Store) ListStoriesByUser(ctx context.Context, userID string) ([]Story, error) {
	stories := []Story{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&stories).Error
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	return stories, nil
}

// ListPages returns the story's pages ordered by page number.
func (s *Store) ListPages(ctx context.Context, storyID string) ([]Page, error) {
	pages := []Page{}
	err := s.db.WithContext(ctx).
		Where("story_id = ?", storyID).
		Order("page_number ASC").
		Find(&pages).Error
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return pages, nil
}

func (s *Store) GetPage(ctx context.Context, id string) (*Page, error) {
	var page Page
	if err := s.db.WithContext(ctx).First(&page, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &page, nil
}

func (s *Store) updatePage(ctx context.Context, pageID string, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&Page{}).Where("id = ?", pageID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update page %s: %w", pageID, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// mysql reports changed rows, so an identical update also lands here
	var count int64
	if err := s.db.WithContext(ctx).Model(&Page{}).Where("id = ?", pageID).Count(&count).Error; err != nil {
		return fmt.Errorf("check page %s: %w", pageID, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePageImage records the generated image and moves the page to ready.
func (s *Store) UpdatePageImage(ctx context.Context, pageID, imageURL string) error {
	return s.updatePage(ctx, pageID, map[string]interface{}{
		"generated_image_url": imageURL,
		"status":              PageStatusReady,
		"error":               nil,
	})
}

// MarkPageFailed records why the last generation attempt failed. Any earlier image is kept.
func (s *Store) MarkPageFailed(ctx context.Context, pageID, reason string) error {
	return s.updatePage(ctx, pageID, map[string]interface{}{
		"status": PageStatusFailed,
		"error":  reason,
	})
}

// ResetPage puts an existing page back to pending ahead of a redraw.
func (s *Store) ResetPage(ctx context.Context, pageID, prompt string, characterImageURLs []string) error {
	urls := StringList(characterImageURLs)
	if urls == nil {
		urls = StringList{}
	}
	return s.updatePage(ctx, pageID, map[string]interface{}{
		"prompt":               prompt,
		"character_image_urls": urls,
		"status":               PageStatusPending,
		"error":                nil,
	})
}

// SetPageArchive records the object key of the stored copy of the generated image.
func (s *Store) SetPageArchive(ctx context.Context, pageID, objectKey string) error {
	return s.updatePage(ctx, pageID, map[string]interface{}{
		"archived_object_key": objectKey,
	})
}
