package service

import (
	"context"

	"make-comics-server/models"

	"github.com/stretchr/testify/mock"
)

type MockPageStore struct {
	mock.Mock
}

var _ PageStore = (*MockPageStore)(nil)

func NewMockPageStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPageStore {
	m := &MockPageStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (_m *MockPageStore) CreateStoryWithFirstPage(ctx context.Context, in models.NewStory, prompt string, urls []string) (*models.Story, *models.Page, error) {
	ret := _m.Called(ctx, in, prompt, urls)
	var story *models.Story
	if v := ret.Get(0); v != nil {
		story = v.(*models.Story)
	}
	var page *models.Page
	if v := ret.Get(1); v != nil {
		page = v.(*models.Page)
	}
	return story, page, ret.Error(2)
}

func (_m *MockPageStore) CreateNextPage(ctx context.Context, storyID, prompt string, urls []string) (*models.Page, error) {
	ret := _m.Called(ctx, storyID, prompt, urls)
	var page *models.Page
	if v := ret.Get(0); v != nil {
		page = v.(*models.Page)
	}
	return page, ret.Error(1)
}

func (_m *MockPageStore) GetStoryByID(ctx context.Context, id string) (*models.Story, error) {
	ret := _m.Called(ctx, id)
	var story *models.Story
	if v := ret.Get(0); v != nil {
		story = v.(*models.Story)
	}
	return story, ret.Error(1)
}

func (_m *MockPageStore) GetPage(ctx context.Context, id string) (*models.Page, error) {
	ret := _m.Called(ctx, id)
	var page *models.Page
	if v := ret.Get(0); v != nil {
		page = v.(*models.Page)
	}
	return page, ret.Error(1)
}

func (_m *MockPageStore) UpdatePageImage(ctx context.Context, pageID, imageURL string) error {
	return _m.Called(ctx, pageID, imageURL).Error(0)
}

func (_m *MockPageStore) MarkPageFailed(ctx context.Context, pageID, reason string) error {
	return _m.Called(ctx, pageID, reason).Error(0)
}

func (_m *MockPageStore) ResetPage(ctx context.Context, pageID, prompt string, urls []string) error {
	return _m.Called(ctx, pageID, prompt, urls).Error(0)
}

type MockRateLimiter struct {
	mock.Mock
}

var _ RateLimiter = (*MockRateLimiter)(nil)

func (_m *MockRateLimiter) Check(ctx context.Context, key string) (Decision, error) {
	ret := _m.Called(ctx, key)
	return ret.Get(0).(Decision), ret.Error(1)
}

type MockImageGenerator struct {
	mock.Mock
}

var _ ImageGenerator = (*MockImageGenerator)(nil)

func (_m *MockImageGenerator) Generate(ctx context.Context, apiKey string, req ImageRequest) (*ImageResult, error) {
	ret := _m.Called(ctx, apiKey, req)
	var res *ImageResult
	if v := ret.Get(0); v != nil {
		res = v.(*ImageResult)
	}
	return res, ret.Error(1)
}

type MockArchiveEnqueuer struct {
	mock.Mock
}

var _ ArchiveEnqueuer = (*MockArchiveEnqueuer)(nil)

func (_m *MockArchiveEnqueuer) EnqueueArchivePage(ctx context.Context, pageID string) error {
	return _m.Called(ctx, pageID).Error(0)
}
