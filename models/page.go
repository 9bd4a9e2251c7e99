package models

import "time"

type PageStatus string

const (
	PageStatusPending PageStatus = "pending"
	PageStatusReady   PageStatus = "ready"
	PageStatusFailed  PageStatus = "failed"
)

// Terminal reports whether no further transition is expected without a new request.
func (s PageStatus) Terminal() bool {
	return s == PageStatusReady || s == PageStatusFailed
}

type Page struct {
	ID                 string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	StoryID            string     `gorm:"column:story_id;type:varchar(64);uniqueIndex:uk_page_story_number,priority:1" json:"storyId"`
	PageNumber         int        `gorm:"column:page_number;uniqueIndex:uk_page_story_number,priority:2" json:"pageNumber"`
	Prompt             string     `json:"prompt"`
	CharacterImageURLs StringList `gorm:"column:character_image_urls" json:"characterImageUrls"`
	GeneratedImageURL  *string    `gorm:"column:generated_image_url" json:"generatedImageUrl"`
	ArchivedObjectKey  *string    `gorm:"column:archived_object_key" json:"-"`
	// ArchivedImageURL is resolved from ArchivedObjectKey when the page is served.
	ArchivedImageURL   string     `gorm:"-" json:"archivedImageUrl,omitempty"`
	Status             PageStatus `gorm:"type:varchar(16)" json:"status"`
	Error              *string    `json:"error,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func (Page) TableName() string {
	return "page"
}
