package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	titleMaxRunes = 50
	slugMaxBase   = 40
)

type Story struct {
	ID          string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Slug        string    `gorm:"type:varchar(96);uniqueIndex:uk_story_slug" json:"slug"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	UserID      string    `gorm:"column:user_id;type:varchar(128);index:idx_story_user_id" json:"userId"`
	Style       string    `json:"style"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Story) TableName() string {
	return "story"
}

// NewStory holds the caller-supplied fields of a story about to be created.
type NewStory struct {
	Title       string
	Description *string
	UserID      string
	Style       string
}

// TitleFromPrompt truncates prompt to 50 characters plus an ellipsis when it is longer.
func TitleFromPrompt(prompt string) string {
	if utf8.RuneCountInString(prompt) <= titleMaxRunes {
		return prompt
	}
	return string([]rune(prompt)[:titleMaxRunes]) + "..."
}

// Slugify lowercases title and collapses every run of non-alphanumeric ASCII into a single dash.
func Slugify(title string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(title) {
		if b.Len() >= slugMaxBase {
			break
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingDash = false
			continue
		}
		pendingDash = true
	}
	s := b.String()
	if len(s) > slugMaxBase {
		s = s[:slugMaxBase]
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return "story"
	}
	return s
}

// NewSlug returns a slug for title with a random suffix so equal titles never collide.
func NewSlug(title string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return Slugify(title) + "-" + suffix
}
