package models

import (
	"fmt"
	"time"
)

// Post statuses.
const (
	PostStatusPrivate   = "private"
	PostStatusScheduled = "scheduled"
	PostStatusPublished = "published"
	PostStatusDeleted   = "deleted"
)

// Post is a scheduled or published social-media unit. Exactly one of BookID
// or QuoteID is set: BookID drives link posts, QuoteID drives quote posts.
type Post struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	BookID      *uint      `gorm:"index" json:"book_id"`
	QuoteID     *uint      `gorm:"index" json:"quote_id"`
	Text        string     `gorm:"type:text;not null" json:"text"`
	ImageLink   string     `gorm:"size:500" json:"image_link"`
	Platform    string     `gorm:"not null;size:50;index" json:"platform"`
	Status      string     `gorm:"not null;size:50;default:'private';index" json:"status"`
	PublishedAt *time.Time `json:"published_at"`

	// ScheduleKey is "<platform>:<yyyy-mm-dd>" for scheduled posts. The
	// unique index makes the once-per-platform-per-day guard atomic under
	// concurrent daily invocations.
	ScheduleKey *string `gorm:"uniqueIndex;size:100" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Book  *Book  `gorm:"foreignKey:BookID" json:"book,omitempty"`
	Quote *Quote `gorm:"foreignKey:QuoteID" json:"quote,omitempty"`
}

// ScheduleKeyFor builds the uniqueness key for a scheduled post.
func ScheduleKeyFor(platform string, day time.Time) string {
	return fmt.Sprintf("%s:%s", platform, day.UTC().Format("2006-01-02"))
}

// ResolveBook returns the book this post promotes, either directly or
// through its quote. Direct reference wins when both are loaded.
func (p *Post) ResolveBook() *Book {
	if p.Book != nil {
		return p.Book
	}
	if p.Quote != nil {
		return &p.Quote.Book
	}
	return nil
}
