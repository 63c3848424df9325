package models

import (
	"time"
)

// Reply records one outreach contact. UserID is the primary key: replying to
// the same user again refreshes the row instead of duplicating it, which is
// what implements the cooldown window.
type Reply struct {
	UserID    string    `gorm:"primaryKey;size:100" json:"user_id"`
	Username  string    `gorm:"size:255" json:"username"`
	PostID    string    `gorm:"size:100" json:"post_id"`
	PostURL   string    `gorm:"size:500" json:"post_url"`
	BookTitle string    `gorm:"size:500" json:"book_title"`
	RepliedAt time.Time `gorm:"not null;index" json:"replied_at"`
}
