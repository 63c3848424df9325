package models

import (
	"time"
)

// Well-known SystemSetting keys.
const (
	SettingBookSearchHour   = "book_search_hour"
	SettingBookSearchOffset = "book_search_offset"
)

// SubredditWatermarkKey names the "already considered up to" cursor for a
// subreddit's request feed.
func SubredditWatermarkKey(subreddit string) string {
	return "last_checked_r_" + subreddit
}

// SystemSetting is a generic key/value row for cross-invocation cursors.
// Lazily created on first read, updated after each relevant operation,
// never deleted.
type SystemSetting struct {
	Key       string    `gorm:"primaryKey;size:255" json:"key"`
	Value     string    `gorm:"not null;size:1000" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
