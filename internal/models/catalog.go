package models

import (
	"time"
)

// Author is immutable reference data, seeded once.
type Author struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;size:255" json:"name"`
	Bio       string    `gorm:"type:text" json:"bio"`
	Link      string    `gorm:"size:500" json:"link"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Books []Book `gorm:"foreignKey:AuthorID" json:"books,omitempty"`
}

type Book struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"uniqueIndex;not null;size:500" json:"title"`
	CoverLink string    `gorm:"size:500" json:"cover_link"`
	Language  string    `gorm:"size:50" json:"language"`
	Link      string    `gorm:"size:500" json:"link"`
	AuthorID  uint      `gorm:"not null;index" json:"author_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Author Author  `gorm:"foreignKey:AuthorID" json:"author"`
	Quotes []Quote `gorm:"foreignKey:BookID" json:"quotes,omitempty"`
}

type Quote struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Text       string    `gorm:"uniqueIndex;not null;size:1000" json:"text"`
	Popularity int       `gorm:"default:0" json:"popularity"`
	BookID     uint      `gorm:"not null;index" json:"book_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`

	Book Book `gorm:"foreignKey:BookID" json:"book"`
}
