package service

import (
	"fmt"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openshelf/shelfcast/internal/models"
)

var testDBCounter atomic.Int64

// newTestDB opens a fresh in-memory database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:shelfcast_test_%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func seedAuthor(t *testing.T, db *gorm.DB, name string) models.Author {
	t.Helper()
	author := models.Author{Name: name}
	if err := db.Create(&author).Error; err != nil {
		t.Fatalf("failed to seed author %s: %v", name, err)
	}
	return author
}

func seedBook(t *testing.T, db *gorm.DB, author models.Author, title, link string) models.Book {
	t.Helper()
	book := models.Book{
		Title:    title,
		Link:     link,
		Language: "en",
		AuthorID: author.ID,
	}
	if err := db.Create(&book).Error; err != nil {
		t.Fatalf("failed to seed book %s: %v", title, err)
	}
	book.Author = author
	return book
}

func seedQuote(t *testing.T, db *gorm.DB, book models.Book, text string, popularity int) models.Quote {
	t.Helper()
	quote := models.Quote{
		Text:       text,
		Popularity: popularity,
		BookID:     book.ID,
	}
	if err := db.Create(&quote).Error; err != nil {
		t.Fatalf("failed to seed quote: %v", err)
	}
	quote.Book = book
	return quote
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
