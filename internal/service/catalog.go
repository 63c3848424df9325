package service

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openshelf/shelfcast/internal/models"
)

// CatalogService is the query layer over the content store: selection
// ranking, scheduled-post bookkeeping and outreach reply state.
type CatalogService struct {
	db *gorm.DB
}

func NewCatalogService(db *gorm.DB) *CatalogService {
	return &CatalogService{db: db}
}

// DateOnly truncates t to UTC midnight. Scheduling works at date
// granularity; storing midnight lets the due-post lookups compare by
// equality instead of extracting the date in SQL.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *CatalogService) TotalBooks() (int64, error) {
	var count int64
	if err := s.db.Model(&models.Book{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return count, nil
}

// BooksPage returns one chunk of the catalog in primary-key order, the
// stable ordering the sweep offset is defined against.
func (s *CatalogService) BooksPage(offset, limit int) ([]models.Book, error) {
	var books []models.Book
	err := s.db.Preload("Author").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&books).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch books page: %w", err)
	}
	return books, nil
}

// NextLinkBook picks the book with the fewest prior posts on the platform.
// Ties resolve to the lowest id. Returns nil when the catalog is empty.
func (s *CatalogService) NextLinkBook(platform string) (*models.Book, error) {
	var ids []uint
	err := s.db.Model(&models.Book{}).
		Select("books.id").
		Joins("LEFT JOIN posts ON posts.book_id = books.id AND posts.platform = ?", platform).
		Group("books.id").
		Order("COUNT(posts.id) ASC, books.id ASC").
		Limit(1).
		Pluck("books.id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank books for %s: %w", platform, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	var book models.Book
	if err := s.db.Preload("Author").First(&book, ids[0]).Error; err != nil {
		return nil, fmt.Errorf("failed to load book %d: %w", ids[0], err)
	}
	return &book, nil
}

// NextQuote implements the two-level fairness ranking: first the book with
// the fewest quote posts on the platform (summed over its quotes), then
// within that book the quote with the fewest posts, favoring higher
// popularity and finally the lowest id. Returns nil when no quotes exist.
func (s *CatalogService) NextQuote(platform string) (*models.Quote, error) {
	var bookIDs []uint
	err := s.db.Model(&models.Book{}).
		Select("books.id").
		Joins("JOIN quotes ON quotes.book_id = books.id").
		Joins("LEFT JOIN posts ON posts.quote_id = quotes.id AND posts.platform = ?", platform).
		Group("books.id").
		Order("COUNT(posts.id) ASC, books.id ASC").
		Limit(1).
		Pluck("books.id", &bookIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank books by quote posts for %s: %w", platform, err)
	}
	if len(bookIDs) == 0 {
		return nil, nil
	}

	var quoteIDs []uint
	err = s.db.Model(&models.Quote{}).
		Select("quotes.id").
		Joins("LEFT JOIN posts ON posts.quote_id = quotes.id AND posts.platform = ?", platform).
		Where("quotes.book_id = ?", bookIDs[0]).
		Group("quotes.id").
		Order("COUNT(posts.id) ASC, quotes.popularity DESC, quotes.id ASC").
		Limit(1).
		Pluck("quotes.id", &quoteIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank quotes for %s: %w", platform, err)
	}
	if len(quoteIDs) == 0 {
		return nil, nil
	}

	var quote models.Quote
	if err := s.db.Preload("Book.Author").First(&quote, quoteIDs[0]).Error; err != nil {
		return nil, fmt.Errorf("failed to load quote %d: %w", quoteIDs[0], err)
	}
	return &quote, nil
}

// FindBookByTitle resolves a title case-insensitively. Returns nil when no
// book matches.
func (s *CatalogService) FindBookByTitle(title string) (*models.Book, error) {
	var book models.Book
	err := s.db.Preload("Author").
		Where("LOWER(title) = LOWER(?)", title).
		First(&book).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find book %q: %w", title, err)
	}
	return &book, nil
}

// AllTitles returns every book title, for the closed catalog embedded in
// the suggestion prompt.
func (s *CatalogService) AllTitles() ([]string, error) {
	var titles []string
	if err := s.db.Model(&models.Book{}).Order("id ASC").Pluck("title", &titles).Error; err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}
	return titles, nil
}

// HasScheduledPost reports whether a scheduled post already exists for the
// platform on the given day.
func (s *CatalogService) HasScheduledPost(platform string, day time.Time) (bool, error) {
	var count int64
	err := s.db.Model(&models.Post{}).
		Where("platform = ? AND status = ? AND published_at = ?",
			platform, models.PostStatusScheduled, DateOnly(day)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check scheduled post for %s: %w", platform, err)
	}
	return count > 0, nil
}

// CreateScheduledPost inserts a scheduled post. The insert is conditional on
// the schedule key: when a concurrent invocation already scheduled this
// platform/day, nothing is written and false is returned.
func (s *CatalogService) CreateScheduledPost(post *models.Post, day time.Time) (bool, error) {
	due := DateOnly(day)
	key := models.ScheduleKeyFor(post.Platform, due)
	post.Status = models.PostStatusScheduled
	post.PublishedAt = &due
	post.ScheduleKey = &key

	res := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "schedule_key"}},
		DoNothing: true,
	}).Create(post)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create scheduled post for %s: %w", post.Platform, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ScheduledPostsDue returns the platform's scheduled posts for the given
// day in insertion order, with the book resolvable directly or through the
// quote.
func (s *CatalogService) ScheduledPostsDue(platform string, day time.Time) ([]models.Post, error) {
	var posts []models.Post
	err := s.db.Preload("Book.Author").
		Preload("Quote.Book.Author").
		Where("platform = ? AND status = ? AND published_at = ?",
			platform, models.PostStatusScheduled, DateOnly(day)).
		Order("id ASC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due posts for %s: %w", platform, err)
	}
	return posts, nil
}

// MarkPublished transitions a post scheduled -> published.
func (s *CatalogService) MarkPublished(post *models.Post, at time.Time) error {
	err := s.db.Model(post).Updates(map[string]any{
		"status":       models.PostStatusPublished,
		"published_at": at,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to mark post %d published: %w", post.ID, err)
	}
	return nil
}

// RecentReplyCount counts outreach replies made since the given time.
func (s *CatalogService) RecentReplyCount(since time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&models.Reply{}).
		Where("replied_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recent replies: %w", err)
	}
	return count, nil
}

// KnownUserIDs returns the subset of ids that were contacted since the
// given time. One batched lookup over the distinct id set.
func (s *CatalogService) KnownUserIDs(ids []string, since time.Time) (map[string]bool, error) {
	known := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return known, nil
	}

	var found []string
	err := s.db.Model(&models.Reply{}).
		Where("user_id IN ? AND replied_at >= ?", ids, since).
		Pluck("user_id", &found).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up known users: %w", err)
	}
	for _, id := range found {
		known[id] = true
	}
	return known, nil
}

// UpsertReply records an outreach contact, refreshing the existing row when
// the user was contacted before. Atomic on the user id, so concurrent
// quarter-hourly runs cannot duplicate it.
func (s *CatalogService) UpsertReply(reply *models.Reply) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "post_id", "post_url", "book_title", "replied_at"}),
	}).Create(reply).Error
	if err != nil {
		return fmt.Errorf("failed to upsert reply for user %s: %w", reply.UserID, err)
	}
	return nil
}
