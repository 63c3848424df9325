package service

import (
	"testing"
	"time"

	"github.com/openshelf/shelfcast/internal/models"
)

func TestNextLinkBookPrefersLeastPosted(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)

	author := seedAuthor(t, db, "James Joyce")
	first := seedBook(t, db, author, "Dubliners", "https://x/dubliners")
	second := seedBook(t, db, author, "Ulysses", "https://x/ulysses")

	// One prior reddit post for the first book.
	day := DateOnly(time.Now())
	post := &models.Post{BookID: &first.ID, Text: "t", Platform: "reddit"}
	if _, err := catalog.CreateScheduledPost(post, day); err != nil {
		t.Fatalf("CreateScheduledPost failed: %v", err)
	}

	book, err := catalog.NextLinkBook("reddit")
	if err != nil {
		t.Fatalf("NextLinkBook failed: %v", err)
	}
	if book == nil || book.ID != second.ID {
		t.Fatalf("expected book %d, got %+v", second.ID, book)
	}

	// Posts on another platform do not count against this one.
	book, err = catalog.NextLinkBook("facebook")
	if err != nil {
		t.Fatalf("NextLinkBook failed: %v", err)
	}
	if book == nil || book.ID != first.ID {
		t.Fatalf("expected lowest-id tie-break to pick book %d, got %+v", first.ID, book)
	}
}

func TestNextLinkBookEmptyCatalog(t *testing.T) {
	catalog := NewCatalogService(newTestDB(t))

	book, err := catalog.NextLinkBook("reddit")
	if err != nil {
		t.Fatalf("NextLinkBook failed: %v", err)
	}
	if book != nil {
		t.Errorf("expected nil for empty catalog, got %+v", book)
	}
}

func TestNextQuoteTwoLevelFairness(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)

	author := seedAuthor(t, db, "Bram Stoker")
	dracula := seedBook(t, db, author, "Dracula", "https://x/dracula")
	jewel := seedBook(t, db, author, "The Jewel of Seven Stars", "https://x/jewel")
	dq1 := seedQuote(t, db, dracula, "Listen to them, the children of the night.", 10)
	seedQuote(t, db, dracula, "We learn from failure, not from success!", 90)
	jq := seedQuote(t, db, jewel, "Time has no meaning for the dead.", 5)

	// Dracula already has one quote post on x, so the other book is due
	// first even though its quote is less popular.
	day := DateOnly(time.Now())
	post := &models.Post{QuoteID: &dq1.ID, Text: "t", Platform: "x"}
	if _, err := catalog.CreateScheduledPost(post, day); err != nil {
		t.Fatalf("CreateScheduledPost failed: %v", err)
	}

	quote, err := catalog.NextQuote("x")
	if err != nil {
		t.Fatalf("NextQuote failed: %v", err)
	}
	if quote == nil || quote.ID != jq.ID {
		t.Fatalf("expected quote %d, got %+v", jq.ID, quote)
	}
	if quote.Book.Author.Name != "Bram Stoker" {
		t.Errorf("expected author preloaded, got %+v", quote.Book.Author)
	}
}

func TestNextQuotePopularityBreaksTies(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)

	author := seedAuthor(t, db, "Bram Stoker")
	dracula := seedBook(t, db, author, "Dracula", "https://x/dracula")
	seedQuote(t, db, dracula, "Listen to them, the children of the night.", 10)
	popular := seedQuote(t, db, dracula, "We learn from failure, not from success!", 90)

	quote, err := catalog.NextQuote("x")
	if err != nil {
		t.Fatalf("NextQuote failed: %v", err)
	}
	if quote == nil || quote.ID != popular.ID {
		t.Fatalf("expected most popular quote %d, got %+v", popular.ID, quote)
	}
}

func TestCreateScheduledPostIsAtomicPerDay(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)

	author := seedAuthor(t, db, "James Joyce")
	book := seedBook(t, db, author, "Dubliners", "https://x/dubliners")

	day := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)
	first := &models.Post{BookID: &book.ID, Text: "t", Platform: "reddit"}
	created, err := catalog.CreateScheduledPost(first, day)
	if err != nil {
		t.Fatalf("CreateScheduledPost failed: %v", err)
	}
	if !created {
		t.Fatal("expected first insert to win")
	}

	// Same platform, same day: conflict, nothing written.
	second := &models.Post{BookID: &book.ID, Text: "t", Platform: "reddit"}
	created, err = catalog.CreateScheduledPost(second, day)
	if err != nil {
		t.Fatalf("CreateScheduledPost failed: %v", err)
	}
	if created {
		t.Error("expected second insert to lose the schedule key conflict")
	}

	var count int64
	if err := db.Model(&models.Post{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 post, got %d", count)
	}

	// Another platform on the same day is fine.
	third := &models.Post{BookID: &book.ID, Text: "t", Platform: "x"}
	created, err = catalog.CreateScheduledPost(third, day)
	if err != nil {
		t.Fatalf("CreateScheduledPost failed: %v", err)
	}
	if !created {
		t.Error("expected insert for another platform to succeed")
	}
}

func TestReplyUpsertRefreshesRow(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)

	now := time.Now().UTC().Truncate(time.Second)
	first := &models.Reply{
		UserID:    "u1",
		Username:  "bookworm_ab",
		PostID:    "p1",
		PostURL:   "https://x.com/bookworm_ab/status/p1",
		BookTitle: "Dubliners",
		RepliedAt: now.Add(-10 * 24 * time.Hour),
	}
	if err := catalog.UpsertReply(first); err != nil {
		t.Fatalf("UpsertReply failed: %v", err)
	}

	second := &models.Reply{
		UserID:    "u1",
		Username:  "bookworm_ab",
		PostID:    "p2",
		PostURL:   "https://x.com/bookworm_ab/status/p2",
		BookTitle: "Ulysses",
		RepliedAt: now,
	}
	if err := catalog.UpsertReply(second); err != nil {
		t.Fatalf("UpsertReply failed: %v", err)
	}

	var replies []models.Reply
	if err := db.Find(&replies).Error; err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(replies) != 1 {
		t.Fatalf("expected exactly 1 reply row, got %d", len(replies))
	}
	if replies[0].PostID != "p2" {
		t.Errorf("expected refreshed post id p2, got %s", replies[0].PostID)
	}
	if !replies[0].RepliedAt.Equal(now) {
		t.Errorf("expected refreshed replied_at %v, got %v", now, replies[0].RepliedAt)
	}
}

func TestKnownUserIDsCooldownBoundary(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)

	now := time.Now().UTC()
	recent := &models.Reply{UserID: "recent", RepliedAt: now.Add(-10 * 24 * time.Hour)}
	stale := &models.Reply{UserID: "stale", RepliedAt: now.Add(-40 * 24 * time.Hour)}
	if err := catalog.UpsertReply(recent); err != nil {
		t.Fatalf("UpsertReply failed: %v", err)
	}
	if err := catalog.UpsertReply(stale); err != nil {
		t.Fatalf("UpsertReply failed: %v", err)
	}

	known, err := catalog.KnownUserIDs([]string{"recent", "stale", "new"}, now.Add(-30*24*time.Hour))
	if err != nil {
		t.Fatalf("KnownUserIDs failed: %v", err)
	}
	if !known["recent"] {
		t.Error("expected user contacted 10 days ago to be known")
	}
	if known["stale"] {
		t.Error("expected user contacted 40 days ago to be eligible again")
	}
	if known["new"] {
		t.Error("expected never-contacted user to be eligible")
	}
}

func TestFindBookByTitleCaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)

	author := seedAuthor(t, db, "Bram Stoker")
	seedBook(t, db, author, "Dracula", "https://x/dracula")

	book, err := catalog.FindBookByTitle("dRaCuLa")
	if err != nil {
		t.Fatalf("FindBookByTitle failed: %v", err)
	}
	if book == nil || book.Title != "Dracula" {
		t.Fatalf("expected Dracula, got %+v", book)
	}

	missing, err := catalog.FindBookByTitle("Carmilla")
	if err != nil {
		t.Fatalf("FindBookByTitle failed: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown title, got %+v", missing)
	}
}
