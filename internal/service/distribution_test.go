package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/openshelf/shelfcast/internal/models"
	"github.com/openshelf/shelfcast/internal/service/platform"
)

type publishCall struct {
	content PostContent
}

type stubPublisher struct {
	calls    []publishCall
	comments []string
	fail     bool
}

func (s *stubPublisher) publish(_ context.Context, content PostContent) (platform.Handle, error) {
	if s.fail {
		return platform.Handle{}, errors.New("api down")
	}
	s.calls = append(s.calls, publishCall{content: content})
	return platform.Handle{ID: fmt.Sprintf("h%d", len(s.calls))}, nil
}

func (s *stubPublisher) comment(_ context.Context, _ platform.Handle, text string) error {
	s.comments = append(s.comments, text)
	return nil
}

func newLinkPlatform(tag string, pub *stubPublisher) Platform {
	return Platform{
		Tag:     tag,
		Kind:    KindLink,
		Domain:  tag + ".com",
		Publish: pub.publish,
		Comment: pub.comment,
	}
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestSchedulePostsLinkPlatform(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)

	author := seedAuthor(t, db, "James Joyce")
	seedBook(t, db, author, "Dubliners", "https://x/dubliners")

	pub := &stubPublisher{}
	svc := NewDistributionService(catalog, testLogger(), []Platform{newLinkPlatform("reddit", pub)})
	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	svc.now = fixedNow(now)

	created, err := svc.SchedulePosts(context.Background())
	if err != nil {
		t.Fatalf("SchedulePosts failed: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 scheduled post, got %d", len(created))
	}

	post := created[0]
	if post.Text != "Dubliners by James Joyce" {
		t.Errorf("unexpected text %q", post.Text)
	}
	if post.Platform != "reddit" {
		t.Errorf("unexpected platform %q", post.Platform)
	}
	if post.Status != models.PostStatusScheduled {
		t.Errorf("unexpected status %q", post.Status)
	}
	wantDay := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	if post.PublishedAt == nil || !post.PublishedAt.Equal(wantDay) {
		t.Errorf("expected published date %v, got %v", wantDay, post.PublishedAt)
	}
}

func TestSchedulePostsIdempotentPerDay(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)

	author := seedAuthor(t, db, "James Joyce")
	seedBook(t, db, author, "Dubliners", "https://x/dubliners")

	pub := &stubPublisher{}
	svc := NewDistributionService(catalog, testLogger(), []Platform{newLinkPlatform("reddit", pub)})
	svc.now = fixedNow(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))

	first, err := svc.SchedulePosts(context.Background())
	if err != nil {
		t.Fatalf("SchedulePosts failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 scheduled post, got %d", len(first))
	}

	second, err := svc.SchedulePosts(context.Background())
	if err != nil {
		t.Fatalf("SchedulePosts failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("expected second run to be a no-op, got %d posts", len(second))
	}
}

func TestSchedulePostsFairRotation(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)

	author := seedAuthor(t, db, "James Joyce")
	titles := []string{"Dubliners", "Ulysses", "Exiles", "Chamber Music"}
	for _, title := range titles {
		seedBook(t, db, author, title, "https://x/"+title)
	}

	pub := &stubPublisher{}
	svc := NewDistributionService(catalog, testLogger(), []Platform{newLinkPlatform("reddit", pub)})

	day := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	seen := make(map[string]int)
	for i := 0; i < len(titles); i++ {
		svc.now = fixedNow(day.AddDate(0, 0, i))
		created, err := svc.SchedulePosts(context.Background())
		if err != nil {
			t.Fatalf("SchedulePosts failed on day %d: %v", i, err)
		}
		if len(created) != 1 {
			t.Fatalf("expected 1 post on day %d, got %d", i, len(created))
		}
		var book models.Book
		if err := db.First(&book, *created[0].BookID).Error; err != nil {
			t.Fatalf("failed to load book: %v", err)
		}
		seen[book.Title]++
	}

	for _, title := range titles {
		if seen[title] != 1 {
			t.Errorf("expected %s to be scheduled exactly once, got %d", title, seen[title])
		}
	}
}

func TestSchedulePostsQuotePlatformWithHashtags(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)

	author := seedAuthor(t, db, "Bram Stoker")
	book := seedBook(t, db, author, "Dracula", "https://x/dracula")
	seedQuote(t, db, book, "We learn from failure, not from success!", 90)

	pub := &stubPublisher{}
	svc := NewDistributionService(catalog, testLogger(), []Platform{{
		Tag:           "x",
		Kind:          KindQuote,
		Domain:        "x.com",
		HashtagSuffix: "#ebooks",
		Publish:       pub.publish,
	}})
	svc.now = fixedNow(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))

	created, err := svc.SchedulePosts(context.Background())
	if err != nil {
		t.Fatalf("SchedulePosts failed: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("expected 1 post, got %d", len(created))
	}

	want := "\"We learn from failure, not from success!\" - Dracula by Bram Stoker #ebooks"
	if created[0].Text != want {
		t.Errorf("unexpected text:\n got %q\nwant %q", created[0].Text, want)
	}
}

func TestPublishScheduledPostsMarksPublishedAndComments(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)

	author := seedAuthor(t, db, "James Joyce")
	seedBook(t, db, author, "Dubliners", "https://x/dubliners")

	pub := &stubPublisher{}
	svc := NewDistributionService(catalog, testLogger(), []Platform{newLinkPlatform("reddit", pub)})

	// Schedule on day one, publish on day two.
	svc.now = fixedNow(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	if _, err := svc.SchedulePosts(context.Background()); err != nil {
		t.Fatalf("SchedulePosts failed: %v", err)
	}

	svc.now = fixedNow(time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC))
	if err := svc.PublishScheduledPosts(context.Background()); err != nil {
		t.Fatalf("PublishScheduledPosts failed: %v", err)
	}

	if len(pub.calls) != 1 {
		t.Fatalf("expected 1 publish call, got %d", len(pub.calls))
	}
	if len(pub.comments) != 1 {
		t.Fatalf("expected 1 comment, got %d", len(pub.comments))
	}
	wantComment := "https://x/dubliners?utm_source=reddit.com&utm_medium=referral&utm_campaign=reddit-scheduled-posts"
	if pub.comments[0] != wantComment {
		t.Errorf("unexpected comment link:\n got %q\nwant %q", pub.comments[0], wantComment)
	}

	var post models.Post
	if err := db.First(&post).Error; err != nil {
		t.Fatalf("failed to load post: %v", err)
	}
	if post.Status != models.PostStatusPublished {
		t.Errorf("expected status published, got %q", post.Status)
	}

	// Publishing again finds nothing due.
	if err := svc.PublishScheduledPosts(context.Background()); err != nil {
		t.Fatalf("PublishScheduledPosts failed: %v", err)
	}
	if len(pub.calls) != 1 {
		t.Errorf("expected no further publish calls, got %d", len(pub.calls))
	}
}

func TestPublishScheduledPostsFailFastPerPlatform(t *testing.T) {
	db := newTestDB(t)
	catalog := NewCatalogService(db)

	author := seedAuthor(t, db, "James Joyce")
	seedBook(t, db, author, "Dubliners", "https://x/dubliners")
	seedBook(t, db, author, "Ulysses", "https://x/ulysses")

	failing := &stubPublisher{fail: true}
	healthy := &stubPublisher{}
	svc := NewDistributionService(catalog, testLogger(), []Platform{
		newLinkPlatform("reddit", failing),
		newLinkPlatform("facebook", healthy),
	})

	svc.now = fixedNow(time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	if _, err := svc.SchedulePosts(context.Background()); err != nil {
		t.Fatalf("SchedulePosts failed: %v", err)
	}

	svc.now = fixedNow(time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC))
	err := svc.PublishScheduledPosts(context.Background())
	if err == nil {
		t.Fatal("expected the failing platform's error to be surfaced")
	}

	// The healthy platform still published despite the other failing.
	if len(healthy.calls) != 1 {
		t.Errorf("expected healthy platform to publish, got %d calls", len(healthy.calls))
	}

	// The failed post stays scheduled for the next invocation.
	var post models.Post
	if err := db.Where("platform = ?", "reddit").First(&post).Error; err != nil {
		t.Fatalf("failed to load post: %v", err)
	}
	if post.Status != models.PostStatusScheduled {
		t.Errorf("expected failed post to stay scheduled, got %q", post.Status)
	}
}
