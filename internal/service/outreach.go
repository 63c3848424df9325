package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/openshelf/shelfcast/internal/config"
	"github.com/openshelf/shelfcast/internal/models"
	"github.com/openshelf/shelfcast/internal/service/platform"
	"github.com/openshelf/shelfcast/pkg/util"
)

const booksPerSweep = 4 // whole catalog in at most 4 chunks per hour

// OutreachSummary is the result of one quarter-hourly outreach run. Errors
// are reported, not thrown: the run succeeds even when individual searches
// or replies failed.
type OutreachSummary struct {
	RepliesInThisRun int      `json:"replies_in_this_run"`
	RepliesInLast24  int      `json:"replies_in_last_24"`
	BooksProcessed   int      `json:"books_processed"`
	TotalBooks       int      `json:"total_books"`
	Errors           []string `json:"errors,omitempty"`
	Note             string   `json:"note,omitempty"`
}

type candidateRef struct {
	platform.Candidate
	book models.Book
}

// OutreachService sweeps the book catalog for fresh mentions and replies to
// the most promising ones. Each run is stateless; forward progress across
// runs lives in two settings rows: the hour of the current sweep and the
// catalog offset within it.
type OutreachService struct {
	catalog  *CatalogService
	settings *SettingsService
	searcher platform.Searcher
	cfg      *config.OutreachConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewOutreachService(catalog *CatalogService, settings *SettingsService, searcher platform.Searcher, cfg *config.OutreachConfig, logger *zap.Logger) *OutreachService {
	return &OutreachService{
		catalog:  catalog,
		settings: settings,
		searcher: searcher,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *OutreachService) Run(ctx context.Context) (*OutreachSummary, error) {
	now := s.now()
	summary := &OutreachSummary{}

	recent, err := s.catalog.RecentReplyCount(now.Add(-24 * time.Hour))
	if err != nil {
		return nil, err
	}
	summary.RepliesInLast24 = int(recent)
	if int(recent) >= s.cfg.DailyReplyCap {
		summary.Note = fmt.Sprintf("daily reply cap reached (%d/%d), skipping run", recent, s.cfg.DailyReplyCap)
		s.logger.Info("Outreach skipped", zap.String("note", summary.Note))
		return summary, nil
	}

	total, err := s.catalog.TotalBooks()
	if err != nil {
		return nil, err
	}
	summary.TotalBooks = int(total)
	if total == 0 {
		summary.Note = "book catalog is empty, nothing to search"
		return summary, nil
	}

	offset, err := s.currentOffset(now)
	if err != nil {
		return nil, err
	}

	chunk := (int(total) + booksPerSweep - 1) / booksPerSweep
	if chunk > s.cfg.ChunkCap {
		chunk = s.cfg.ChunkCap
	}

	books, err := s.catalog.BooksPage(offset, chunk)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		// Offset ran past the end of the catalog, likely after a reseed.
		// Reset and let the next tick restart the sweep.
		if _, err := s.settings.CompareAndSwap(models.SettingBookSearchOffset, strconv.Itoa(offset), "0"); err != nil {
			return nil, err
		}
		summary.Note = "search offset past end of catalog, reset to 0"
		return summary, nil
	}
	summary.BooksProcessed = len(books)

	candidates := s.searchMentions(ctx, books, now, summary)
	candidates = filterSuspicious(candidates)

	candidates, err = s.dropKnownUsers(candidates, now)
	if err != nil {
		return nil, err
	}

	selected := topCandidates(candidates, s.cfg.MaxRepliesPerRun)
	s.replyToAll(ctx, selected, now, summary)

	if err := s.advanceOffset(offset, len(books), int(total)); err != nil {
		return nil, err
	}

	s.logger.Info("Outreach run finished",
		zap.Int("replies", summary.RepliesInThisRun),
		zap.Int("books_processed", summary.BooksProcessed),
		zap.Int("errors", len(summary.Errors)))
	return summary, nil
}

// currentOffset returns the catalog offset for this run, restarting the
// sweep when the wall-clock hour moved on. Both settings writes go through
// CAS so overlapping runs cannot double-apply a reset.
func (s *OutreachService) currentOffset(now time.Time) (int, error) {
	hour := strconv.Itoa(now.Hour())
	storedHour, err := s.settings.Get(models.SettingBookSearchHour, hour)
	if err != nil {
		return 0, err
	}

	rawOffset, err := s.settings.Get(models.SettingBookSearchOffset, "0")
	if err != nil {
		return 0, err
	}
	offset, err := strconv.Atoi(rawOffset)
	if err != nil {
		offset = 0
	}

	if storedHour == hour {
		return offset, nil
	}

	swapped, err := s.settings.CompareAndSwap(models.SettingBookSearchHour, storedHour, hour)
	if err != nil {
		return 0, err
	}
	if swapped {
		if err := s.settings.Set(models.SettingBookSearchOffset, "0"); err != nil {
			return 0, err
		}
		return 0, nil
	}

	// Another invocation already rolled the hour; take its offset.
	rawOffset, err = s.settings.Get(models.SettingBookSearchOffset, "0")
	if err != nil {
		return 0, err
	}
	offset, err = strconv.Atoi(rawOffset)
	if err != nil {
		offset = 0
	}
	return offset, nil
}

// searchMentions queries the platform for each book in the chunk. Per-book
// failures are collected and the remaining books still run.
func (s *OutreachService) searchMentions(ctx context.Context, books []models.Book, now time.Time, summary *OutreachSummary) []candidateRef {
	hourEnd := now.Truncate(time.Hour)
	window := platform.SearchWindow{Start: hourEnd.Add(-time.Hour), End: hourEnd}

	var refs []candidateRef
	for _, book := range books {
		query := mentionQuery(book)
		results, err := s.searcher.Search(ctx, query, window)
		if err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("search %q: %v", book.Title, err))
			continue
		}
		for _, c := range results {
			refs = append(refs, candidateRef{Candidate: c, book: book})
		}
	}
	return refs
}

// mentionQuery combines the exact title with the author's last name,
// restricted to English originals without links.
func mentionQuery(book models.Book) string {
	return fmt.Sprintf("\"%s\" %s -is:retweet -is:reply -has:links lang:en",
		book.Title, util.SearchName(book.Author.Name))
}

func filterSuspicious(candidates []candidateRef) []candidateRef {
	kept := candidates[:0]
	for _, c := range candidates {
		if util.SuspiciousUsername(c.Username) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// dropKnownUsers removes candidates contacted within the cooldown window,
// using one batched lookup over the distinct author-id set.
func (s *OutreachService) dropKnownUsers(candidates []candidateRef, now time.Time) ([]candidateRef, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	seen := make(map[string]bool, len(candidates))
	var ids []string
	for _, c := range candidates {
		if !seen[c.AuthorID] {
			seen[c.AuthorID] = true
			ids = append(ids, c.AuthorID)
		}
	}

	cooldown := time.Duration(s.cfg.CooldownDays) * 24 * time.Hour
	known, err := s.catalog.KnownUserIDs(ids, now.Add(-cooldown))
	if err != nil {
		return nil, err
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if known[c.AuthorID] {
			continue
		}
		kept = append(kept, c)
	}
	return kept, nil
}

// topCandidates scores candidates as likes + followers and keeps the best n.
func topCandidates(candidates []candidateRef, n int) []candidateRef {
	sort.SliceStable(candidates, func(i, j int) bool {
		return score(candidates[i]) > score(candidates[j])
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

func score(c candidateRef) int {
	return c.LikeCount + c.FollowerCount
}

// replyToAll sends the templated reply to each selected candidate and
// records the contact. Failures are isolated per candidate.
func (s *OutreachService) replyToAll(ctx context.Context, selected []candidateRef, now time.Time, summary *OutreachSummary) {
	for _, c := range selected {
		link := util.AppendUTM(c.book.Link, "x.com", "referral", "x-replies")
		text := fmt.Sprintf("Download for free the ebook \"%s\" by %s\n%s",
			c.book.Title, c.book.Author.Name, link)

		if err := s.searcher.Reply(ctx, c.ID, text); err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("reply to %s: %v", c.Username, err))
			continue
		}

		reply := &models.Reply{
			UserID:    c.AuthorID,
			Username:  c.Username,
			PostID:    c.ID,
			PostURL:   fmt.Sprintf("https://x.com/%s/status/%s", c.Username, c.ID),
			BookTitle: c.book.Title,
			RepliedAt: now,
		}
		if err := s.catalog.UpsertReply(reply); err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("record reply to %s: %v", c.Username, err))
			continue
		}
		summary.RepliesInThisRun++
	}
}

// advanceOffset moves the sweep cursor past the processed chunk, wrapping to
// the start of the catalog. A lost CAS means an overlapping run advanced it
// already, which is fine.
func (s *OutreachService) advanceOffset(offset, processed, total int) error {
	next := offset + processed
	if next >= total {
		next = 0
	}
	_, err := s.settings.CompareAndSwap(models.SettingBookSearchOffset,
		strconv.Itoa(offset), strconv.Itoa(next))
	return err
}
