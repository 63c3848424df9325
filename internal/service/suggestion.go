package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openshelf/shelfcast/internal/config"
	"github.com/openshelf/shelfcast/internal/models"
	"github.com/openshelf/shelfcast/internal/service/platform"
	"github.com/openshelf/shelfcast/internal/service/suggester"
	"github.com/openshelf/shelfcast/pkg/util"
)

const defaultIntro = "Here are a few free public-domain reads you might enjoy:"

// matchedSuggestion is a model suggestion re-resolved against the store.
type matchedSuggestion struct {
	book  models.Book
	hook  string
	score float64
}

type rankedRequest struct {
	post    platform.RequestPost
	intro   string
	matches []matchedSuggestion
	best    float64
}

// SuggestionService watches a request subreddit and answers at most one
// request per run with store-verified book suggestions.
type SuggestionService struct {
	catalog  *CatalogService
	settings *SettingsService
	feed     platform.RequestFeed
	ranker   suggester.Ranker
	cfg      *config.SuggestionConfig
	library  config.LibraryConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewSuggestionService(catalog *CatalogService, settings *SettingsService, feed platform.RequestFeed, ranker suggester.Ranker, cfg *config.SuggestionConfig, library config.LibraryConfig, logger *zap.Logger) *SuggestionService {
	return &SuggestionService{
		catalog:  catalog,
		settings: settings,
		feed:     feed,
		ranker:   ranker,
		cfg:      cfg,
		library:  library,
		logger:   logger,
		now:      time.Now,
	}
}

// Run fetches new request posts since the watermark, ranks them against the
// catalog and replies to the single best-matching one. Returns a
// human-readable result message.
func (s *SuggestionService) Run(ctx context.Context) (string, error) {
	now := s.now()

	posts, err := s.fetchNewRequests(ctx, now)
	if err != nil {
		return "", err
	}
	if len(posts) == 0 {
		return fmt.Sprintf("replied to 0 book requests in r/%s", s.cfg.Subreddit), nil
	}

	titles, err := s.catalog.AllTitles()
	if err != nil {
		return "", err
	}
	if len(titles) == 0 {
		s.logger.Info("Book catalog is empty, skipping suggestions")
		return fmt.Sprintf("replied to 0 book requests in r/%s", s.cfg.Subreddit), nil
	}

	selected := s.selectBookRequest(ctx, posts, titles)
	if selected == nil {
		return fmt.Sprintf("replied to 0 book requests in r/%s", s.cfg.Subreddit), nil
	}

	reply := s.composeReply(selected)
	if reply == "" {
		return fmt.Sprintf("replied to 0 book requests in r/%s", s.cfg.Subreddit), nil
	}

	if err := s.feed.ReplyToSubmission(ctx, selected.post.FullID, reply); err != nil {
		return "", fmt.Errorf("failed to reply to %s: %w", selected.post.FullID, err)
	}
	if err := s.feed.Upvote(ctx, selected.post.FullID); err != nil {
		// The reply landed; a failed upvote is not worth failing the run.
		s.logger.Warn("Failed to upvote request post",
			zap.String("post", selected.post.FullID),
			zap.Error(err))
	}

	s.logger.Info("Replied to book request",
		zap.String("post", selected.post.FullID),
		zap.String("title", selected.post.Title),
		zap.Float64("best_score", selected.best))
	return fmt.Sprintf("replied to 1 book request in r/%s", s.cfg.Subreddit), nil
}

// fetchNewRequests over-fetches the subreddit feed, keeps posts created
// after the watermark and advances the watermark to now regardless of
// matches, so nothing is ever reprocessed.
func (s *SuggestionService) fetchNewRequests(ctx context.Context, now time.Time) ([]platform.RequestPost, error) {
	key := models.SubredditWatermarkKey(s.cfg.Subreddit)
	raw, err := s.settings.Get(key, "0")
	if err != nil {
		return nil, err
	}
	watermark, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		watermark = 0
	}

	fetched, err := s.feed.NewRequestPosts(ctx, s.cfg.Subreddit, s.cfg.Limit*s.cfg.OverFetchFactor)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch r/%s: %w", s.cfg.Subreddit, err)
	}

	var posts []platform.RequestPost
	for _, p := range fetched {
		if p.CreatedAt.Unix() <= watermark {
			continue
		}
		posts = append(posts, p)
		if len(posts) == s.cfg.Limit {
			break
		}
	}

	if err := s.settings.Set(key, strconv.FormatInt(now.Unix(), 10)); err != nil {
		return nil, err
	}
	return posts, nil
}

// selectBookRequest ranks every candidate post and picks the one whose best
// suggestion scores highest. Ties keep the earlier post in fetch order. A
// per-post ranking failure skips that post and the rest still run.
func (s *SuggestionService) selectBookRequest(ctx context.Context, posts []platform.RequestPost, titles []string) *rankedRequest {
	var selected *rankedRequest

	for _, post := range posts {
		request := strings.TrimSpace(post.Title + "\n\n" + post.Body)
		result, err := s.ranker.Rank(ctx, request, titles)
		if err != nil {
			s.logger.Warn("Ranking call failed",
				zap.String("post", post.FullID),
				zap.Error(err))
			continue
		}
		if result.Outcome != suggester.OutcomeOK {
			continue
		}

		ranked := rankedRequest{post: post}
		ranked.matches = s.resolveMatches(result.Books)
		if len(ranked.matches) == 0 {
			continue
		}
		if result.Intro != "" {
			ranked.intro = result.Intro
		}
		for _, m := range ranked.matches {
			if m.score > ranked.best {
				ranked.best = m.score
			}
		}

		if selected == nil || ranked.best > selected.best {
			r := ranked
			selected = &r
		}
	}

	return selected
}

// resolveMatches re-resolves model titles against the store by
// case-insensitive exact match. Unmatched titles are silently dropped: the
// model is not trusted for availability or links.
func (s *SuggestionService) resolveMatches(books []suggester.Suggestion) []matchedSuggestion {
	var matches []matchedSuggestion
	for _, b := range books {
		book, err := s.catalog.FindBookByTitle(b.Title)
		if err != nil {
			s.logger.Warn("Title lookup failed", zap.String("title", b.Title), zap.Error(err))
			continue
		}
		if book == nil {
			continue
		}
		matches = append(matches, matchedSuggestion{
			book:  *book,
			hook:  b.Hook,
			score: b.OverallScore,
		})
	}
	return matches
}

// composeReply renders the markdown reply: intro line, one bullet per
// matched title with a UTM-tagged link, and the attribution footer.
func (s *SuggestionService) composeReply(r *rankedRequest) string {
	if len(r.matches) == 0 {
		return ""
	}

	intro := r.intro
	if intro == "" {
		intro = defaultIntro
	}

	var bullets []string
	for _, m := range r.matches {
		link := util.AppendUTM(m.book.Link, "reddit.com", "referral", s.cfg.Subreddit)
		bullets = append(bullets, fmt.Sprintf("* [%s](%s): %s", m.book.Title, link, m.hook))
	}

	libraryLink := util.AppendUTM(s.library.BaseURL, "reddit.com", "referral", s.cfg.Subreddit)
	footer := fmt.Sprintf("Click any title to download the free e-book from the [%s](%s).",
		s.library.Name, libraryLink)

	return intro + "\n\n" + strings.Join(bullets, "\n") + "\n\n" + footer
}
