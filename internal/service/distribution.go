package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openshelf/shelfcast/internal/models"
	"github.com/openshelf/shelfcast/internal/service/platform"
	"github.com/openshelf/shelfcast/pkg/util"
)

// ContentKind selects what a platform posts: a bare book link or a quote.
type ContentKind int

const (
	KindLink ContentKind = iota
	KindQuote
)

// PostContent is the rendered unit handed to a platform's publish callback.
type PostContent struct {
	Text      string
	ImageLink string
	BookLink  string
	Title     string
}

// Platform parameterizes the shared schedule/publish flow for one target
// network: a tag, a content kind, and the platform-specific callbacks.
type Platform struct {
	Tag           string
	Kind          ContentKind
	Domain        string
	HashtagSuffix string

	Publish func(ctx context.Context, content PostContent) (platform.Handle, error)
	// Comment is nil when the platform has no follow-up comment support.
	Comment func(ctx context.Context, handle platform.Handle, text string) error
}

// DistributionService owns the daily cycle: schedule tomorrow's post for
// every platform, publish today's scheduled posts.
type DistributionService struct {
	catalog   *CatalogService
	logger    *zap.Logger
	platforms []Platform
	now       func() time.Time
}

func NewDistributionService(catalog *CatalogService, logger *zap.Logger, platforms []Platform) *DistributionService {
	return &DistributionService{
		catalog:   catalog,
		logger:    logger,
		platforms: platforms,
		now:       time.Now,
	}
}

// SchedulePosts queues at most one post per platform for tomorrow. Already
// scheduled platforms and platforms with no due content are no-ops. Returns
// the created posts.
func (s *DistributionService) SchedulePosts(ctx context.Context) ([]models.Post, error) {
	tomorrow := s.now().AddDate(0, 0, 1)
	var created []models.Post
	var errs []error

	for _, p := range s.platforms {
		post, err := s.scheduleOne(p, tomorrow)
		if err != nil {
			s.logger.Error("Failed to schedule post",
				zap.String("platform", p.Tag),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", p.Tag, err))
			continue
		}
		if post != nil {
			s.logger.Info("Post scheduled",
				zap.String("platform", p.Tag),
				zap.Uint("post_id", post.ID),
				zap.String("text", post.Text))
			created = append(created, *post)
		}
	}

	return created, errors.Join(errs...)
}

func (s *DistributionService) scheduleOne(p Platform, day time.Time) (*models.Post, error) {
	exists, err := s.catalog.HasScheduledPost(p.Tag, day)
	if err != nil {
		return nil, err
	}
	if exists {
		s.logger.Info("Post already scheduled, skipping",
			zap.String("platform", p.Tag),
			zap.Time("day", DateOnly(day)))
		return nil, nil
	}

	var post *models.Post
	switch p.Kind {
	case KindLink:
		book, err := s.catalog.NextLinkBook(p.Tag)
		if err != nil {
			return nil, err
		}
		if book == nil {
			s.logger.Info("No books available, skipping", zap.String("platform", p.Tag))
			return nil, nil
		}
		post = &models.Post{
			BookID:    &book.ID,
			Text:      renderLinkText(book),
			ImageLink: book.CoverLink,
			Platform:  p.Tag,
		}
	case KindQuote:
		quote, err := s.catalog.NextQuote(p.Tag)
		if err != nil {
			return nil, err
		}
		if quote == nil {
			s.logger.Info("No quotes available, skipping", zap.String("platform", p.Tag))
			return nil, nil
		}
		post = &models.Post{
			QuoteID:   &quote.ID,
			Text:      renderQuoteText(quote, p.HashtagSuffix),
			ImageLink: quote.Book.CoverLink,
			Platform:  p.Tag,
		}
	default:
		return nil, fmt.Errorf("unknown content kind %d", p.Kind)
	}

	inserted, err := s.catalog.CreateScheduledPost(post, day)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// A concurrent invocation scheduled this platform/day between the
		// pre-check and the insert.
		s.logger.Info("Lost schedule race, skipping", zap.String("platform", p.Tag))
		return nil, nil
	}
	return post, nil
}

// PublishScheduledPosts publishes every post due today, platform by
// platform. Posts within a platform batch are published sequentially; the
// first publish failure aborts that platform's remaining batch and is
// surfaced to the invoker, so revoked credentials are never silently
// swallowed.
func (s *DistributionService) PublishScheduledPosts(ctx context.Context) error {
	today := s.now()
	var errs []error

	for _, p := range s.platforms {
		if err := s.publishBatch(ctx, p, today); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Tag, err))
		}
	}

	return errors.Join(errs...)
}

func (s *DistributionService) publishBatch(ctx context.Context, p Platform, day time.Time) error {
	posts, err := s.catalog.ScheduledPostsDue(p.Tag, day)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		s.logger.Info("No posts due today", zap.String("platform", p.Tag))
		return nil
	}

	for i := range posts {
		post := &posts[i]
		if err := s.publishOne(ctx, p, post); err != nil {
			s.logger.Error("Failed to publish post",
				zap.String("platform", p.Tag),
				zap.Uint("post_id", post.ID),
				zap.Error(err))
			return err
		}
		s.logger.Info("Post published",
			zap.String("platform", p.Tag),
			zap.Uint("post_id", post.ID))
	}

	return nil
}

func (s *DistributionService) publishOne(ctx context.Context, p Platform, post *models.Post) error {
	book := post.ResolveBook()
	content := PostContent{
		Text:      post.Text,
		ImageLink: post.ImageLink,
	}
	if book != nil {
		content.BookLink = book.Link
		content.Title = book.Title
	}

	handle, err := p.Publish(ctx, content)
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	if err := s.catalog.MarkPublished(post, s.now()); err != nil {
		return err
	}

	if p.Comment != nil && content.BookLink != "" {
		link := util.AppendUTM(content.BookLink, p.Domain, "referral", p.Tag+"-scheduled-posts")
		if err := p.Comment(ctx, handle, link); err != nil {
			return fmt.Errorf("comment failed: %w", err)
		}
	}

	return nil
}

func renderLinkText(book *models.Book) string {
	return fmt.Sprintf("%s by %s", book.Title, book.Author.Name)
}

func renderQuoteText(quote *models.Quote, hashtagSuffix string) string {
	text := fmt.Sprintf("\"%s\" - %s by %s", quote.Text, quote.Book.Title, quote.Book.Author.Name)
	if hashtagSuffix != "" {
		text += " " + hashtagSuffix
	}
	return text
}
