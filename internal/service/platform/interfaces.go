package platform

import (
	"context"
	"time"
)

// Handle identifies a published unit on a platform.
type Handle struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// Candidate is one search hit: a post mentioning a book, with enough author
// metadata to filter and score it.
type Candidate struct {
	ID            string    `json:"id"`
	AuthorID      string    `json:"author_id"`
	Username      string    `json:"username"`
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
	LikeCount     int       `json:"like_count"`
	FollowerCount int       `json:"follower_count"`
}

// SearchWindow bounds a mention search in time. End is exclusive.
type SearchWindow struct {
	Start time.Time
	End   time.Time
}

// RequestPost is one submission from a request subreddit.
type RequestPost struct {
	ID        string    `json:"id"`
	FullID    string    `json:"full_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Author    string    `json:"author"`
	Permalink string    `json:"permalink"`
	CreatedAt time.Time `json:"created_at"`
}

// Adapter is the minimal surface every platform client exposes. Concrete
// capabilities are separate interfaces so a pipeline declares exactly what
// it needs and tests can stub just that.
type Adapter interface {
	Name() string
}

// Publisher publishes standalone posts.
type Publisher interface {
	Adapter
	PublishText(ctx context.Context, text string) (Handle, error)
	PublishWithImage(ctx context.Context, text, imageURL string) (Handle, error)
}

// Commenter appends a follow-up comment to a published unit.
type Commenter interface {
	CommentOn(ctx context.Context, handle Handle, text string) error
}

// Searcher finds recent mentions and replies to them.
type Searcher interface {
	Search(ctx context.Context, query string, window SearchWindow) ([]Candidate, error)
	Reply(ctx context.Context, targetID, text string) error
}

// LinkSubmitter submits a link post with flair (Reddit).
type LinkSubmitter interface {
	SubmitLink(ctx context.Context, subreddit, title, link, flairID string) (Handle, error)
}

// RequestFeed reads and engages a request subreddit (Reddit).
type RequestFeed interface {
	NewRequestPosts(ctx context.Context, subreddit string, limit int) ([]RequestPost, error)
	ReplyToSubmission(ctx context.Context, fullID, text string) error
	Upvote(ctx context.Context, fullID string) error
}
