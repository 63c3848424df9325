// Package reddit is the adapter for the Reddit OAuth API: link submission
// with flair, comments, votes and the request-subreddit feed.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openshelf/shelfcast/internal/config"
	"github.com/openshelf/shelfcast/internal/service/platform"
)

const (
	authBase = "https://www.reddit.com"
	apiBase  = "https://oauth.reddit.com"
)

type Client struct {
	config *config.RedditConfig
	client *http.Client
	logger *zap.Logger

	token        string
	tokenExpires time.Time
}

func NewClient(cfg *config.RedditConfig, logger *zap.Logger) *Client {
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

func (c *Client) Name() string {
	return "reddit"
}

// PublishText submits a self post to the configured subreddit.
func (c *Client) PublishText(ctx context.Context, text string) (platform.Handle, error) {
	return c.submit(ctx, url.Values{
		"kind":     {"self"},
		"sr":       {c.config.Subreddit},
		"title":    {text},
		"api_type": {"json"},
	})
}

// PublishWithImage submits the image as a link post titled with the text.
func (c *Client) PublishWithImage(ctx context.Context, text, imageURL string) (platform.Handle, error) {
	return c.SubmitLink(ctx, c.config.Subreddit, text, imageURL, c.config.FlairID)
}

// SubmitLink submits a link post with optional flair.
func (c *Client) SubmitLink(ctx context.Context, subreddit, title, link, flairID string) (platform.Handle, error) {
	form := url.Values{
		"kind":     {"link"},
		"sr":       {subreddit},
		"title":    {title},
		"url":      {link},
		"api_type": {"json"},
	}
	if flairID != "" {
		form.Set("flair_id", flairID)
	}
	return c.submit(ctx, form)
}

func (c *Client) submit(ctx context.Context, form url.Values) (platform.Handle, error) {
	var response struct {
		JSON struct {
			Errors [][]any `json:"errors"`
			Data   struct {
				Name string `json:"name"`
				URL  string `json:"url"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := c.doForm(ctx, "/api/submit", form, &response); err != nil {
		return platform.Handle{}, err
	}
	if len(response.JSON.Errors) > 0 {
		return platform.Handle{}, fmt.Errorf("reddit submit rejected: %v", response.JSON.Errors)
	}

	return platform.Handle{
		ID:  response.JSON.Data.Name,
		URL: response.JSON.Data.URL,
	}, nil
}

// CommentOn replies to a published submission.
func (c *Client) CommentOn(ctx context.Context, handle platform.Handle, text string) error {
	return c.ReplyToSubmission(ctx, handle.ID, text)
}

// ReplyToSubmission posts a comment on the thing identified by fullID
// (a t3_* fullname).
func (c *Client) ReplyToSubmission(ctx context.Context, fullID, text string) error {
	form := url.Values{
		"thing_id": {fullID},
		"text":     {text},
		"api_type": {"json"},
	}
	return c.doForm(ctx, "/api/comment", form, nil)
}

// Upvote casts an upvote on the thing identified by fullID.
func (c *Client) Upvote(ctx context.Context, fullID string) error {
	form := url.Values{
		"id":  {fullID},
		"dir": {"1"},
	}
	return c.doForm(ctx, "/api/vote", form, nil)
}

// NewRequestPosts lists the newest submissions in a subreddit.
func (c *Client) NewRequestPosts(ctx context.Context, subreddit string, limit int) ([]platform.RequestPost, error) {
	endpoint := fmt.Sprintf("/r/%s/new.json?limit=%d", subreddit, limit)

	var response struct {
		Data struct {
			Children []struct {
				Data struct {
					ID         string  `json:"id"`
					Name       string  `json:"name"`
					Title      string  `json:"title"`
					Selftext   string  `json:"selftext"`
					Author     string  `json:"author"`
					Permalink  string  `json:"permalink"`
					CreatedUTC float64 `json:"created_utc"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := c.doGet(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	var posts []platform.RequestPost
	for _, child := range response.Data.Children {
		d := child.Data
		posts = append(posts, platform.RequestPost{
			ID:        d.ID,
			FullID:    d.Name,
			Title:     d.Title,
			Body:      d.Selftext,
			Author:    d.Author,
			Permalink: "https://www.reddit.com" + d.Permalink,
			CreatedAt: time.Unix(int64(d.CreatedUTC), 0).UTC(),
		})
	}
	return posts, nil
}

// ensureToken fetches an OAuth token with the script-app password grant,
// reusing it until shortly before expiry.
func (c *Client) ensureToken(ctx context.Context) error {
	if c.token != "" && time.Now().Before(c.tokenExpires) {
		return nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.config.Username},
		"password":   {c.config.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		authBase+"/api/v1/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.config.ClientID, c.config.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reddit token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("reddit token response missing access_token")
	}

	c.token = token.AccessToken
	c.tokenExpires = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)
	return nil
}

func (c *Client) doForm(ctx context.Context, path string, form url.Values, out any) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		apiBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Content-Length", strconv.Itoa(len(form.Encode())))

	return c.do(req, out)
}

func (c *Client) doGet(ctx context.Context, path string, out any) error {
	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", c.config.UserAgent)

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("reddit API returned status %d: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
