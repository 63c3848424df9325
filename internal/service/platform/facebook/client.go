// Package facebook is the adapter for the Facebook Graph API: page feed and
// photo posts with follow-up comments.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openshelf/shelfcast/internal/config"
	"github.com/openshelf/shelfcast/internal/service/platform"
)

const apiBase = "https://graph.facebook.com/v19.0"

type Client struct {
	config *config.FacebookConfig
	client *http.Client
	logger *zap.Logger
}

func NewClient(cfg *config.FacebookConfig, logger *zap.Logger) *Client {
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

func (c *Client) Name() string {
	return "facebook"
}

func (c *Client) PublishText(ctx context.Context, text string) (platform.Handle, error) {
	endpoint := fmt.Sprintf("%s/%s/feed", apiBase, c.config.PageID)
	return c.post(ctx, endpoint, url.Values{"message": {text}})
}

// PublishWithImage posts the image to the page's photo album with the text
// as caption, which is how Graph composes image+text units.
func (c *Client) PublishWithImage(ctx context.Context, text, imageURL string) (platform.Handle, error) {
	endpoint := fmt.Sprintf("%s/%s/photos", apiBase, c.config.PageID)
	return c.post(ctx, endpoint, url.Values{
		"url":     {imageURL},
		"caption": {text},
	})
}

func (c *Client) CommentOn(ctx context.Context, handle platform.Handle, text string) error {
	endpoint := fmt.Sprintf("%s/%s/comments", apiBase, handle.ID)
	_, err := c.post(ctx, endpoint, url.Values{"message": {text}})
	return err
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) (platform.Handle, error) {
	form.Set("access_token", c.config.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return platform.Handle{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return platform.Handle{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return platform.Handle{}, fmt.Errorf("facebook API returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return platform.Handle{}, fmt.Errorf("failed to decode response: %w", err)
	}

	id := response.PostID
	if id == "" {
		id = response.ID
	}
	return platform.Handle{
		ID:  id,
		URL: fmt.Sprintf("https://www.facebook.com/%s", id),
	}, nil
}
