// Package x is the adapter for the X (Twitter) API v2: tweet creation with
// optional media, recent search and replies.
package x

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/openshelf/shelfcast/internal/config"
	"github.com/openshelf/shelfcast/internal/service/platform"
)

const (
	apiBase    = "https://api.x.com/2"
	maxResults = 50
)

type Client struct {
	config *config.XConfig
	client *http.Client
	logger *zap.Logger
}

func NewClient(cfg *config.XConfig, logger *zap.Logger) *Client {
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

func (c *Client) Name() string {
	return "x"
}

func (c *Client) PublishText(ctx context.Context, text string) (platform.Handle, error) {
	return c.createTweet(ctx, map[string]any{"text": text})
}

func (c *Client) PublishWithImage(ctx context.Context, text, imageURL string) (platform.Handle, error) {
	mediaID, err := c.uploadMedia(ctx, imageURL)
	if err != nil {
		return platform.Handle{}, err
	}
	return c.createTweet(ctx, map[string]any{
		"text":  text,
		"media": map[string]any{"media_ids": []string{mediaID}},
	})
}

func (c *Client) Reply(ctx context.Context, targetID, text string) error {
	_, err := c.createTweet(ctx, map[string]any{
		"text":  text,
		"reply": map[string]any{"in_reply_to_tweet_id": targetID},
	})
	return err
}

func (c *Client) createTweet(ctx context.Context, body map[string]any) (platform.Handle, error) {
	var response struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, apiBase+"/tweets", body, &response); err != nil {
		return platform.Handle{}, err
	}

	return platform.Handle{
		ID:  response.Data.ID,
		URL: fmt.Sprintf("https://x.com/i/status/%s", response.Data.ID),
	}, nil
}

// Search runs a recent-search query bounded to the given window and joins
// the author expansion onto each tweet.
func (c *Client) Search(ctx context.Context, query string, window platform.SearchWindow) ([]platform.Candidate, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start_time", window.Start.UTC().Format(time.RFC3339))
	params.Set("end_time", window.End.UTC().Format(time.RFC3339))
	params.Set("max_results", fmt.Sprintf("%d", maxResults))
	params.Set("tweet.fields", "created_at,public_metrics,author_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username,public_metrics")

	var response searchResponse
	endpoint := apiBase + "/tweets/search/recent?" + params.Encode()
	if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &response); err != nil {
		return nil, err
	}

	users := make(map[string]searchUser, len(response.Includes.Users))
	for _, u := range response.Includes.Users {
		users[u.ID] = u
	}

	var candidates []platform.Candidate
	for _, t := range response.Data {
		user := users[t.AuthorID]
		candidates = append(candidates, platform.Candidate{
			ID:            t.ID,
			AuthorID:      t.AuthorID,
			Username:      user.Username,
			Text:          t.Text,
			CreatedAt:     t.CreatedAt,
			LikeCount:     t.PublicMetrics.LikeCount,
			FollowerCount: user.PublicMetrics.FollowersCount,
		})
	}
	return candidates, nil
}

type searchResponse struct {
	Data []struct {
		ID            string    `json:"id"`
		AuthorID      string    `json:"author_id"`
		Text          string    `json:"text"`
		CreatedAt     time.Time `json:"created_at"`
		PublicMetrics struct {
			LikeCount int `json:"like_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []searchUser `json:"users"`
	} `json:"includes"`
}

type searchUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	PublicMetrics struct {
		FollowersCount int `json:"followers_count"`
	} `json:"public_metrics"`
}

// uploadMedia downloads the image and pushes it through the v2 media
// upload endpoint, returning the media id to attach.
func (c *Client) uploadMedia(ctx context.Context, imageURL string) (string, error) {
	image, err := c.download(ctx, imageURL)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", "cover")
	if err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiBase+"/media/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("media upload returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	return response.Data.ID, nil
}

func (c *Client) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	token := c.config.AccessToken
	if method == http.MethodGet && c.config.BearerToken != "" {
		token = c.config.BearerToken
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("x API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
