// Package linkedin is the adapter for the LinkedIn UGC API: text and image
// posts with follow-up comments. Image posts are two-step: register an
// upload, push the bytes, then attach the asset.
package linkedin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/openshelf/shelfcast/internal/config"
	"github.com/openshelf/shelfcast/internal/service/platform"
)

const apiBase = "https://api.linkedin.com/v2"

type Client struct {
	config *config.LinkedInConfig
	client *http.Client
	logger *zap.Logger
}

func NewClient(cfg *config.LinkedInConfig, logger *zap.Logger) *Client {
	return &Client{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

func (c *Client) Name() string {
	return "linkedin"
}

func (c *Client) PublishText(ctx context.Context, text string) (platform.Handle, error) {
	return c.createPost(ctx, text, "NONE", nil)
}

func (c *Client) PublishWithImage(ctx context.Context, text, imageURL string) (platform.Handle, error) {
	asset, err := c.uploadImage(ctx, imageURL)
	if err != nil {
		return platform.Handle{}, err
	}
	media := []map[string]any{{
		"status": "READY",
		"media":  asset,
	}}
	return c.createPost(ctx, text, "IMAGE", media)
}

func (c *Client) CommentOn(ctx context.Context, handle platform.Handle, text string) error {
	endpoint := fmt.Sprintf("%s/socialActions/%s/comments", apiBase, url.PathEscape(handle.ID))
	body := map[string]any{
		"actor":   c.config.OwnerURN,
		"message": map[string]any{"text": text},
	}
	return c.doJSON(ctx, http.MethodPost, endpoint, body, nil)
}

func (c *Client) createPost(ctx context.Context, text, category string, media []map[string]any) (platform.Handle, error) {
	shareContent := map[string]any{
		"shareCommentary":    map[string]any{"text": text},
		"shareMediaCategory": category,
	}
	if media != nil {
		shareContent["media"] = media
	}

	body := map[string]any{
		"author":         c.config.OwnerURN,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}

	var response struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, apiBase+"/ugcPosts", body, &response); err != nil {
		return platform.Handle{}, err
	}

	return platform.Handle{
		ID:  response.ID,
		URL: fmt.Sprintf("https://www.linkedin.com/feed/update/%s", response.ID),
	}, nil
}

// uploadImage registers an upload slot, pushes the image bytes to the
// returned URL and hands back the asset URN.
func (c *Client) uploadImage(ctx context.Context, imageURL string) (string, error) {
	registerBody := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   c.config.OwnerURN,
			"serviceRelationships": []map[string]any{{
				"relationshipType": "OWNER",
				"identifier":       "urn:li:userGeneratedContent",
			}},
		},
	}

	var registered struct {
		Value struct {
			Asset           string `json:"asset"`
			UploadMechanism map[string]struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"uploadMechanism"`
		} `json:"value"`
	}
	err := c.doJSON(ctx, http.MethodPost, apiBase+"/assets?action=registerUpload", registerBody, &registered)
	if err != nil {
		return "", err
	}

	var uploadURL string
	for _, mechanism := range registered.Value.UploadMechanism {
		if mechanism.UploadURL != "" {
			uploadURL = mechanism.UploadURL
			break
		}
	}
	if uploadURL == "" {
		return "", fmt.Errorf("linkedin register upload returned no upload url")
	}

	image, err := c.download(ctx, imageURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("linkedin upload returned status %d: %s", resp.StatusCode, string(body))
	}

	return registered.Value.Asset, nil
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
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
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
		return fmt.Errorf("linkedin API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
