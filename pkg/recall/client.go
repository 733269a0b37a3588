// Package recall is a minimal client for the Recall.ai bot API: creating a
// meeting bot, asking it to leave, and fetching its state. Transcript data
// itself arrives by webhook, not through this client.
package recall

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/coach-sidekick/coach-sidekick-api/pkg/config"
)

// Client calls the Recall.ai REST API.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient creates a Recall client from config.
func NewClient(cfg *config.RecallConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = "https://us-west-2.recall.ai/api/v1"
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: base,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// BotResponse is the subset of the bot resource this service reads.
type BotResponse struct {
	ID         string `json:"id"`
	MeetingURL struct {
		Platform  string `json:"platform"`
		MeetingID string `json:"meeting_id"`
	} `json:"meeting_url"`
	StatusChanges []struct {
		Code      string `json:"code"`
		CreatedAt string `json:"created_at"`
	} `json:"status_changes"`
}

// CreateBot asks Recall to join the meeting with captions-based
// transcription and returns the new bot id, which keys the session.
func (c *Client) CreateBot(ctx context.Context, meetingURL string) (string, error) {
	body := map[string]interface{}{
		"meeting_url": meetingURL,
		"recording_config": map[string]interface{}{
			"transcript": map[string]interface{}{
				"provider": map[string]interface{}{
					"meeting_captions": map[string]interface{}{},
				},
			},
		},
	}

	var bot BotResponse
	if err := c.do(ctx, "POST", "/bot", body, &bot); err != nil {
		return "", fmt.Errorf("failed to create bot: %w", err)
	}
	if bot.ID == "" {
		return "", fmt.Errorf("recall returned a bot without an id")
	}
	return bot.ID, nil
}

// StopBot asks the bot to leave its call. Recall keeps sending status
// events for a short while afterwards; callers treat those normally.
func (c *Client) StopBot(ctx context.Context, botID string) error {
	if err := c.do(ctx, "POST", "/bot/"+botID+"/leave_call", map[string]interface{}{}, nil); err != nil {
		return fmt.Errorf("failed to stop bot %s: %w", botID, err)
	}
	return nil
}

// GetBot fetches the bot resource.
func (c *Client) GetBot(ctx context.Context, botID string) (*BotResponse, error) {
	var bot BotResponse
	if err := c.do(ctx, "GET", "/bot/"+botID, nil, &bot); err != nil {
		return nil, fmt.Errorf("failed to fetch bot %s: %w", botID, err)
	}
	return &bot, nil
}

// do sends one API request with retry on transient failures.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	operation := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Token "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			err := fmt.Errorf("recall returned status %d", resp.StatusCode)
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			return err
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(operation, policy)
}
