package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avoronov/newsmux/app/cfg"
)

// Client talks to the Telegram Bot API.
type Client struct {
	apiBase      string
	botToken     string
	chatID       string
	updateOffset int64
	httpClient   *http.Client
}

var _ Transport = (*Client)(nil)

func NewClient() *Client {
	c := cfg.Get()
	return &Client{
		apiBase:  "https://api.telegram.org",
		botToken: c.BotToken,
		chatID:   c.OutputChannel,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) Create(ctx context.Context, text string) (int64, error) {
	form := url.Values{}
	form.Set("chat_id", c.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "HTML")
	form.Set("disable_web_page_preview", "false")

	var result struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, "sendMessage", form, &result); err != nil {
		return 0, err
	}

	slog.Debug("Message published", "message_id", result.MessageID)

	return result.MessageID, nil
}

func (c *Client) Edit(ctx context.Context, nativeID int64, text string) error {
	form := url.Values{}
	form.Set("chat_id", c.chatID)
	form.Set("message_id", strconv.FormatInt(nativeID, 10))
	form.Set("text", text)
	form.Set("parse_mode", "HTML")

	return c.call(ctx, "editMessageText", form, nil)
}

func (c *Client) SendDigest(ctx context.Context, text string) (int64, error) {
	id, err := c.Create(ctx, text)
	if err != nil {
		return 0, err
	}

	form := url.Values{}
	form.Set("chat_id", c.chatID)
	form.Set("message_id", strconv.FormatInt(id, 10))
	form.Set("disable_notification", "true")
	if err := c.call(ctx, "pinChatMessage", form, nil); err != nil {
		slog.Warn("Failed to pin digest message", "message_id", id, "error", err.Error())
	}

	return id, nil
}

// CollectReactions drains message_reaction_count updates via long polling.
// Telegram only pushes these through getUpdates, so totals accumulate
// across runs on the caller's side.
func (c *Client) CollectReactions(ctx context.Context) (map[int64]int, error) {
	counts := make(map[int64]int)

	for {
		form := url.Values{}
		form.Set("timeout", "0")
		form.Set("allowed_updates", `["message_reaction_count"]`)
		if c.updateOffset > 0 {
			form.Set("offset", strconv.FormatInt(c.updateOffset, 10))
		}

		var updates []struct {
			UpdateID      int64 `json:"update_id"`
			ReactionCount *struct {
				MessageID int64 `json:"message_id"`
				Reactions []struct {
					TotalCount int `json:"total_count"`
				} `json:"reactions"`
			} `json:"message_reaction_count"`
		}
		if err := c.call(ctx, "getUpdates", form, &updates); err != nil {
			return nil, err
		}
		if len(updates) == 0 {
			return counts, nil
		}

		for _, u := range updates {
			c.updateOffset = u.UpdateID + 1
			if u.ReactionCount == nil {
				continue
			}
			total := 0
			for _, r := range u.ReactionCount.Reactions {
				total += r.TotalCount
			}
			counts[u.ReactionCount.MessageID] = total
		}
	}
}

func (c *Client) call(ctx context.Context, method string, form url.Values, result any) error {
	if c.botToken == "" || c.chatID == "" {
		return fmt.Errorf("telegram client misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	var envelope struct {
		Ok          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode telegram response: %w", err)
	}
	if !envelope.Ok {
		msg := fmt.Sprintf("telegram error %s: %s", resp.Status, envelope.Description)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %s", ErrTransient, msg)
		}
		return fmt.Errorf("%s", msg)
	}

	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("failed to decode telegram result: %w", err)
		}
	}

	return nil
}
