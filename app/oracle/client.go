package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avoronov/newsmux/app/cfg"
)

const summarizePrompt = "You summarize news posts. Respond with a JSON object " +
	"containing \"summary\" (a concise neutral retelling, at most 3 sentences), " +
	"\"headline\" (a short title) and \"tags\" (up to 5 lowercase topic tags). " +
	"Keep the language of the original post."

const verifyPrompt = "You compare two news posts. Respond with a JSON object " +
	"containing a single boolean field \"duplicate\": true when both posts " +
	"report the same underlying event, false otherwise. Different events in " +
	"the same domain are not duplicates."

const batchPrompt = "You group news posts reporting the same event. Given a " +
	"numbered list of posts, respond with a JSON object containing \"groups\": " +
	"an array of arrays of post numbers, one array per group of duplicates. " +
	"Posts without duplicates are omitted."

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ Oracle = (*Client)(nil)

func NewClient() *Client {
	c := cfg.Get()
	return &Client{
		endpoint: c.OracleEndpoint,
		model:    c.OracleModel,
		apiKey:   c.OracleAPIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) Summarize(ctx context.Context, text string) (Summary, error) {
	raw, err := c.complete(ctx, summarizePrompt, text)
	if err != nil {
		return Summary{}, err
	}

	var s Summary
	if err := json.Unmarshal(extractJSON(raw), &s); err != nil {
		return Summary{}, fmt.Errorf("failed to decode summary response: %w", err)
	}
	if s.Summary == "" {
		return Summary{}, fmt.Errorf("oracle returned an empty summary")
	}

	return s, nil
}

func (c *Client) VerifyPair(ctx context.Context, a, b string) (bool, error) {
	user := fmt.Sprintf("Post 1:\n%s\n\nPost 2:\n%s", a, b)
	raw, err := c.complete(ctx, verifyPrompt, user)
	if err != nil {
		return false, err
	}

	var verdict struct {
		Duplicate bool `json:"duplicate"`
	}
	if err := json.Unmarshal(extractJSON(raw), &verdict); err != nil {
		return false, fmt.Errorf("failed to decode verification response: %w", err)
	}

	return verdict.Duplicate, nil
}

func (c *Client) BatchDeduplicate(ctx context.Context, texts []string) ([][]int, error) {
	var sb strings.Builder
	for i, text := range texts {
		fmt.Fprintf(&sb, "%d. %s\n\n", i+1, text)
	}

	raw, err := c.complete(ctx, batchPrompt, sb.String())
	if err != nil {
		return nil, err
	}

	var result struct {
		Groups [][]int `json:"groups"`
	}
	if err := json.Unmarshal(extractJSON(raw), &result); err != nil {
		return nil, fmt.Errorf("failed to decode grouping response: %w", err)
	}

	groups := make([][]int, 0, len(result.Groups))
	for _, group := range result.Groups {
		var indices []int
		for _, num := range group {
			if num >= 1 && num <= len(texts) {
				indices = append(indices, num-1)
			}
		}
		if len(indices) > 1 {
			groups = append(groups, indices)
		}
	}

	return groups, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("oracle API key is not configured")
	}

	body, err := json.Marshal(map[string]any{
		"model":           c.model,
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		msg := fmt.Sprintf("oracle error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return "", fmt.Errorf("%w: %s", ErrTransient, msg)
		}
		return "", fmt.Errorf("%s", msg)
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("oracle returned no choices")
	}

	content := completion.Choices[0].Message.Content
	slog.Debug("Oracle response received", "length", len(content))

	return content, nil
}

// extractJSON tolerates responses wrapped in markdown code fences.
func extractJSON(s string) []byte {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return []byte(s)
}
