package textproc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability"

	"github.com/avoronov/newsmux/app/cfg"
)

const maxExtractedBytes = 2 << 20

// LinkExtractor fetches a linked page and pulls the readable article text
// out of it. Used when a post body is too short to stand on its own but
// carries a link.
type LinkExtractor struct {
	httpClient *http.Client
	userAgent  string
}

func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  cfg.Get().UserAgent,
	}
}

func (e *LinkExtractor) Run(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxExtractedBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", url, err)
	}

	return e.extract(data)
}

func (e *LinkExtractor) extract(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(strings.NewReader(string(data)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract content: %w", err)
	}

	text := stripHTML(article.Content)
	if text == "" {
		return "", fmt.Errorf("no content extracted from HTML data")
	}

	slog.Debug("Content extracted successfully",
		"title", article.Title,
		"content_length", len(text))

	return text, nil
}

var extractSpaceRe = regexp.MustCompile(`\s+`)

func stripHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = extractSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
