package textproc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/avoronov/newsmux/app/cfg"
)

const maxDisplayNameLength = 100

// URLMetaResolver resolves a human-readable display name for a link,
// preferring page metadata over the bare URL.
type URLMetaResolver struct {
	httpClient *http.Client
	userAgent  string
}

func NewURLMetaResolver() *URLMetaResolver {
	return &URLMetaResolver{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		userAgent:  cfg.Get().UserAgent,
	}
}

// DisplayName returns a short label for the URL: the og:description when it
// fits, then og:title, then the document title, then the host name. Fetch
// failures fall back to the host name rather than erroring out.
func (r *URLMetaResolver) DisplayName(ctx context.Context, rawURL string) string {
	name, err := r.fetchName(ctx, rawURL)
	if err != nil || name == "" {
		return hostName(rawURL)
	}
	return name
}

func (r *URLMetaResolver) fetchName(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxExtractedBytes))
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}

	if desc := metaContent(doc, "og:description"); desc != "" && len([]rune(desc)) <= maxDisplayNameLength {
		return desc, nil
	}
	if title := metaContent(doc, "og:title"); title != "" {
		return truncateName(title), nil
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return truncateName(title), nil
	}

	return "", nil
}

func metaContent(doc *goquery.Document, property string) string {
	sel := fmt.Sprintf(`meta[property=%q], meta[name=%q]`, property, property)
	content, _ := doc.Find(sel).First().Attr("content")
	return strings.TrimSpace(content)
}

func truncateName(s string) string {
	runes := []rune(s)
	if len(runes) <= maxDisplayNameLength {
		return s
	}
	return strings.TrimSpace(string(runes[:maxDisplayNameLength-1])) + "…"
}

func hostName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return strings.TrimPrefix(u.Host, "www.")
}
