package source

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/avoronov/newsmux/app/channel"
)

// Reader fetches new posts from source channels. It is the concrete
// feed-source collaborator behind the ingest stage.
type Reader struct {
	httpClient *http.Client
	parser     *gofeed.Parser
	userAgent  string
	limit      int
}

func NewReader(httpClient *http.Client, userAgent string, limit int) *Reader {
	return &Reader{
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		limit:      limit,
	}
}

// ListNewItems returns the channel's posts within [since, until), newest
// capped at the configured message limit.
func (r *Reader) ListNewItems(ctx context.Context, ch *channel.Config, since, until time.Time) ([]RawItem, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(ch.Settings.Timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, ch.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel %s: %w", ch.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error fetching channel %s: %d %s", ch.ID, resp.StatusCode, resp.Status)
	}

	feed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse channel %s: %w", ch.ID, err)
	}

	items := make([]RawItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		postedAt := time.Time{}
		if item.PublishedParsed != nil {
			postedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			postedAt = *item.UpdatedParsed
		}
		if postedAt.IsZero() || postedAt.Before(since) || !postedAt.Before(until) {
			continue
		}

		items = append(items, RawItem{
			ChannelID:  ch.ID,
			SourceGUID: cmp.Or(item.GUID, item.Link),
			Author:     r.extractAuthor(feed, item),
			PublicLink: item.Link,
			Text:       cmp.Or(item.Content, item.Description, item.Title),
			PostedAt:   postedAt,
		})

		if len(items) >= r.limit {
			break
		}
	}

	return items, nil
}

func (r *Reader) extractAuthor(feed *gofeed.Feed, item *gofeed.Item) string {
	for _, author := range item.Authors {
		if author != nil && author.Name != "" {
			return author.Name
		}
	}
	return feed.Title
}
