package pipeline

import (
	"context"
	"time"

	"github.com/avoronov/newsmux/app/channel"
	"github.com/avoronov/newsmux/app/source"
	"github.com/avoronov/newsmux/app/textproc"
)

// Cleaner strips markup and extracts links and tags from raw post text.
type Cleaner interface {
	Run(raw string) textproc.CleanResult
}

// SourceReader lists new raw items from a channel's feed.
type SourceReader interface {
	ListNewItems(ctx context.Context, ch *channel.Config, since, until time.Time) ([]source.RawItem, error)
}

// ContentExtractor pulls readable article text out of a linked page.
type ContentExtractor interface {
	Run(ctx context.Context, url string) (string, error)
}

// NameResolver turns a URL into a short human-readable label.
type NameResolver interface {
	DisplayName(ctx context.Context, url string) string
}
