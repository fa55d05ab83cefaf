package oracle

import (
	"context"
	"errors"
)

// ErrTransient marks oracle failures worth retrying on a later run:
// network errors, timeouts, rate limits and server-side errors.
var ErrTransient = errors.New("transient oracle error")

// Summary is the oracle's condensed rendition of a post.
type Summary struct {
	Summary  string   `json:"summary"`
	Headline string   `json:"headline"`
	Tags     []string `json:"tags"`
}

// Oracle answers summarization and duplicate-verification questions about
// post texts.
type Oracle interface {
	Summarize(ctx context.Context, text string) (Summary, error)
	VerifyPair(ctx context.Context, a, b string) (bool, error)
	BatchDeduplicate(ctx context.Context, texts []string) ([][]int, error)
}
