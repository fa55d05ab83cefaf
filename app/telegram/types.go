package telegram

import (
	"context"
	"errors"
)

// ErrTransient marks delivery failures worth retrying on a later run.
var ErrTransient = errors.New("transient transport error")

// Transport publishes and maintains posts in the output channel.
type Transport interface {
	// Create publishes a new post and returns its native message id.
	Create(ctx context.Context, text string) (int64, error)
	// Edit replaces the text of an already published post.
	Edit(ctx context.Context, nativeID int64, text string) error
	// SendDigest publishes a digest post and pins it in the channel.
	SendDigest(ctx context.Context, text string) (int64, error)
	// CollectReactions drains pending reaction-count updates and returns
	// the latest known reaction totals keyed by native message id.
	CollectReactions(ctx context.Context) (map[int64]int, error)
}
