package source

import (
	"time"
)

// RawItem is a single post as fetched from a source channel, before any
// pipeline processing.
type RawItem struct {
	ChannelID  string
	SourceGUID string
	Author     string
	PublicLink string
	Text       string
	PostedAt   time.Time
}
