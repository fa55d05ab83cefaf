package database

import (
	"fmt"
	"time"
)

// IngestedState is the lifecycle state of a fetched source post.
// Forward edges only: ingested -> cleaned -> summarized -> deduplicated|linked,
// with error reachable from cleaned (oracle failure) and an explicit
// error -> cleaned retry path.
type IngestedState string

const (
	IngestedStateIngested     IngestedState = "ingested"
	IngestedStateCleaned      IngestedState = "cleaned"
	IngestedStateSummarized   IngestedState = "summarized"
	IngestedStateDeduplicated IngestedState = "deduplicated"
	IngestedStateLinked       IngestedState = "linked"
	IngestedStateError        IngestedState = "error"
)

func ParseIngestedState(s string) (IngestedState, error) {
	state := IngestedState(s)
	switch state {
	case IngestedStateIngested, IngestedStateCleaned, IngestedStateSummarized,
		IngestedStateDeduplicated, IngestedStateLinked, IngestedStateError:
		return state, nil
	}
	return "", fmt.Errorf("unknown ingested state: %q", s)
}

// OutgoingState is the lifecycle state of a republished item.
// new -> to_send -> sent|error; sent -> to_update -> to_send when a later
// duplicate merges in and the text must be re-delivered as an edit.
type OutgoingState string

const (
	OutgoingStateNew      OutgoingState = "new"
	OutgoingStateToSend   OutgoingState = "to_send"
	OutgoingStateSent     OutgoingState = "sent"
	OutgoingStateToUpdate OutgoingState = "to_update"
	OutgoingStateError    OutgoingState = "error"
)

func ParseOutgoingState(s string) (OutgoingState, error) {
	state := OutgoingState(s)
	switch state {
	case OutgoingStateNew, OutgoingStateToSend, OutgoingStateSent,
		OutgoingStateToUpdate, OutgoingStateError:
		return state, nil
	}
	return "", fmt.Errorf("unknown outgoing state: %q", s)
}

// IngestedItem is a post pulled from a source channel.
type IngestedItem struct {
	ID           string
	ChannelID    string // configuration channel identifier
	SourceGUID   string // source-native item identifier
	Author       string
	PublicLink   string
	RawText      string // original text as fetched
	Text         string // cleaned text after the clean stage
	PostedAt     time.Time
	URLs         []string
	Summary      string
	Tags         []string
	Headline     string
	State        IngestedState
	Filtered     bool // content rejected (too short / excluded tag); permanent skip
	FilterReason string
	Error        string
	OutgoingID   *string // set when the item resolves to an outgoing item
	CreatedAt    time.Time
}

// OutgoingItem is a republished, possibly multi-source item.
type OutgoingItem struct {
	ID              string
	NativeID        *int64 // transport message id, set after first delivery
	Text            string
	IngestedID      string    // founding contributor
	MessageDttm     time.Time // original post time of the founding contributor
	State           OutgoingState
	SentAt          *time.Time
	Error           string
	Engagement      int
	NormalizedScore float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
