package database

import (
	"time"
)

// IngestedRepo handles persistence for ingested items. Every state-changing
// method guards on the item's current state, so a stale update is a no-op
// rather than a regression.
type IngestedRepo interface {
	ExistingKeys(channelID string, guids []string) (map[string]bool, error)
	InsertBatch(items []IngestedItem) error

	GetByState(state IngestedState, limit int) ([]IngestedItem, error)
	GetByIDs(ids []string) (map[string]IngestedItem, error)
	GetByOutgoingIDs(outgoingIDs []string) (map[string][]IngestedItem, error)
	CountByState() (map[IngestedState]int, error)

	UpdateCleaned(item IngestedItem) error
	UpdateSummarized(item IngestedItem) error
	MarkError(id string, errMsg string) error
	LinkToOutgoing(id string, outgoingID string, state IngestedState) error
	RetryError(id string) error
}

// OutgoingRepo handles persistence for outgoing items.
type OutgoingRepo interface {
	Insert(item OutgoingItem) error

	GetByStates(states []OutgoingState) ([]OutgoingItem, error)
	GetForDedup(since time.Time) ([]OutgoingItem, error)
	GetSentSince(since time.Time) ([]OutgoingItem, error)
	TopByScore(from, to time.Time, limit int) ([]OutgoingItem, error)
	CountByState() (map[OutgoingState]int, error)

	UpdateText(id string, text string) error
	SetState(id string, from, to OutgoingState) error
	MarkSent(id string, nativeID int64, sentAt time.Time) error
	MarkSendError(id string, errMsg string) error
	UpdateEngagement(id string, engagement int, normalizedScore float64) error
}

// SettingsRepo is a small key/value store for pipeline bookkeeping
// (e.g. the date of the last delivered digest).
type SettingsRepo interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}
