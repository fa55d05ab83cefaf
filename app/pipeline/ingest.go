package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avoronov/newsmux/app/channel"
	"github.com/avoronov/newsmux/app/database"
)

// runIngest pulls new items from every enabled channel, skips posts already
// seen, flags posts carrying the excluded tag, and persists the rest as
// ingested.
func (o *Orchestrator) runIngest(ctx context.Context) error {
	configs := o.configCache.GetEnabledConfigs()
	if len(configs) == 0 {
		slog.Debug("No enabled channels")
		return nil
	}

	until := time.Now()
	since := until.Add(-o.dedupWindow)

	var firstErr error
	total := 0
	for _, ch := range configs {
		count, err := o.ingestChannel(ctx, ch, since, until)
		if err != nil {
			slog.Warn("Channel ingestion failed", "channel", ch.ID, "error", err.Error())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += count
	}

	if total > 0 {
		slog.Info("Items ingested", "count", total, "channels", len(configs))
	}

	return firstErr
}

func (o *Orchestrator) ingestChannel(ctx context.Context, ch *channel.Config, since, until time.Time) (int, error) {
	raws, err := o.reader.ListNewItems(ctx, ch, since, until)
	if err != nil {
		return 0, fmt.Errorf("failed to list items: %w", err)
	}
	if len(raws) == 0 {
		return 0, nil
	}

	guids := make([]string, 0, len(raws))
	for _, raw := range raws {
		guids = append(guids, raw.SourceGUID)
	}
	existing, err := o.ingestedRepo.ExistingKeys(ch.ID, guids)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	items := make([]database.IngestedItem, 0, len(raws))
	for _, raw := range raws {
		if existing[raw.SourceGUID] {
			continue
		}

		item := database.IngestedItem{
			ID:         uuid.New().String(),
			ChannelID:  raw.ChannelID,
			SourceGUID: raw.SourceGUID,
			Author:     raw.Author,
			PublicLink: raw.PublicLink,
			RawText:    raw.Text,
			PostedAt:   raw.PostedAt,
			State:      database.IngestedStateIngested,
		}
		if o.excludedTag != "" && strings.Contains(strings.ToLower(raw.Text), o.excludedTag) {
			item.Filtered = true
			item.FilterReason = fmt.Sprintf("excluded tag %s", o.excludedTag)
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return 0, nil
	}
	if err := o.ingestedRepo.InsertBatch(items); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return len(items), nil
}
