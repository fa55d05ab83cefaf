package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avoronov/newsmux/app/database"
)

// runClean normalizes raw text for every ingested item. A post whose cleaned
// text is still below the minimum length after an optional link-content
// extraction attempt is flagged as filtered rather than erred.
func (o *Orchestrator) runClean(ctx context.Context) error {
	items, err := o.ingestedRepo.GetByState(database.IngestedStateIngested, stageBatchSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(items) == 0 {
		return nil
	}

	cleaned, filtered := 0, 0
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result := o.cleaner.Run(item.RawText)
		item.Text = result.Text
		item.URLs = result.URLs
		item.Tags = result.Tags

		if len([]rune(item.Text)) < o.minItemLength && len(item.URLs) > 0 && o.extractor != nil {
			if extracted, err := o.extractor.Run(ctx, item.URLs[0]); err == nil && extracted != "" {
				item.Text = strings.TrimSpace(item.Text + "\n\n" + extracted)
			} else if err != nil {
				slog.Debug("Link content extraction failed", "item", item.ID, "url", item.URLs[0], "error", err.Error())
			}
		}

		if len([]rune(item.Text)) < o.minItemLength {
			item.Filtered = true
			item.FilterReason = fmt.Sprintf("text shorter than %d characters", o.minItemLength)
			filtered++
		} else {
			cleaned++
		}

		if err := o.ingestedRepo.UpdateCleaned(item); err != nil {
			slog.Warn("Failed to persist cleaned item", "item", item.ID, "error", err.Error())
		}
	}

	slog.Info("Items cleaned", "cleaned", cleaned, "filtered", filtered)

	return nil
}
