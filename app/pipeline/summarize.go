package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/avoronov/newsmux/app/database"
)

// runSummarize asks the oracle for a summary of every cleaned item, with
// bounded parallelism. Failures are isolated per item: a transient failure
// leaves the item cleaned for the next tick, anything else moves it to
// error until an explicit retry.
func (o *Orchestrator) runSummarize(ctx context.Context) error {
	items, err := o.ingestedRepo.GetByState(database.IngestedStateCleaned, stageBatchSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(items) == 0 {
		return nil
	}

	sem := make(chan struct{}, o.summarizeLimit)
	var wg sync.WaitGroup

	for _, item := range items {
		wg.Add(1)
		go func(item database.IngestedItem) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			o.summarizeItem(ctx, item)
		}(item)
	}

	wg.Wait()

	slog.Info("Items summarized", "count", len(items))

	return nil
}

func (o *Orchestrator) summarizeItem(ctx context.Context, item database.IngestedItem) {
	summary, err := o.oracleClient.Summarize(ctx, item.Text)
	if err != nil {
		if errors.Is(err, ErrOracleTransient) || errors.Is(err, context.Canceled) {
			slog.Warn("Summarization postponed", "item", item.ID, "error", err.Error())
			return
		}
		slog.Error("Summarization failed", "item", item.ID, "error", err.Error())
		if markErr := o.ingestedRepo.MarkError(item.ID, err.Error()); markErr != nil {
			slog.Warn("Failed to mark item as errored", "item", item.ID, "error", markErr.Error())
		}
		return
	}

	item.Summary = summary.Summary
	item.Headline = summary.Headline
	item.Tags = mergeTags(item.Tags, summary.Tags)

	if err := o.ingestedRepo.UpdateSummarized(item); err != nil {
		slog.Warn("Failed to persist summarized item", "item", item.ID, "error", err.Error())
	}
}

// mergeTags combines extracted hashtags with the oracle's topic tags,
// normalizing to a leading # and dropping duplicates.
func mergeTags(existing, proposed []string) []string {
	seen := make(map[string]bool, len(existing)+len(proposed))
	merged := make([]string, 0, len(existing)+len(proposed))
	for _, tag := range append(append([]string{}, existing...), proposed...) {
		if tag == "" {
			continue
		}
		if tag[0] != '#' {
			tag = "#" + tag
		}
		if !seen[tag] {
			seen[tag] = true
			merged = append(merged, tag)
		}
	}
	return merged
}
