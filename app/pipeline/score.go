package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// runScore refreshes engagement counts for items sent within the reaction
// window and recomputes normalized scores against the current cohort.
// Normalization is min-max per run, not a running average: the top item in
// the window always scores 1.0.
func (o *Orchestrator) runScore(ctx context.Context) error {
	since := time.Now().Add(-o.reactionWindow)
	items, err := o.outgoingRepo.GetSentSince(since)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(items) == 0 {
		return nil
	}

	counts, err := o.transport.CollectReactions(ctx)
	if err != nil {
		return fmt.Errorf("failed to collect reactions: %w", err)
	}

	maxEngagement := 0
	for i, item := range items {
		if item.NativeID != nil {
			if count, ok := counts[*item.NativeID]; ok {
				items[i].Engagement = count
			}
		}
		if items[i].Engagement > maxEngagement {
			maxEngagement = items[i].Engagement
		}
	}

	cohortMax := maxEngagement
	if cohortMax < 1 {
		cohortMax = 1
	}

	for _, item := range items {
		score := float64(item.Engagement) / float64(cohortMax)
		if err := o.outgoingRepo.UpdateEngagement(item.ID, item.Engagement, score); err != nil {
			slog.Warn("Failed to persist engagement", "outgoing", item.ID, "error", err.Error())
		}
	}

	slog.Debug("Engagement refreshed", "items", len(items), "max_engagement", maxEngagement)

	return nil
}
