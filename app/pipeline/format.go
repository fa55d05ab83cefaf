package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avoronov/newsmux/app/database"
)

// runFormat renders text for every outgoing item awaiting its first send or
// a re-send after a merge, then queues it for delivery.
func (o *Orchestrator) runFormat(ctx context.Context) error {
	items, err := o.outgoingRepo.GetByStates([]database.OutgoingState{
		database.OutgoingStateNew,
		database.OutgoingStateToUpdate,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	contributors, err := o.ingestedRepo.GetByOutgoingIDs(ids)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	formatted := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		text, err := o.formatter.Render(ctx, contributors[item.ID])
		if err != nil {
			slog.Warn("Failed to render outgoing item", "outgoing", item.ID, "error", err.Error())
			continue
		}

		if err := o.outgoingRepo.UpdateText(item.ID, text); err != nil {
			slog.Warn("Failed to persist rendered text", "outgoing", item.ID, "error", err.Error())
			continue
		}
		if err := o.outgoingRepo.SetState(item.ID, item.State, database.OutgoingStateToSend); err != nil {
			slog.Warn("Failed to queue outgoing item", "outgoing", item.ID, "error", err.Error())
			continue
		}
		formatted++
	}

	slog.Info("Items formatted", "count", formatted)

	return nil
}
