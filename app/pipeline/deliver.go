package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avoronov/newsmux/app/database"
)

// runDeliver publishes every queued outgoing item with bounded parallelism.
// First-time items go out as new posts; items with a native id already go
// out as edits and keep their original send timestamp.
func (o *Orchestrator) runDeliver(ctx context.Context) error {
	items, err := o.outgoingRepo.GetByStates([]database.OutgoingState{database.OutgoingStateToSend})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(items) == 0 {
		return nil
	}

	sem := make(chan struct{}, o.deliveryLimit)
	var wg sync.WaitGroup

	for _, item := range items {
		wg.Add(1)
		go func(item database.OutgoingItem) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			o.deliverItem(ctx, item)
		}(item)
	}

	wg.Wait()

	slog.Info("Items delivered", "count", len(items))

	return nil
}

func (o *Orchestrator) deliverItem(ctx context.Context, item database.OutgoingItem) {
	var nativeID int64
	var sentAt time.Time
	var err error

	if item.NativeID != nil {
		nativeID = *item.NativeID
		err = o.transport.Edit(ctx, nativeID, item.Text)
		if item.SentAt != nil {
			sentAt = *item.SentAt
		} else {
			sentAt = time.Now()
		}
	} else {
		nativeID, err = o.transport.Create(ctx, item.Text)
		sentAt = time.Now()
	}

	if err != nil {
		if errors.Is(err, ErrTransportTransient) || errors.Is(err, context.Canceled) {
			// Stays to_send and is retried on the next tick.
			slog.Warn("Delivery postponed", "outgoing", item.ID, "error", err.Error())
			return
		}
		slog.Error("Delivery failed", "outgoing", item.ID, "error", err.Error())
		if markErr := o.outgoingRepo.MarkSendError(item.ID, err.Error()); markErr != nil {
			slog.Warn("Failed to mark delivery error", "outgoing", item.ID, "error", markErr.Error())
		}
		return
	}

	if err := o.outgoingRepo.MarkSent(item.ID, nativeID, sentAt); err != nil {
		slog.Warn("Failed to mark item as sent", "outgoing", item.ID, "error", err.Error())
	}
}
