package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avoronov/newsmux/app/database"
	"github.com/avoronov/newsmux/app/similarity"
)

// runResolve decides link-or-new for every summarized item. Items are
// processed serially, oldest original post first, so in-batch duplicate
// outcomes are deterministic: the oldest post founds the outgoing item and
// later posts merge into it.
func (o *Orchestrator) runResolve(ctx context.Context) error {
	items, err := o.ingestedRepo.GetByState(database.IngestedStateSummarized, stageBatchSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(items) == 0 {
		return nil
	}

	window, err := o.loadResolutionWindow(time.Now().Add(-o.dedupWindow))
	if err != nil {
		return err
	}

	linked, merged := 0, 0
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resolution, err := o.resolver.Resolve(ctx, item, window.representative)
		if err != nil {
			// Item stays summarized and is retried on the next tick.
			slog.Warn("Duplicate resolution postponed", "item", item.ID, "error", err.Error())
			continue
		}

		if resolution.Duplicate {
			if err := o.mergeDuplicate(item, resolution.OutgoingID, window); err != nil {
				slog.Warn("Failed to merge duplicate", "item", item.ID, "outgoing", resolution.OutgoingID, "error", err.Error())
				continue
			}
			merged++
		} else {
			if err := o.promoteUnique(item, window); err != nil {
				slog.Warn("Failed to promote item", "item", item.ID, "error", err.Error())
				continue
			}
			linked++
		}
	}

	slog.Info("Items resolved", "unique", linked, "duplicates", merged)

	return nil
}

// resolutionWindow is the tick-scoped view of recent outgoing items the
// resolver matches against.
type resolutionWindow struct {
	byID map[string]database.OutgoingItem
	reps map[string]string
}

func (w *resolutionWindow) representative(outgoingID string) string {
	return w.reps[outgoingID]
}

// loadResolutionWindow rebuilds the similarity index from outgoing items
// inside the dedup window. Representative text comes from the founding
// contributor's headline and summary.
func (o *Orchestrator) loadResolutionWindow(since time.Time) (*resolutionWindow, error) {
	outgoing, err := o.outgoingRepo.GetForDedup(since)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	window := &resolutionWindow{
		byID: make(map[string]database.OutgoingItem, len(outgoing)),
		reps: make(map[string]string, len(outgoing)),
	}

	ids := make([]string, 0, len(outgoing))
	for _, out := range outgoing {
		window.byID[out.ID] = out
		ids = append(ids, out.ID)
	}

	contributors, err := o.ingestedRepo.GetByOutgoingIDs(ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	docs := make([]similarity.Document, 0, len(outgoing))
	for _, out := range outgoing {
		sources := contributors[out.ID]
		if len(sources) == 0 {
			continue
		}
		rep := itemRepresentative(sources[0])
		window.reps[out.ID] = rep
		docs = append(docs, similarity.Document{ID: out.ID, Text: rep, PostedAt: out.MessageDttm})
	}
	o.resolver.Reload(docs)

	return window, nil
}

func (o *Orchestrator) mergeDuplicate(item database.IngestedItem, outgoingID string, window *resolutionWindow) error {
	if err := o.ingestedRepo.LinkToOutgoing(item.ID, outgoingID, database.IngestedStateDeduplicated); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// A merged source changes the rendered text, so an already published
	// item goes back through format and delivery as an edit.
	target, ok := window.byID[outgoingID]
	if ok && target.State == database.OutgoingStateSent {
		if err := o.outgoingRepo.SetState(outgoingID, database.OutgoingStateSent, database.OutgoingStateToUpdate); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		target.State = database.OutgoingStateToUpdate
		window.byID[outgoingID] = target
	}

	return nil
}

func (o *Orchestrator) promoteUnique(item database.IngestedItem, window *resolutionWindow) error {
	out := database.OutgoingItem{
		ID:          uuid.New().String(),
		IngestedID:  item.ID,
		MessageDttm: item.PostedAt,
		State:       database.OutgoingStateNew,
	}
	if err := o.outgoingRepo.Insert(out); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := o.ingestedRepo.LinkToOutgoing(item.ID, out.ID, database.IngestedStateLinked); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	rep := itemRepresentative(item)
	window.byID[out.ID] = out
	window.reps[out.ID] = rep
	o.resolver.Admit(similarity.Document{ID: out.ID, Text: rep, PostedAt: item.PostedAt})

	return nil
}
