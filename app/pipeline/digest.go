package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const digestDateLayout = "2006-01-02"

// runDigest publishes the daily top-items digest on the first tick after a
// calendar-day boundary. Idempotent per day: the date of the last delivered
// digest is persisted, so neither a second tick nor a restart sends twice.
func (o *Orchestrator) runDigest(ctx context.Context) error {
	now := time.Now()
	today := now.Format(digestDateLayout)

	last, err := o.settingsRepo.GetSetting(lastDigestDateKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if last == today {
		return nil
	}

	since := now.AddDate(0, 0, -1)
	if lastDate, parseErr := time.ParseInLocation(digestDateLayout, last, time.Local); parseErr == nil {
		since = lastDate
	}

	items, err := o.outgoingRepo.TopByScore(since, now, o.digestSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if len(items) == 0 {
		// Nothing to rank today; record the date so the check stays cheap.
		slog.Debug("No items for digest", "since", since.Format(digestDateLayout))
		return o.recordDigestDate(today)
	}

	text, err := o.formatter.RenderDigest(now, items)
	if err != nil {
		return err
	}

	if _, err := o.transport.SendDigest(ctx, text); err != nil {
		// Not recorded: the next tick retries the digest.
		return fmt.Errorf("failed to send digest: %w", err)
	}

	slog.Info("Digest delivered", "items", len(items), "date", today)

	return o.recordDigestDate(today)
}

func (o *Orchestrator) recordDigestDate(date string) error {
	if err := o.settingsRepo.SetSetting(lastDigestDateKey, date); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
