package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

var _ OutgoingRepo = (*OutgoingRepository)(nil)

// OutgoingRepository handles database operations for outgoing items
type OutgoingRepository struct {
	db *DB
}

func NewOutgoingRepository(db *DB) *OutgoingRepository {
	return &OutgoingRepository{db: db}
}

const outgoingColumns = `id, native_id, text, ingested_id, message_dttm, state,
	sent_at, error, engagement, normalized_score, created_at, updated_at`

func (r *OutgoingRepository) scanItem(scanner interface{ Scan(...any) error }) (OutgoingItem, error) {
	var item OutgoingItem
	var state string
	var nativeID sql.NullInt64
	var sentAt sql.NullTime

	err := scanner.Scan(
		&item.ID, &nativeID, &item.Text, &item.IngestedID, &item.MessageDttm,
		&state, &sentAt, &item.Error, &item.Engagement, &item.NormalizedScore,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return item, fmt.Errorf("failed to scan outgoing item: %w", err)
	}

	item.State, err = ParseOutgoingState(state)
	if err != nil {
		return item, err
	}
	if nativeID.Valid {
		item.NativeID = &nativeID.Int64
	}
	if sentAt.Valid {
		t := sentAt.Time
		item.SentAt = &t
	}

	return item, nil
}

func (r *OutgoingRepository) Insert(item OutgoingItem) error {
	_, err := r.db.Exec(`
		INSERT INTO outgoing_items (id, text, ingested_id, message_dttm, state)
		VALUES (?, ?, ?, ?, ?)
	`, item.ID, item.Text, item.IngestedID, item.MessageDttm.UTC(), string(item.State))
	if err != nil {
		return fmt.Errorf("failed to insert outgoing item: %w", err)
	}

	return nil
}

func (r *OutgoingRepository) GetByStates(states []OutgoingState) ([]OutgoingItem, error) {
	if len(states) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(states))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(states))
	for _, state := range states {
		args = append(args, string(state))
	}

	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT %s FROM outgoing_items
		WHERE state IN (%s)
		ORDER BY message_dttm ASC
	`, outgoingColumns, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get outgoing items by state: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// GetForDedup returns outgoing items in any state whose original content
// timestamp falls inside the dedup window.
func (r *OutgoingRepository) GetForDedup(since time.Time) ([]OutgoingItem, error) {
	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT %s FROM outgoing_items
		WHERE message_dttm >= ?
		ORDER BY message_dttm ASC
	`, outgoingColumns), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get outgoing items for dedup: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *OutgoingRepository) GetSentSince(since time.Time) ([]OutgoingItem, error) {
	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT %s FROM outgoing_items
		WHERE state = ? AND sent_at IS NOT NULL AND sent_at >= ?
		ORDER BY sent_at ASC
	`, outgoingColumns), string(OutgoingStateSent), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get sent items: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// TopByScore returns the highest-scored sent items in [from, to), ties
// broken by most recent sent_at first.
func (r *OutgoingRepository) TopByScore(from, to time.Time, limit int) ([]OutgoingItem, error) {
	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT %s FROM outgoing_items
		WHERE state = ? AND sent_at IS NOT NULL AND sent_at >= ? AND sent_at < ?
		ORDER BY normalized_score DESC, sent_at DESC
		LIMIT ?
	`, outgoingColumns), string(OutgoingStateSent), from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top items by score: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *OutgoingRepository) CountByState() (map[OutgoingState]int, error) {
	rows, err := r.db.Query(`SELECT state, COUNT(*) FROM outgoing_items GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count outgoing items by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[OutgoingState]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", err)
		}
		counts[OutgoingState(state)] = count
	}

	return counts, rows.Err()
}

func (r *OutgoingRepository) UpdateText(id string, text string) error {
	_, err := r.db.Exec(`
		UPDATE outgoing_items
		SET text = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, text, id)
	if err != nil {
		return fmt.Errorf("failed to update outgoing text: %w", err)
	}

	return nil
}

// SetState transitions an item between two explicit states. The guard on
// the current state keeps illegal transitions out of the database.
func (r *OutgoingRepository) SetState(id string, from, to OutgoingState) error {
	_, err := r.db.Exec(`
		UPDATE outgoing_items
		SET state = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND state = ?
	`, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to set outgoing state: %w", err)
	}

	return nil
}

// MarkSent commits a successful delivery: to_send -> sent.
func (r *OutgoingRepository) MarkSent(id string, nativeID int64, sentAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE outgoing_items
		SET state = ?, native_id = ?, sent_at = ?, error = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND state = ?
	`, string(OutgoingStateSent), nativeID, sentAt.UTC(), id, string(OutgoingStateToSend))
	if err != nil {
		return fmt.Errorf("failed to mark item sent: %w", err)
	}

	return nil
}

// MarkSendError commits a failed delivery: to_send -> error.
func (r *OutgoingRepository) MarkSendError(id string, errMsg string) error {
	_, err := r.db.Exec(`
		UPDATE outgoing_items
		SET state = ?, error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND state = ?
	`, string(OutgoingStateError), errMsg, id, string(OutgoingStateToSend))
	if err != nil {
		return fmt.Errorf("failed to mark item send error: %w", err)
	}

	return nil
}

func (r *OutgoingRepository) UpdateEngagement(id string, engagement int, normalizedScore float64) error {
	_, err := r.db.Exec(`
		UPDATE outgoing_items
		SET engagement = ?, normalized_score = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, engagement, normalizedScore, id)
	if err != nil {
		return fmt.Errorf("failed to update engagement: %w", err)
	}

	return nil
}

func (r *OutgoingRepository) collect(rows *sql.Rows) ([]OutgoingItem, error) {
	var items []OutgoingItem
	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}
