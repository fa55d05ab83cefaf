package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

var _ IngestedRepo = (*IngestedRepository)(nil)

// IngestedRepository handles database operations for ingested items
type IngestedRepository struct {
	db *DB
}

func NewIngestedRepository(db *DB) *IngestedRepository {
	return &IngestedRepository{db: db}
}

const ingestedColumns = `id, channel_id, source_guid, author, public_link, raw_text, text,
	posted_at, urls, summary, tags, headline, state, filtered, filter_reason,
	error, outgoing_id, created_at`

func (r *IngestedRepository) scanItem(scanner interface{ Scan(...any) error }) (IngestedItem, error) {
	var item IngestedItem
	var state, urlsJSON, tagsJSON string
	var outgoingID sql.NullString

	err := scanner.Scan(
		&item.ID, &item.ChannelID, &item.SourceGUID, &item.Author, &item.PublicLink,
		&item.RawText, &item.Text, &item.PostedAt, &urlsJSON, &item.Summary,
		&tagsJSON, &item.Headline, &state, &item.Filtered, &item.FilterReason,
		&item.Error, &outgoingID, &item.CreatedAt,
	)
	if err != nil {
		return item, fmt.Errorf("failed to scan ingested item: %w", err)
	}

	item.State, err = ParseIngestedState(state)
	if err != nil {
		return item, err
	}
	if outgoingID.Valid {
		item.OutgoingID = &outgoingID.String
	}
	if err := json.Unmarshal([]byte(urlsJSON), &item.URLs); err != nil {
		return item, fmt.Errorf("failed to decode urls: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &item.Tags); err != nil {
		return item, fmt.Errorf("failed to decode tags: %w", err)
	}

	return item, nil
}

// ExistingKeys returns which of the given source GUIDs are already stored
// for the channel.
func (r *IngestedRepository) ExistingKeys(channelID string, guids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(guids) == 0 {
		return existing, nil
	}

	placeholders := strings.Repeat("?,", len(guids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(guids)+1)
	args = append(args, channelID)
	for _, guid := range guids {
		args = append(args, guid)
	}

	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT source_guid FROM ingested_items
		WHERE channel_id = ? AND source_guid IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, fmt.Errorf("failed to scan guid: %w", err)
		}
		existing[guid] = true
	}

	return existing, rows.Err()
}

// InsertBatch stores new ingested items in a single transaction.
func (r *IngestedRepository) InsertBatch(items []IngestedItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO ingested_items (
			id, channel_id, source_guid, author, public_link, raw_text, text,
			posted_at, urls, summary, tags, headline, state, filtered, filter_reason, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (channel_id, source_guid) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		urls, tags, err := encodeStringSlices(item.URLs, item.Tags)
		if err != nil {
			return err
		}
		_, err = stmt.Exec(
			item.ID, item.ChannelID, item.SourceGUID, item.Author, item.PublicLink,
			item.RawText, item.Text, item.PostedAt.UTC(), urls, item.Summary, tags,
			item.Headline, string(item.State), item.Filtered, item.FilterReason, item.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to insert ingested item %s: %w", item.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert batch: %w", err)
	}

	return nil
}

// GetByState returns non-filtered items in the given state, oldest post first.
func (r *IngestedRepository) GetByState(state IngestedState, limit int) ([]IngestedItem, error) {
	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT %s FROM ingested_items
		WHERE state = ? AND filtered = 0
		ORDER BY posted_at ASC
		LIMIT ?
	`, ingestedColumns), string(state), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items by state: %w", err)
	}
	defer rows.Close()

	var items []IngestedItem
	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *IngestedRepository) GetByIDs(ids []string) (map[string]IngestedItem, error) {
	result := make(map[string]IngestedItem)
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT %s FROM ingested_items WHERE id IN (%s)
	`, ingestedColumns, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get items by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, err
		}
		result[item.ID] = item
	}

	return result, rows.Err()
}

// GetByOutgoingIDs returns, per outgoing item, all contributing ingested
// items ordered by original post time ascending.
func (r *IngestedRepository) GetByOutgoingIDs(outgoingIDs []string) (map[string][]IngestedItem, error) {
	result := make(map[string][]IngestedItem)
	if len(outgoingIDs) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(outgoingIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(outgoingIDs))
	for _, id := range outgoingIDs {
		args = append(args, id)
	}

	rows, err := r.db.Query(fmt.Sprintf(`
		SELECT %s FROM ingested_items
		WHERE outgoing_id IN (%s)
		ORDER BY posted_at ASC
	`, ingestedColumns, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get items by outgoing ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := r.scanItem(rows)
		if err != nil {
			return nil, err
		}
		if item.OutgoingID != nil {
			result[*item.OutgoingID] = append(result[*item.OutgoingID], item)
		}
	}

	return result, rows.Err()
}

func (r *IngestedRepository) CountByState() (map[IngestedState]int, error) {
	rows, err := r.db.Query(`SELECT state, COUNT(*) FROM ingested_items GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count items by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[IngestedState]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", err)
		}
		counts[IngestedState(state)] = count
	}

	return counts, rows.Err()
}

// UpdateCleaned commits the clean-stage result: ingested -> cleaned, or a
// permanent filter skip. The state guard makes the commit atomic per item.
func (r *IngestedRepository) UpdateCleaned(item IngestedItem) error {
	urls, tags, err := encodeStringSlices(item.URLs, item.Tags)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE ingested_items
		SET text = ?, urls = ?, tags = ?, state = ?, filtered = ?, filter_reason = ?
		WHERE id = ? AND state = ?
	`, item.Text, urls, tags, string(IngestedStateCleaned), item.Filtered,
		item.FilterReason, item.ID, string(IngestedStateIngested))
	if err != nil {
		return fmt.Errorf("failed to update cleaned item: %w", err)
	}

	return nil
}

// UpdateSummarized commits the summarize-stage result: cleaned -> summarized.
func (r *IngestedRepository) UpdateSummarized(item IngestedItem) error {
	_, tags, err := encodeStringSlices(nil, item.Tags)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		UPDATE ingested_items
		SET summary = ?, headline = ?, tags = ?, state = ?, error = ''
		WHERE id = ? AND state = ?
	`, item.Summary, item.Headline, tags, string(IngestedStateSummarized),
		item.ID, string(IngestedStateCleaned))
	if err != nil {
		return fmt.Errorf("failed to update summarized item: %w", err)
	}

	return nil
}

// MarkError records an oracle failure: cleaned -> error. The item stays out
// of the pipeline until explicitly retried.
func (r *IngestedRepository) MarkError(id string, errMsg string) error {
	_, err := r.db.Exec(`
		UPDATE ingested_items
		SET state = ?, error = ?
		WHERE id = ? AND state = ?
	`, string(IngestedStateError), errMsg, id, string(IngestedStateCleaned))
	if err != nil {
		return fmt.Errorf("failed to mark item error: %w", err)
	}

	return nil
}

// LinkToOutgoing commits the resolve-stage result: summarized ->
// deduplicated|linked, attaching the outgoing item id.
func (r *IngestedRepository) LinkToOutgoing(id string, outgoingID string, state IngestedState) error {
	if state != IngestedStateDeduplicated && state != IngestedStateLinked {
		return fmt.Errorf("invalid resolution state: %q", state)
	}

	_, err := r.db.Exec(`
		UPDATE ingested_items
		SET outgoing_id = ?, state = ?
		WHERE id = ? AND state = ?
	`, outgoingID, string(state), id, string(IngestedStateSummarized))
	if err != nil {
		return fmt.Errorf("failed to link item to outgoing: %w", err)
	}

	return nil
}

// RetryError re-enters an errored item into the pipeline: error -> cleaned.
func (r *IngestedRepository) RetryError(id string) error {
	res, err := r.db.Exec(`
		UPDATE ingested_items
		SET state = ?, error = ''
		WHERE id = ? AND state = ?
	`, string(IngestedStateCleaned), id, string(IngestedStateError))
	if err != nil {
		return fmt.Errorf("failed to retry item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %s is not in error state", id)
	}

	return nil
}

func encodeStringSlices(urls, tags []string) (string, string, error) {
	if urls == nil {
		urls = []string{}
	}
	if tags == nil {
		tags = []string{}
	}

	urlsJSON, err := json.Marshal(urls)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode urls: %w", err)
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode tags: %w", err)
	}

	return string(urlsJSON), string(tagsJSON), nil
}
