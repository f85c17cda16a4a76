package sqlite

import (
	"context"
	"fmt"
	"time"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/models"
)

// Ensure Store implements interfaces.QueueStore
var _ interfaces.QueueStore = (*Store)(nil)

// Append adds m at the tail of the queue
func (s *Store) Append(ctx context.Context, m *models.QueuedMutation) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("mutation id is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO offline_queue (seq, id, key, payload, enqueued_at)
VALUES ((SELECT COALESCE(MAX(seq), 0) + 1 FROM offline_queue), ?, ?, ?, ?)
`, m.ID, m.Key, string(m.Payload), m.EnqueuedAt); err != nil {
		return fmt.Errorf("append mutation %s: %w", m.ID, err)
	}
	return nil
}

// List returns queued mutations in delivery order
func (s *Store) List(ctx context.Context) ([]*models.QueuedMutation, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, key, payload, enqueued_at FROM offline_queue ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list mutations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.QueuedMutation
	for rows.Next() {
		var (
			m       models.QueuedMutation
			payload string
		)
		if err := rows.Scan(&m.ID, &m.Key, &payload, &m.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("scan mutation: %w", err)
		}
		m.Payload = []byte(payload)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// Remove deletes a delivered mutation
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM offline_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove mutation %s: %w", id, err)
	}
	return nil
}

// MoveToTail re-queues a mutation behind every other entry
func (s *Store) MoveToTail(ctx context.Context, id string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `
UPDATE offline_queue
SET seq = (SELECT MAX(seq) + 1 FROM offline_queue)
WHERE id = ?
`, id); err != nil {
		return fmt.Errorf("requeue mutation %s: %w", id, err)
	}
	return nil
}

// PruneMutations deletes mutations enqueued before olderThan
func (s *Store) PruneMutations(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM offline_queue WHERE enqueued_at < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune mutations: %w", err)
	}
	return res.RowsAffected()
}

// SaveRecord upserts an offline data record
func (s *Store) SaveRecord(ctx context.Context, rec *models.OfflineRecord) error {
	if rec == nil || rec.Key == "" {
		return fmt.Errorf("record key is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO offline_data (key, data, saved_at) VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at
`, rec.Key, string(rec.Data), rec.SavedAt); err != nil {
		return fmt.Errorf("save record %s: %w", rec.Key, err)
	}
	return nil
}

// ListRecords returns every offline data record
func (s *Store) ListRecords(ctx context.Context) ([]*models.OfflineRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT key, data, saved_at FROM offline_data ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.OfflineRecord
	for rows.Next() {
		var (
			rec  models.OfflineRecord
			data string
		)
		if err := rows.Scan(&rec.Key, &data, &rec.SavedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Data = []byte(data)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// PruneRecords deletes offline data saved before olderThan
func (s *Store) PruneRecords(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM offline_data WHERE saved_at < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune records: %w", err)
	}
	return res.RowsAffected()
}
