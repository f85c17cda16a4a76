package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go-offline-proxy/internal/interfaces"
	"go-offline-proxy/internal/models"
)

// Ensure Store implements interfaces.PartitionStore
var _ interfaces.PartitionStore = (*Store)(nil)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Open creates the partition if it does not exist yet
func (s *Store) Open(ctx context.Context, partition string) error {
	return openPartition(ctx, s.sqlDB, partition)
}

func openPartition(ctx context.Context, db execer, partition string) error {
	if partition == "" {
		return fmt.Errorf("partition name is required")
	}
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO partitions (name, created_at) VALUES (?, ?)`,
		partition, time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("open partition %s: %w", partition, err)
	}
	return nil
}

// Match returns the snapshot stored for key in partition
func (s *Store) Match(ctx context.Context, partition, key string) (*models.Snapshot, bool, error) {
	var (
		snap     models.Snapshot
		header   string
		storedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT method, url, status, header, body, stored_at
FROM snapshots
WHERE partition = ? AND request_key = ?
`, partition, key).Scan(&snap.Method, &snap.URL, &snap.Status, &header, &snap.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("match %s in %s: %w", key, partition, err)
	}

	snap.Header = http.Header{}
	if err := json.Unmarshal([]byte(header), &snap.Header); err != nil {
		return nil, false, fmt.Errorf("decode header of %s in %s: %w", key, partition, err)
	}
	snap.StoredAt = time.UnixMilli(storedAt).UTC()
	return &snap, true, nil
}

// Put stores snap under key, creating the partition when needed
func (s *Store) Put(ctx context.Context, partition, key string, snap *models.Snapshot) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put: %w", err)
	}
	if err := putSnapshot(ctx, tx, partition, key, snap); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put: %w", err)
	}
	return nil
}

// PutAll writes every snapshot in one transaction
func (s *Store) PutAll(ctx context.Context, partition string, snaps map[string]*models.Snapshot) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put all: %w", err)
	}
	if err := openPartition(ctx, tx, partition); err != nil {
		_ = tx.Rollback()
		return err
	}
	for key, snap := range snaps {
		if err := putSnapshot(ctx, tx, partition, key, snap); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put all: %w", err)
	}
	return nil
}

func putSnapshot(ctx context.Context, db execer, partition, key string, snap *models.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot for %s is nil", key)
	}
	if err := openPartition(ctx, db, partition); err != nil {
		return err
	}

	header, err := json.Marshal(snap.Header)
	if err != nil {
		return fmt.Errorf("encode header of %s: %w", key, err)
	}
	storedAt := snap.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now()
	}

	if _, err := db.ExecContext(ctx, `
INSERT INTO snapshots (partition, request_key, method, url, status, header, body, stored_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (partition, request_key) DO UPDATE SET
	method = excluded.method,
	url = excluded.url,
	status = excluded.status,
	header = excluded.header,
	body = excluded.body,
	stored_at = excluded.stored_at
`,
		partition, key, snap.Method, snap.URL, snap.Status, string(header), snap.Body, storedAt.UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("put %s in %s: %w", key, partition, err)
	}
	return nil
}

// Delete removes key from partition
func (s *Store) Delete(ctx context.Context, partition, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM snapshots WHERE partition = ? AND request_key = ?`, partition, key,
	); err != nil {
		return fmt.Errorf("delete %s from %s: %w", key, partition, err)
	}
	return nil
}

// Keys lists the request keys stored in partition
func (s *Store) Keys(ctx context.Context, partition string) ([]string, error) {
	return s.queryStrings(ctx,
		`SELECT request_key FROM snapshots WHERE partition = ? ORDER BY request_key`, partition)
}

// Partitions lists every partition name
func (s *Store) Partitions(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT name FROM partitions ORDER BY name`)
}

// DeletePartition removes a partition and its snapshots. It reports whether the partition existed.
func (s *Store) DeletePartition(ctx context.Context, partition string) (bool, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete partition: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE partition = ?`, partition); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("delete snapshots of %s: %w", partition, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM partitions WHERE name = ?`, partition)
	if err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("delete partition %s: %w", partition, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete partition: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
