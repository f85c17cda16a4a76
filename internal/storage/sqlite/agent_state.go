package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ActiveVersion returns the last activated agent version, empty when none was recorded
func (s *Store) ActiveVersion(ctx context.Context) (string, error) {
	var version string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT active_version FROM agent_state WHERE id = 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load active version: %w", err)
	}
	return version, nil
}

// SaveActiveVersion records version as the activated agent version
func (s *Store) SaveActiveVersion(ctx context.Context, version string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO agent_state (id, active_version, updated_at) VALUES (1, ?, ?)
ON CONFLICT (id) DO UPDATE SET active_version = excluded.active_version, updated_at = excluded.updated_at
`, version, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("save active version %s: %w", version, err)
	}
	return nil
}
