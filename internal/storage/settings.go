package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// --- Availability flag ---

// ReadFlag returns the availability flag, or nil when it has never been written.
func (s *Store) ReadFlag(ctx context.Context) (*AvailabilityFlag, error) {
	var enabled int
	var updatedAt string
	err := s.db.QueryRowContext(ctx, `SELECT enabled, updated_at FROM ai_settings WHERE id = 1`).Scan(&enabled, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &AvailabilityFlag{Enabled: enabled != 0, UpdatedAt: t}, nil
}

// EnsureFlag creates the flag with defaultEnabled if it does not exist yet and
// returns the stored value. Concurrent callers race benignly: the insert is
// a no-op for every caller but the first.
func (s *Store) EnsureFlag(ctx context.Context, defaultEnabled bool) (AvailabilityFlag, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_settings (id, enabled, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		boolToInt(defaultEnabled), formatTime(time.Now()),
	)
	if err != nil {
		return AvailabilityFlag{}, fmt.Errorf("creating availability flag: %w", err)
	}
	f, err := s.ReadFlag(ctx)
	if err != nil {
		return AvailabilityFlag{}, err
	}
	if f == nil {
		return AvailabilityFlag{}, ErrNotFound
	}
	return *f, nil
}

// WriteFlag overwrites the flag and touches its timestamp.
func (s *Store) WriteFlag(ctx context.Context, enabled bool) (AvailabilityFlag, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_settings (id, enabled, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at`,
		boolToInt(enabled), formatTime(now),
	)
	if err != nil {
		return AvailabilityFlag{}, fmt.Errorf("writing availability flag: %w", err)
	}
	return AvailabilityFlag{Enabled: enabled, UpdatedAt: now}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
