package storage

import (
	"context"
	"fmt"
	"time"
)

// --- Memory turns ---

// AppendTurn records one completed exchange for userID.
func (s *Store) AppendTurn(ctx context.Context, userID, message, response string) (MemoryTurn, error) {
	now := time.Now().UTC()
	turn := MemoryTurn{
		ID:        s.newTurnID(now),
		UserID:    userID,
		Message:   message,
		Response:  response,
		CreatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_turns (id, user_id, message, response, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		turn.ID, turn.UserID, turn.Message, turn.Response, formatTime(turn.CreatedAt),
	)
	if err != nil {
		return MemoryTurn{}, fmt.Errorf("inserting turn: %w", err)
	}
	return turn, nil
}

// ListRecentTurns returns up to limit turns for userID, newest first.
func (s *Store) ListRecentTurns(ctx context.Context, userID string, limit int) ([]MemoryTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, message, response, created_at
		FROM memory_turns WHERE user_id = ?
		ORDER BY id DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []MemoryTurn
	for rows.Next() {
		var t MemoryTurn
		var createdAt string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Message, &t.Response, &createdAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// CountTurns returns how many turns are stored for userID.
func (s *Store) CountTurns(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_turns WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

// PruneTurns deletes all but the keep most recent turns for userID and
// returns the number of rows removed.
func (s *Store) PruneTurns(ctx context.Context, userID string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM memory_turns
		WHERE user_id = ? AND id NOT IN (
			SELECT id FROM memory_turns WHERE user_id = ? ORDER BY id DESC LIMIT ?
		)`, userID, userID, keep,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
