package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NormalizeFaqText trims s and collapses internal whitespace runs to a
// single space.
func NormalizeFaqText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// --- FAQ entries ---

// AddFaqEntry stores a new FAQ entry after normalizing question and answer.
func (s *Store) AddFaqEntry(ctx context.Context, question, answer string, source FaqSource) (FaqEntry, error) {
	q := NormalizeFaqText(question)
	a := NormalizeFaqText(answer)
	if q == "" || a == "" {
		return FaqEntry{}, fmt.Errorf("%w: question and answer are required", ErrInvalidFaq)
	}
	if !source.Valid() {
		return FaqEntry{}, fmt.Errorf("%w: unknown source %q", ErrInvalidFaq, source)
	}

	entry := FaqEntry{
		ID:        uuid.New().String(),
		Question:  q,
		Answer:    a,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO faq_entries (id, question, answer, source, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.ID, entry.Question, entry.Answer, string(entry.Source), formatTime(entry.CreatedAt),
	)
	if err != nil {
		return FaqEntry{}, fmt.Errorf("inserting faq entry: %w", err)
	}
	return entry, nil
}

func (s *Store) GetFaqEntry(ctx context.Context, id string) (FaqEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, question, answer, source, created_at
		FROM faq_entries WHERE id = ?`, id)
	e, err := scanFaqEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return FaqEntry{}, ErrNotFound
	}
	return e, err
}

// ListFaqEntries returns every FAQ entry, oldest first.
func (s *Store) ListFaqEntries(ctx context.Context) ([]FaqEntry, error) {
	return s.queryFaqEntries(ctx, `
		SELECT id, question, answer, source, created_at
		FROM faq_entries ORDER BY created_at ASC, rowid ASC`)
}

// ListFaqEntriesBySource returns the FAQ entries tagged source, oldest first.
func (s *Store) ListFaqEntriesBySource(ctx context.Context, source FaqSource) ([]FaqEntry, error) {
	return s.queryFaqEntries(ctx, `
		SELECT id, question, answer, source, created_at
		FROM faq_entries WHERE source = ? ORDER BY created_at ASC, rowid ASC`, string(source))
}

func (s *Store) DeleteFaqEntry(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM faq_entries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryFaqEntries(ctx context.Context, query string, args ...any) ([]FaqEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []FaqEntry
	for rows.Next() {
		e, err := scanFaqEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFaqEntry(row scanner) (FaqEntry, error) {
	var e FaqEntry
	var source, createdAt string
	if err := row.Scan(&e.ID, &e.Question, &e.Answer, &source, &createdAt); err != nil {
		return FaqEntry{}, err
	}
	e.Source = FaqSource(source)
	t, err := parseTime(createdAt)
	if err != nil {
		return FaqEntry{}, fmt.Errorf("parsing created_at: %w", err)
	}
	e.CreatedAt = t
	return e, nil
}
