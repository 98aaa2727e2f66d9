package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var incrementLookupSQL = map[Dialect]string{
	SQLite: `INSERT INTO lookups (word, count, first_seen_at, last_seen_at) VALUES (?, 1, ?, ?)
		ON CONFLICT(word) DO UPDATE SET count = lookups.count + 1, last_seen_at = excluded.last_seen_at`,
	MySQL: `INSERT INTO lookups (word, count, first_seen_at, last_seen_at) VALUES (?, 1, ?, ?)
		ON DUPLICATE KEY UPDATE count = count + 1, last_seen_at = VALUES(last_seen_at)`,
}

// IncrementLookup bumps the hover count of word, creating the row on first use.
func IncrementLookup(ctx context.Context, db ContextExecutor, d Dialect, word string, at time.Time) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return fmt.Errorf("word must be non-empty")
	}
	query, ok := incrementLookupSQL[d]
	if !ok {
		return fmt.Errorf("unsupported dialect %s", d)
	}
	at = at.UTC()
	if _, err := db.ExecContext(ctx, query, word, at, at); err != nil {
		return fmt.Errorf("increment lookup %q: %w", word, err)
	}
	return nil
}

// GetLookup returns the lookup record of word. A word that was never looked up
// yields sql.ErrNoRows.
func GetLookup(ctx context.Context, db ContextExecutor, word string) (Lookup, error) {
	var l Lookup
	err := db.QueryRowContext(ctx,
		`SELECT word, count, first_seen_at, last_seen_at FROM lookups WHERE word = ?`, word).
		Scan(&l.Word, &l.Count, &l.FirstSeenAt, &l.LastSeenAt)
	if err != nil {
		return Lookup{}, err
	}
	return l, nil
}

// GetLookupCount returns the hover count of word, 0 if never looked up.
func GetLookupCount(ctx context.Context, db ContextExecutor, word string) (int64, error) {
	l, err := GetLookup(ctx, db, word)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return l.Count, nil
}

// TopLookups returns the most looked up words, ties broken by word.
func TopLookups(ctx context.Context, db ContextExecutor, limit int) ([]Lookup, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	rows, err := db.QueryContext(ctx,
		`SELECT word, count, first_seen_at, last_seen_at FROM lookups ORDER BY count DESC, word ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lookup
	for rows.Next() {
		var l Lookup
		if err := rows.Scan(&l.Word, &l.Count, &l.FirstSeenAt, &l.LastSeenAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
