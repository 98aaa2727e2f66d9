// Package stats records how often each resolved word is looked up.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/japaniel/hoverdict/pkg/db"
	"github.com/japaniel/hoverdict/pkg/logging"
)

// Lookup is re-exported so callers need not import the db package.
type Lookup = db.Lookup

// Store persists lookup frequencies keyed by the resolved headword.
type Store interface {
	Record(ctx context.Context, word string) error
	Count(ctx context.Context, word string) (int64, error)
	Top(ctx context.Context, limit int) ([]Lookup, error)
}

// SQLStore is a Store backed by the lookups table.
type SQLStore struct {
	DB      *sql.DB
	Dialect db.Dialect
	// Now is overridable for tests.
	Now func() time.Time
}

// NewSQLStore wraps an open connection whose schema has been migrated.
func NewSQLStore(conn *sql.DB, d db.Dialect) *SQLStore {
	return &SQLStore{DB: conn, Dialect: d, Now: time.Now}
}

// OpenSQLite opens (creating if needed) a SQLite stats database at path.
func OpenSQLite(path string) (*SQLStore, error) {
	conn, err := db.Open(db.SQLite, path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn, db.SQLite); err != nil {
		conn.Close()
		return nil, err
	}
	return NewSQLStore(conn, db.SQLite), nil
}

// OpenMySQL connects to MySQL and ensures the lookups table exists.
func OpenMySQL(ctx context.Context, cfg *mysql.Config) (*SQLStore, error) {
	c := cfg.Clone()
	c.ParseTime = true
	conn, err := db.Open(db.MySQL, c.FormatDSN())
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect %s: %w", c.Addr, err)
	}
	if err := db.Migrate(conn, db.MySQL); err != nil {
		conn.Close()
		return nil, err
	}
	return NewSQLStore(conn, db.MySQL), nil
}

func (s *SQLStore) Record(ctx context.Context, word string) error {
	return db.IncrementLookup(ctx, s.DB, s.Dialect, word, s.Now())
}

func (s *SQLStore) Count(ctx context.Context, word string) (int64, error) {
	return db.GetLookupCount(ctx, s.DB, word)
}

func (s *SQLStore) Top(ctx context.Context, limit int) ([]Lookup, error) {
	return db.TopLookups(ctx, s.DB, limit)
}

func (s *SQLStore) Close() error {
	return s.DB.Close()
}

// FallbackStore writes to Remote and falls back to Local whenever Remote
// fails. Reads follow the same order.
type FallbackStore struct {
	Remote Store
	Local  Store
	Logger logging.Logger
}

func (f *FallbackStore) Record(ctx context.Context, word string) error {
	if f.Remote != nil {
		err := f.Remote.Record(ctx, word)
		if err == nil {
			return nil
		}
		logging.OrNop(f.Logger).Warnf("stats: remote record %q failed, using local store: %v", word, err)
	}
	return f.Local.Record(ctx, word)
}

func (f *FallbackStore) Count(ctx context.Context, word string) (int64, error) {
	if f.Remote != nil {
		n, err := f.Remote.Count(ctx, word)
		if err == nil {
			return n, nil
		}
		logging.OrNop(f.Logger).Warnf("stats: remote count %q failed, using local store: %v", word, err)
	}
	return f.Local.Count(ctx, word)
}

func (f *FallbackStore) Top(ctx context.Context, limit int) ([]Lookup, error) {
	if f.Remote != nil {
		top, err := f.Remote.Top(ctx, limit)
		if err == nil {
			return top, nil
		}
		logging.OrNop(f.Logger).Warnf("stats: remote top failed, using local store: %v", err)
	}
	return f.Local.Top(ctx, limit)
}
