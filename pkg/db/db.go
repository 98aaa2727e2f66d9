package db

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations.sql
var migrationsSQL string

//go:embed migrations_mysql.sql
var mysqlMigrationsSQL string

// Dialect selects the SQL flavour of a connection.
type Dialect int

const (
	SQLite Dialect = iota
	MySQL
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite3"
	case MySQL:
		return "mysql"
	default:
		return fmt.Sprintf("Dialect(%d)", int(d))
	}
}

// Open opens a connection for the dialect. SQLite connections are limited to
// a single open connection so that ":memory:" databases are shared.
func Open(d Dialect, dsn string) (*sql.DB, error) {
	conn, err := sql.Open(d.String(), dsn)
	if err != nil {
		return nil, err
	}
	if d == SQLite {
		conn.SetMaxOpenConns(1)
	}
	return conn, nil
}

// InitDB runs the SQLite migrations on the given DB connection.
func InitDB(db *sql.DB) error {
	return Migrate(db, SQLite)
}

// Migrate runs the embedded migrations for the dialect. The MySQL schema only
// carries the lookups table; article ingestion is SQLite only.
func Migrate(db *sql.DB, d Dialect) error {
	schema := migrationsSQL
	if d == MySQL {
		schema = mysqlMigrationsSQL
	}
	stmts := strings.Split(schema, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("migrate %s: %w", d, err)
		}
	}
	return nil
}
