package db

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
)

func tableColumns(t *testing.T, conn *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := conn.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("pragmas: %v", err)
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dfltVal interface{}
		if err := rows.Scan(&cid, &colName, &ctype, &notnull, &dfltVal, &pk); err != nil {
			t.Fatalf("scan col: %v", err)
		}
		cols[colName] = true
	}
	return cols
}

// TestInitDBCreatesSchema verifies InitDB creates every table the stats store
// and the ingester write to.
func TestInitDBCreatesSchema(t *testing.T) {
	dbConn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer dbConn.Close()
	dbConn.SetMaxOpenConns(1)

	if err := InitDB(dbConn); err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	// Migrations are idempotent.
	if err := InitDB(dbConn); err != nil {
		t.Fatalf("second InitDB failed: %v", err)
	}

	for _, table := range []string{"words", "sources", "sentences", "word_sources", "word_contexts", "lookups"} {
		var name string
		if err := dbConn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}

	if cols := tableColumns(t, dbConn, "words"); !cols["pinyin"] || !cols["jyutping"] || !cols["definitions"] {
		t.Fatalf("unexpected words columns: %v", cols)
	}
	if cols := tableColumns(t, dbConn, "sources"); !cols["last_processed_sentence"] {
		t.Fatalf("expected last_processed_sentence in sources, got %v", cols)
	}
	if cols := tableColumns(t, dbConn, "lookups"); !cols["count"] || !cols["last_seen_at"] {
		t.Fatalf("unexpected lookups columns: %v", cols)
	}
}

func TestMigrateMySQL(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer conn.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS lookups").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := Migrate(conn, MySQL); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDialectString(t *testing.T) {
	if SQLite.String() != "sqlite3" || MySQL.String() != "mysql" {
		t.Fatalf("unexpected driver names %q %q", SQLite, MySQL)
	}
}
