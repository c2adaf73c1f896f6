package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		in      string
		want    string
	}{
		{"sqlite untouched", SQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{"postgres numbered", Postgres, "SELECT * FROM t WHERE a = ? AND b IN (?, ?)", "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)"},
		{"postgres no params", Postgres, "SELECT 1", "SELECT 1"},
		{"postgres multibyte", Postgres, "SELECT '广州' WHERE x = ?", "SELECT '广州' WHERE x = $1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rebind(tt.dialect, tt.in); got != tt.want {
				t.Errorf("Rebind() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	schema := `-- header comment
CREATE TABLE a (
    id INTEGER
);

-- second
CREATE INDEX i ON a(id);
`
	stmts := splitStatements(schema)
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2: %q", len(stmts), stmts)
	}
	if stmts[1] != "CREATE INDEX i ON a(id);" {
		t.Errorf("unexpected second statement: %q", stmts[1])
	}
}

func TestEnsureSchema_SQLiteIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.db")
	database, err := Open("sqlite", path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := database.EnsureSchema(ctx); err != nil {
			t.Fatalf("EnsureSchema() run %d error = %v", i+1, err)
		}
	}

	for _, table := range []string{"stations", "schedule_rows", "fallback_batches", "cities"} {
		var n int
		err := database.Conn().QueryRowContext(ctx,
			"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
		if err != nil {
			t.Fatalf("sqlite_master query failed: %v", err)
		}
		if n != 1 {
			t.Errorf("table %s missing after EnsureSchema", table)
		}
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("oracle", "x", nil); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
