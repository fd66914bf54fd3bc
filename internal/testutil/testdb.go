package testutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wordmaster-live/internal/config"
	"wordmaster-live/internal/markers"
)

// OpenTestPostgres returns a marker store bound to a throwaway schema that is
// dropped when the test ends. The test is skipped when TEST_POSTGRES_DSN is
// not set.
func OpenTestPostgres(t *testing.T) *markers.Postgres {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil || cfg.TestPostgresDSN == "" {
		t.Skip("skip test db: TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	admin, err := pgxpool.New(ctx, cfg.TestPostgresDSN)
	if err != nil {
		t.Fatalf("connect admin pool: %v", err)
	}
	schema := pgx.Identifier{fmt.Sprintf("quiz_test_%d", time.Now().UnixNano())}.Sanitize()
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}

	st, err := markers.NewPostgres(ctx, scopedDSN(cfg.TestPostgresDSN, strings.Trim(schema, `"`)))
	if err != nil {
		admin.Close()
		t.Fatalf("open marker store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	ddl, err := os.ReadFile(migrationPath())
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if _, err := st.Pool.Exec(ctx, string(ddl)); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	return st
}

// migrationPath resolves migrations/ relative to this source file so tests
// work from any package directory.
func migrationPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations", "000001_init.up.sql")
}

func scopedDSN(dsn, schema string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		// key=value form
		return dsn + " search_path=" + schema
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String()
}
