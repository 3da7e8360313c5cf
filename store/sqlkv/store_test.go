package sqlkv

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.gazette.dev/kvsqlite/store"
	"go.gazette.dev/kvsqlite/store/storetest"
)

func TestSQLiteConformance(t *testing.T) {
	var ep, _ = url.Parse("sqlite://" + filepath.Join(t.TempDir(), "pages.db") + "?table=conformance")
	var s, err = New(ep)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, "sqlite", s.Provider())
	storetest.Run(t, s)
}

func TestPostgresConformance(t *testing.T) {
	var dsn = os.Getenv("KVSQLITE_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("KVSQLITE_TEST_POSTGRES is not set")
	}
	var ep, err = url.Parse(dsn)
	require.NoError(t, err)

	var q = ep.Query()
	q.Set("table", "kvsqlite_conformance")
	ep.RawQuery = q.Encode()

	s, err := New(ep)
	require.NoError(t, err)
	defer func() {
		_, _ = s.(*Store).DB.Exec("DROP TABLE kvsqlite_conformance")
		_ = s.Close()
	}()
	storetest.Run(t, s)
}

func TestSQLiteReopenRecoversWrites(t *testing.T) {
	var ctx = context.Background()
	var ep, _ = url.Parse("sqlite://" + filepath.Join(t.TempDir(), "pages.db"))

	s, err := New(ep)
	require.NoError(t, err)

	var b store.Batch
	b.Put("main.db", nil)
	b.Put("main.db:page:0", []byte("page"))
	require.NoError(t, s.Write(ctx, &b, store.Durable))
	require.NoError(t, s.Close())

	s, err = New(ep)
	require.NoError(t, err)
	defer s.Close()

	value, ok, err := s.Get(ctx, "main.db")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, value, 0)

	value, ok, err = s.Get(ctx, "main.db:page:0")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "page", string(value))
}

func TestURLValidation(t *testing.T) {
	for _, tc := range []struct {
		url, err string
	}{
		{"sqlite://", "sqlite URL must include a database path"},
		{"mysql://host/db", `unsupported SQL dialect "mysql"`},
		{"sqlite:///tmp/x.db?table=bad-name", `invalid table name "bad-name"`},
	} {
		var ep, _ = url.Parse(tc.url)
		var _, err = New(ep)
		require.EqualError(t, err, tc.err)
	}
}

func TestRebindAndSplitQuery(t *testing.T) {
	var pg = &Store{Dialect: Postgres}
	require.Equal(t, "INSERT INTO t VALUES ($1, $2)", pg.rebind("INSERT INTO t VALUES (?, ?)"))
	var lite = &Store{Dialect: SQLite}
	require.Equal(t, "SELECT ? FROM t", lite.rebind("SELECT ? FROM t"))

	var ep, _ = url.Parse("postgres://u@h/db?sslmode=disable&table=pages")
	var ours, rest = splitQuery(ep, "table")
	require.Equal(t, "table=pages", ours.RawQuery)
	require.Equal(t, "sslmode=disable", rest)
}
