package sqlio

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/transforms"
)

func TestWriteCommitsBundle(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "out.db")
	fn := NewWriteFn(Config{DSN: dsn, Table: "results"})

	require.NoError(t, fn.StartBundle(context.Background()))
	emit := func(interface{}) {}
	require.NoError(t, fn.ProcessElement(context.Background(), coders.KV{Key: "go", Value: map[string]string{"kind": "language"}}, emit))
	require.NoError(t, fn.ProcessElement(context.Background(), coders.KV{Key: "rust", Value: "oxidation"}, emit))
	require.NoError(t, fn.FinishBundle(context.Background(), emit))

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	rows := map[string]string{}
	result, err := db.Query("SELECT key, value FROM results ORDER BY key")
	require.NoError(t, err)
	defer result.Close()
	for result.Next() {
		var key, value string
		require.NoError(t, result.Scan(&key, &value))
		rows[key] = value
	}
	require.NoError(t, result.Err())

	require.Len(t, rows, 2)
	assert.JSONEq(t, `{"kind":"language"}`, rows["go"])
	assert.JSONEq(t, `"oxidation"`, rows["rust"])
}

func TestWriteAppendsAcrossBundles(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "out.db")
	fn := NewWriteFn(Config{DSN: dsn, Table: "results"})
	emit := func(interface{}) {}

	for _, key := range []string{"a", "b"} {
		require.NoError(t, fn.StartBundle(context.Background()))
		require.NoError(t, fn.ProcessElement(context.Background(), coders.KV{Key: key, Value: 1}, emit))
		require.NoError(t, fn.FinishBundle(context.Background(), emit))
	}

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM results").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestWriteRejectsNonKV(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "out.db")
	fn := NewWriteFn(Config{DSN: dsn, Table: "results"})

	require.NoError(t, fn.StartBundle(context.Background()))
	err := fn.ProcessElement(context.Background(), "bare string", func(interface{}) {})
	require.Error(t, err)
	require.NoError(t, fn.FinishBundle(context.Background(), func(interface{}) {}))
}

func TestWriteConfigValidation(t *testing.T) {
	dofn, err := transforms.NewDoFn(WriteFnName)
	require.NoError(t, err)
	configurable := dofn.(transforms.Configurable)

	err = configurable.Configure(json.RawMessage(`{"dsn":"x.db","table":"drop table; --"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")

	err = configurable.Configure(json.RawMessage(`{"table":"results"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn is required")

	require.NoError(t, configurable.Configure(json.RawMessage(`{"dsn":"x.db","table":"results"}`)))
}
