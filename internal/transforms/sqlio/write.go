// Package sqlio writes pipeline output to a SQL database. Each bundle is
// one transaction so a failed bundle leaves no partial rows behind.
package sqlio

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	_ "modernc.org/sqlite"

	"github.com/joistio/joist/internal/coders"
	"github.com/joistio/joist/internal/logging"
	"github.com/joistio/joist/internal/transforms"
)

// WriteFnName is the registered DoFn name for the SQL sink.
const WriteFnName = "sqlio.write"

func init() {
	transforms.RegisterDoFn(WriteFnName, func() transforms.DoFn {
		return &WriteFn{}
	})
}

// Config configures a WriteFn.
type Config struct {
	// Driver is the database/sql driver name. Defaults to "sqlite".
	Driver string `json:"driver,omitempty"`

	// DSN is the data source name, for sqlite a file path.
	DSN string `json:"dsn"`

	// Table is the target table. It is created on first use with a
	// (key TEXT, value TEXT) schema.
	Table string `json:"table"`
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// WriteFn inserts each KV element as a row of the target table. The key
// column holds the KV key and the value column the JSON encoding of the KV
// value. Rows are committed per bundle.
type WriteFn struct {
	cfg    Config
	db     *sql.DB
	tx     *sql.Tx
	insert *sql.Stmt
	rows   int64
	logger *logging.Logger
}

// NewWriteFn builds a WriteFn directly from a config, bypassing the
// payload path.
func NewWriteFn(cfg Config) *WriteFn {
	return &WriteFn{cfg: cfg}
}

// Configure implements transforms.Configurable.
func (w *WriteFn) Configure(config json.RawMessage) error {
	if err := json.Unmarshal(config, &w.cfg); err != nil {
		return fmt.Errorf("sqlio.write: decode config: %w", err)
	}
	return w.validate()
}

func (w *WriteFn) validate() error {
	if w.cfg.DSN == "" {
		return fmt.Errorf("sqlio.write: dsn is required")
	}
	if !identifierPattern.MatchString(w.cfg.Table) {
		return fmt.Errorf("sqlio.write: invalid table name %q", w.cfg.Table)
	}
	return nil
}

func (w *WriteFn) StartBundle(ctx context.Context) error {
	if w.logger == nil {
		w.logger = logging.GetLogger("transforms.sqlio")
	}
	if err := w.validate(); err != nil {
		return err
	}

	driver := w.cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}
	db, err := sql.Open(driver, w.cfg.DSN)
	if err != nil {
		return fmt.Errorf("sqlio.write: open %s: %w", w.cfg.DSN, err)
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (key TEXT NOT NULL, value TEXT NOT NULL)", w.cfg.Table)); err != nil {
		db.Close()
		return fmt.Errorf("sqlio.write: create table %s: %w", w.cfg.Table, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return fmt.Errorf("sqlio.write: begin: %w", err)
	}
	insert, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (key, value) VALUES (?, ?)", w.cfg.Table))
	if err != nil {
		tx.Rollback()
		db.Close()
		return fmt.Errorf("sqlio.write: prepare insert: %w", err)
	}

	w.db = db
	w.tx = tx
	w.insert = insert
	w.rows = 0
	return nil
}

func (w *WriteFn) ProcessElement(ctx context.Context, element interface{}, _ transforms.Emitter) error {
	kv, ok := element.(coders.KV)
	if !ok {
		return fmt.Errorf("sqlio.write: element is %T, want KV", element)
	}
	key, ok := kv.Key.(string)
	if !ok {
		return fmt.Errorf("sqlio.write: key is %T, want string", kv.Key)
	}
	value, err := json.Marshal(kv.Value)
	if err != nil {
		return fmt.Errorf("sqlio.write: marshal value for %s: %w", key, err)
	}

	if _, err := w.insert.ExecContext(ctx, key, string(value)); err != nil {
		return fmt.Errorf("sqlio.write: insert %s: %w", key, err)
	}
	w.rows++
	return nil
}

func (w *WriteFn) FinishBundle(context.Context, transforms.Emitter) error {
	defer w.close()
	if w.tx == nil {
		return nil
	}
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("sqlio.write: commit: %w", err)
	}
	w.logger.Debug("committed %d rows to %s", w.rows, w.cfg.Table)
	return nil
}

func (w *WriteFn) close() {
	if w.insert != nil {
		w.insert.Close()
		w.insert = nil
	}
	w.tx = nil
	if w.db != nil {
		w.db.Close()
		w.db = nil
	}
}
