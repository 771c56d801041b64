// Package sqlstore keeps records and key tables in a relational database.
// SQLite (modernc, pure Go) and Postgres (pgx) are supported through
// database/sql.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/sha1n/iconclass-mcp/internal/domain"
	"github.com/sha1n/iconclass-mcp/internal/store"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

const (
	scopeNotation = "n"
	scopeKey      = "k"

	kindText    = 0
	kindKeyword = 1
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS notations (
		notation TEXT PRIMARY KEY,
		children TEXT NOT NULL,
		refs TEXT NOT NULL,
		key_code TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS keys (
		code TEXT NOT NULL,
		suffix TEXT NOT NULL,
		PRIMARY KEY (code, suffix)
	)`,
	`CREATE TABLE IF NOT EXISTS texts (
		scope TEXT NOT NULL,
		ref TEXT NOT NULL,
		suffix TEXT NOT NULL,
		kind INTEGER NOT NULL,
		language TEXT NOT NULL,
		seq INTEGER NOT NULL,
		body TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS texts_ref ON texts (scope, ref)`,
}

// Store is a relational record store and key table.
type Store struct {
	db     *sql.DB
	driver string
}

var _ store.Backend = (*Store)(nil)
var _ store.Importer = (*Store)(nil)

// Open connects to the database and creates the schema if needed. For SQLite
// dsn is a file path; its directory is created.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			return nil, errors.New("sqlite path is required")
		}
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
		}
	case DriverPostgres:
		if dsn == "" {
			return nil, errors.New("postgres dsn is required")
		}
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	s := &Store{db: db, driver: driver}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return s, nil
}

// rebind rewrites '?' placeholders into the driver's syntax.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// querier is the read side shared by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// readTx runs fn in a transaction so that its queries observe one snapshot,
// even while another process imports. Postgres needs repeatable read for
// that; a SQLite read transaction in WAL mode already is one.
func (s *Store) readTx(ctx context.Context, fn func(q querier) error) error {
	var opts *sql.TxOptions
	if s.driver == DriverPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Record returns the stored record for notation.
func (s *Store) Record(ctx context.Context, notation string) (rec *domain.StoredRecord, err error) {
	err = s.readTx(ctx, func(q querier) error {
		rec, err = s.record(ctx, q, notation)
		return err
	})
	return rec, err
}

func (s *Store) record(ctx context.Context, q querier, notation string) (*domain.StoredRecord, error) {
	var children, refs, keyCode string
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT children, refs, key_code FROM notations WHERE notation = ?`),
		notation).Scan(&children, &refs, &keyCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query notation: %w", err)
	}

	rec := &domain.StoredRecord{Notation: notation, KeyCode: keyCode}
	if err := json.Unmarshal([]byte(children), &rec.Children); err != nil {
		return nil, fmt.Errorf("corrupt children of %q: %w", notation, err)
	}
	if err := json.Unmarshal([]byte(refs), &rec.Refs); err != nil {
		return nil, fmt.Errorf("corrupt refs of %q: %w", notation, err)
	}

	err = s.scanTexts(ctx, q, scopeNotation, notation, func(_ string, kind int, lang, body string) {
		switch kind {
		case kindText:
			if rec.Text == nil {
				rec.Text = map[string]string{}
			}
			rec.Text[lang] = body
		case kindKeyword:
			if rec.Keywords == nil {
				rec.Keywords = map[string][]string{}
			}
			rec.Keywords[lang] = append(rec.Keywords[lang], body)
		}
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Keys returns every suffix entry of a key code.
func (s *Store) Keys(ctx context.Context, code string) (ks domain.KeySet, err error) {
	err = s.readTx(ctx, func(q querier) error {
		ks, err = s.keys(ctx, q, code)
		return err
	})
	return ks, err
}

func (s *Store) keys(ctx context.Context, q querier, code string) (domain.KeySet, error) {
	suffixes, err := s.suffixes(ctx, q, code)
	if err != nil {
		return nil, err
	}
	if len(suffixes) == 0 {
		return nil, store.ErrNotFound
	}

	ks := domain.KeySet{}
	for _, suffix := range suffixes {
		ks[suffix] = domain.KeyEntry{Text: map[string]string{}, Keywords: map[string][]string{}}
	}

	err = s.scanTexts(ctx, q, scopeKey, code, func(suffix string, kind int, lang, body string) {
		e, ok := ks[suffix]
		if !ok {
			return
		}
		switch kind {
		case kindText:
			e.Text[lang] = body
		case kindKeyword:
			e.Keywords[lang] = append(e.Keywords[lang], body)
		}
	})
	if err != nil {
		return nil, err
	}
	return ks, nil
}

// suffixes reads the suffixes of code. The rows are drained before returning
// since a transaction runs one query at a time.
func (s *Store) suffixes(ctx context.Context, q querier, code string) ([]string, error) {
	rows, err := q.QueryContext(ctx, s.rebind(`SELECT suffix FROM keys WHERE code = ?`), code)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var suffix string
		if err := rows.Scan(&suffix); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		out = append(out, suffix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keys: %w", err)
	}
	return out, nil
}

func (s *Store) scanTexts(ctx context.Context, q querier, scope, ref string, fn func(suffix string, kind int, lang, body string)) error {
	rows, err := q.QueryContext(ctx, s.rebind(
		`SELECT suffix, kind, language, body FROM texts
		WHERE scope = ? AND ref = ?
		ORDER BY suffix, kind, language, seq`), scope, ref)
	if err != nil {
		return fmt.Errorf("failed to query texts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var suffix, lang, body string
		var kind int
		if err := rows.Scan(&suffix, &kind, &lang, &body); err != nil {
			return fmt.Errorf("failed to scan text: %w", err)
		}
		fn(suffix, kind, lang, body)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read texts: %w", err)
	}
	return nil
}

// Import replaces the whole content of the store with ds in one transaction.
func (s *Store) Import(ctx context.Context, ds *store.Dataset) (retErr error) {
	if err := ds.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin import: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"texts", "keys", "notations"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	insNotation, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO notations (notation, children, refs, key_code) VALUES (?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare import: %w", err)
	}
	defer func() { _ = insNotation.Close() }()
	insKey, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO keys (code, suffix) VALUES (?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare import: %w", err)
	}
	defer func() { _ = insKey.Close() }()
	insText, err := tx.PrepareContext(ctx, s.rebind(
		`INSERT INTO texts (scope, ref, suffix, kind, language, seq, body) VALUES (?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("failed to prepare import: %w", err)
	}
	defer func() { _ = insText.Close() }()

	writeTexts := func(scope, ref, suffix string, text map[string]string, keywords map[string][]string) error {
		for lang, body := range text {
			if _, err := insText.ExecContext(ctx, scope, ref, suffix, kindText, lang, 0, body); err != nil {
				return fmt.Errorf("failed to insert text of %q: %w", ref, err)
			}
		}
		for lang, words := range keywords {
			for i, w := range words {
				if _, err := insText.ExecContext(ctx, scope, ref, suffix, kindKeyword, lang, i, w); err != nil {
					return fmt.Errorf("failed to insert keyword of %q: %w", ref, err)
				}
			}
		}
		return nil
	}

	for n, rec := range ds.Records {
		children, err := marshalList(rec.Children)
		if err != nil {
			return err
		}
		refs, err := marshalList(rec.Refs)
		if err != nil {
			return err
		}
		if _, err := insNotation.ExecContext(ctx, n, children, refs, rec.KeyCode); err != nil {
			return fmt.Errorf("failed to insert notation %q: %w", n, err)
		}
		if err := writeTexts(scopeNotation, n, "", rec.Text, rec.Keywords); err != nil {
			return err
		}
	}

	for code, ks := range ds.Keys {
		for suffix, e := range ks {
			if _, err := insKey.ExecContext(ctx, code, suffix); err != nil {
				return fmt.Errorf("failed to insert key %q%q: %w", code, suffix, err)
			}
			if err := writeTexts(scopeKey, code, suffix, e.Text, e.Keywords); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// Count returns the number of stored notations.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count notations: %w", err)
	}
	return n, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func marshalList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(b), nil
}
