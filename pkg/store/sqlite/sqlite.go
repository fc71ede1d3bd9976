// Package sqlite keeps the mint request collection in a local SQLite file.
// Change notifications only reach subscribers inside the same process.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mint-desk/pkg/models"
	"mint-desk/pkg/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db    *sql.DB
	notes *store.Broadcaster
}

var _ store.Collection = (*Store)(nil)

// Open opens (or creates) the database at dsn and applies migrations.
// Use ":memory:" for an ephemeral store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}

	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations fs: %w", err)
	}
	if err := applyMigrations(ctx, db, sub); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, notes: store.NewBroadcaster()}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Append(ctx context.Context, path string, rec models.SubmissionRecord) (string, error) {
	key, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO mint_records (path, record_key, body) VALUES (?, ?, ?)`,
		path, key.String(), string(body),
	); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	s.notes.Notify(path)
	return key.String(), nil
}

func (s *Store) ReadAll(ctx context.Context, path string) ([]store.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_key, body FROM mint_records WHERE path = ? ORDER BY seq`, path)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []store.Entry
	for rows.Next() {
		var (
			e    store.Entry
			body string
		)
		if err := rows.Scan(&e.Key, &body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &e.Record); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", e.Key, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Patch replaces each top-level field of the stored record, the same way a
// Realtime Database PATCH does. Nested objects are not merged.
func (s *Store) Patch(ctx context.Context, path, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, 0, 2*len(names)+2)
	for _, name := range names {
		value, err := json.Marshal(fields[name])
		if err != nil {
			return fmt.Errorf("encode field %s: %w", name, err)
		}
		args = append(args, `$."`+name+`"`, string(value))
	}
	args = append(args, path, key)

	setters := strings.TrimSuffix(strings.Repeat("?, json(?), ", len(names)), ", ")
	res, err := s.db.ExecContext(ctx,
		`UPDATE mint_records SET body = json_set(body, `+setters+`) WHERE path = ? AND record_key = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	s.notes.Notify(path)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, path string, onChange func()) (func(), error) {
	return s.notes.Subscribe(ctx, path, onChange), nil
}
