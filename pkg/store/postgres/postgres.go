// Package postgres keeps the mint request collection in PostgreSQL and uses
// LISTEN/NOTIFY so dashboards in other processes see every write.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"mint-desk/pkg/models"
	"mint-desk/pkg/store"
)

//go:embed migrations/001_mint_records.sql
var schemaSQL string

// notifyChannel carries the collection path of every write.
const notifyChannel = "mint_records_changed"

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

var _ store.Collection = (*Store)(nil)

func Connect(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("exec migration: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ready pings the database.
func (s *Store) Ready(ctx context.Context) error {
	var one int
	return s.pool.QueryRow(ctx, "select 1").Scan(&one)
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO mint_records (path, record_key, body) VALUES ($1, $2, $3::jsonb)`,
		path, key, string(body),
	); err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, path); err != nil {
		return "", fmt.Errorf("notify: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return key.String(), nil
}

func (s *Store) ReadAll(ctx context.Context, path string) ([]store.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record_key::text, body FROM mint_records WHERE path = $1 ORDER BY seq`, path)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []store.Entry
	for rows.Next() {
		var (
			e    store.Entry
			body []byte
		)
		if err := rows.Scan(&e.Key, &body); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal(body, &e.Record); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", e.Key, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Patch(ctx context.Context, path, key string, fields map[string]any) error {
	id, err := uuid.Parse(key)
	if err != nil {
		return store.ErrNotFound
	}
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx,
		`UPDATE mint_records SET body = body || $1::jsonb WHERE path = $2 AND record_key = $3`,
		string(patch), path, id,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, path); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return tx.Commit(ctx)
}

// Subscribe holds one pooled connection in LISTEN mode. A lost connection is
// re-acquired after a short pause and treated as a change, so no write is missed.
func (s *Store) Subscribe(ctx context.Context, path string, onChange func()) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for ctx.Err() == nil {
			if err := s.listen(ctx, path, onChange); err != nil && ctx.Err() == nil {
				s.log.Warn("listen failed, retrying", zap.String("path", path), zap.Error(err))
				select {
				case <-ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}, nil
}

func (s *Store) listen(ctx context.Context, path string, onChange func()) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer func() {
		// the connection goes back to the pool; stop listening first
		_, _ = conn.Exec(context.Background(), "UNLISTEN "+notifyChannel)
	}()

	onChange()
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if n.Payload == path {
			onChange()
		}
	}
}
