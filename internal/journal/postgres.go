package journal

import (
	"context"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the journal in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session_journal (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			request_id TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			command_type TEXT NOT NULL DEFAULT '',
			handler TEXT NOT NULL DEFAULT '',
			pii_redacted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_session_journal_session_created ON session_journal (session_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, entry Entry) error {
	entry = prepare(entry)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO session_journal (id, session_id, request_id, kind, content, command_type, handler, pii_redacted, created_at)
		 VALUES (@id, @session_id, @request_id, @kind, @content, @command_type, @handler, @pii_redacted, @created_at)`,
		pgx.NamedArgs{
			"id":           entry.ID,
			"session_id":   entry.SessionID,
			"request_id":   entry.RequestID,
			"kind":         string(entry.Kind),
			"content":      entry.Content,
			"command_type": entry.CommandType,
			"handler":      entry.Handler,
			"pii_redacted": entry.PIIRedacted,
			"created_at":   entry.CreatedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("record journal entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, request_id, kind, content, command_type, handler, pii_redacted, created_at
		 FROM session_journal WHERE session_id=$1 ORDER BY created_at DESC LIMIT $2`,
		sessionID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		var kind string
		err := row.Scan(&e.ID, &e.SessionID, &e.RequestID, &kind, &e.Content, &e.CommandType, &e.Handler, &e.PIIRedacted, &e.CreatedAt)
		e.Kind = Kind(kind)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan journal rows: %w", err)
	}
	slices.Reverse(items)
	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
