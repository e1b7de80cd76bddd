package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lectern/api/internal/doc"
	"lectern/api/internal/util"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to Postgres through the pgx stdlib driver with pool limits
// sized for the read path.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// PostgresStore keeps documents as JSONB rows addressable by public id and
// storage key.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Fetch looks a document up by public id or storage key.
func (s *PostgresStore) Fetch(ctx context.Context, id string) (doc.Doc, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE public_id = $1 OR storage_key = $1`,
		id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fetch %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", id, err)
	}

	var d doc.Doc
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return d, nil
}

// Put upserts a document under its public id and storage key. Documents
// without an id are assigned a node id.
func (s *PostgresStore) Put(ctx context.Context, d doc.Doc) error {
	if d.ID() == "" {
		d = d.With(map[string]any{"@id": util.NewID("node")})
	}
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode %s: %w", d.ID(), err)
	}

	var key *string
	if k := d.Key(); k != "" {
		key = &k
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (public_id, storage_key, body, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (public_id)
		 DO UPDATE SET storage_key = EXCLUDED.storage_key,
		               body = EXCLUDED.body,
		               updated_at = EXCLUDED.updated_at`,
		d.ID(), key, body, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", d.ID(), err)
	}
	return nil
}

// Ping reports storage reachability for health checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
