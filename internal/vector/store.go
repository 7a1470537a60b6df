package vector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"plenary/internal/config"
	"plenary/internal/services"
)

// Embedding is one transcript segment's vector, addressed by session and
// segment index.
type Embedding struct {
	SessionID    string
	SegmentIndex int
	Text         string
	Values       []float32
}

// Match is one similarity search hit.
type Match struct {
	SessionID    string
	SegmentIndex int
	Text         string
	Distance     float64
}

// Store persists embeddings in Postgres with the pgvector extension.
type Store struct {
	pool       *pgxpool.Pool
	table      string
	dimensions int
}

// Open connects to Postgres and ensures the embeddings table exists.
func Open(ctx context.Context, cfg config.Vector, dimensions int) (*Store, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, services.Wrap(services.ErrConfiguration, "vector", "open",
			"postgres DSN is required", nil)
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = "session_embeddings"
	}
	if !validTableName(table) {
		return nil, services.Wrap(services.ErrConfiguration, "vector", "open",
			fmt.Sprintf("invalid table name %q", table), nil)
	}
	if dimensions <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "vector", "open",
			"embedding dimensions must be positive", nil)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "vector", "open",
			"parse postgres DSN", err)
	}

	store := &Store{pool: pool, table: table, dimensions: dimensions}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return services.Wrap(services.ErrPersistence, "vector", "ping",
			"postgres unreachable", err)
	}
	return nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	statements := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id            BIGSERIAL PRIMARY KEY,
    session_id    TEXT NOT NULL,
    segment_index INTEGER NOT NULL,
    content       TEXT NOT NULL,
    embedding     VECTOR(%d) NOT NULL,
    UNIQUE (session_id, segment_index)
)`, s.table, s.dimensions),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_session_idx ON %s (session_id)",
			s.table, s.table),
	}
	for _, statement := range statements {
		if _, err := s.pool.Exec(ctx, statement); err != nil {
			return services.Wrap(services.ErrPersistence, "vector", "ensure schema",
				"apply schema statement", err)
		}
	}
	return nil
}

// UpsertBatch writes embeddings for a session, replacing any existing rows
// for the same segment indexes. The batch executes in one round trip.
func (s *Store) UpsertBatch(ctx context.Context, embeddings []Embedding) error {
	const op = "upsert embeddings"
	if len(embeddings) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
INSERT INTO %s (session_id, segment_index, content, embedding)
VALUES ($1, $2, $3, $4::vector)
ON CONFLICT (session_id, segment_index)
DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`, s.table)

	batch := &pgx.Batch{}
	for i, embedding := range embeddings {
		if embedding.SessionID == "" {
			return services.Wrap(services.ErrValidation, "vector", op,
				fmt.Sprintf("embedding %d has no session id", i), nil)
		}
		if len(embedding.Values) != s.dimensions {
			return services.Wrap(services.ErrValidation, "vector", op,
				fmt.Sprintf("embedding %d has %d dimensions, want %d",
					i, len(embedding.Values), s.dimensions), nil)
		}
		batch.Queue(query, embedding.SessionID, embedding.SegmentIndex,
			embedding.Text, Literal(embedding.Values))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range embeddings {
		if _, err := results.Exec(); err != nil {
			return classify(op, err)
		}
	}
	return nil
}

// DeleteSession removes every embedding row for a session. Used both by
// compensating cleanup and by record removal.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	const op = "delete session embeddings"
	if strings.TrimSpace(sessionID) == "" {
		return services.Wrap(services.ErrValidation, "vector", op,
			"session id is required", nil)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE session_id = $1", s.table)
	if _, err := s.pool.Exec(ctx, query, sessionID); err != nil {
		return classify(op, err)
	}
	return nil
}

// Count returns the number of stored embeddings for a session.
func (s *Store) Count(ctx context.Context, sessionID string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE session_id = $1", s.table)
	var count int
	if err := s.pool.QueryRow(ctx, query, sessionID).Scan(&count); err != nil {
		return 0, classify("count embeddings", err)
	}
	return count, nil
}

// Search returns the segments nearest to the query vector by cosine
// distance.
func (s *Store) Search(ctx context.Context, query []float32, limit int) ([]Match, error) {
	const op = "search embeddings"
	if len(query) != s.dimensions {
		return nil, services.Wrap(services.ErrValidation, "vector", op,
			fmt.Sprintf("query has %d dimensions, want %d", len(query), s.dimensions), nil)
	}
	if limit <= 0 {
		limit = 10
	}

	statement := fmt.Sprintf(`
SELECT session_id, segment_index, content, embedding <=> $1::vector AS distance
FROM %s
ORDER BY distance
LIMIT $2`, s.table)
	rows, err := s.pool.Query(ctx, statement, Literal(query), limit)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var match Match
		if err := rows.Scan(&match.SessionID, &match.SegmentIndex, &match.Text, &match.Distance); err != nil {
			return nil, classify(op, err)
		}
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(op, err)
	}
	return matches, nil
}

// Literal renders a vector in the pgvector input format.
func Literal(values []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, value := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(value), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return services.Wrap(services.ErrCancelled, "vector", op, "operation cancelled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "vector", op, "operation timed out", err)
	}
	return services.Wrap(services.ErrPersistence, "vector", op, "postgres operation failed", err)
}

func validTableName(name string) bool {
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return name != ""
}
