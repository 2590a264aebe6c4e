package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Querier defines the database operations the Store depends on.
// Interfaces are defined by the consumer, not the provider: Store depends on
// this abstraction, production wires the pgx-backed implementation, tests wire
// a fake.
type Querier interface {
	// EnsureSchema creates the chunks table and its indexes if missing.
	EnsureSchema(ctx context.Context) error

	// UpsertChunk inserts or fully overwrites a chunk by id.
	UpsertChunk(ctx context.Context, arg UpsertChunkParams) error

	// SearchChunks performs vector search, optionally filtered by document id.
	SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error)

	// CountChunks counts stored chunks.
	CountChunks(ctx context.Context) (int64, error)
}

// UpsertChunkParams carries one chunk row for UpsertChunk.
type UpsertChunkParams struct {
	ID         uuid.UUID
	Key        string
	DocumentID string
	Summary    string
	RawContext string
	Embedding  pgvector.Vector
}

// SearchChunksParams carries the arguments for SearchChunks.
// An empty DocumentID means no filter.
type SearchChunksParams struct {
	QueryEmbedding pgvector.Vector
	DocumentID     string
	ResultLimit    int32
}

// SearchChunksRow is one vector search hit.
type SearchChunksRow struct {
	ID         uuid.UUID
	Key        string
	DocumentID string
	Summary    string
	RawContext string
	Distance   float64
}

// ensureSchemaSQL runs as a single simple-protocol Exec: the statements share
// one implicit transaction and pg_advisory_xact_lock serializes concurrent
// callers, so EnsureSchema is safe to call from multiple processes at once.
const ensureSchemaSQL = `
SELECT pg_advisory_xact_lock(889234701);
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS chunks (
	id          uuid PRIMARY KEY,
	key         text NOT NULL,
	document_id text NOT NULL,
	summary     text NOT NULL,
	raw_context text NOT NULL DEFAULT '',
	embedding   vector(768) NOT NULL,
	updated_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS chunks_document_id_idx ON chunks (document_id);
`

// upsertChunkSQL overwrites the full row on id conflict. Chunk ids are
// derived from keys, so re-ingesting the same source replaces its chunk
// instead of accumulating duplicates.
const upsertChunkSQL = `
INSERT INTO chunks (id, key, document_id, summary, raw_context, embedding, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (id) DO UPDATE SET
	key = EXCLUDED.key,
	document_id = EXCLUDED.document_id,
	summary = EXCLUDED.summary,
	raw_context = EXCLUDED.raw_context,
	embedding = EXCLUDED.embedding,
	updated_at = now()`

// searchChunksSQL orders by cosine distance with id as a deterministic
// tie-break. The document filter is folded into the WHERE clause so filtered
// searches return a full result page, never a post-filtered partial one.
const searchChunksSQL = `
SELECT id, key, document_id, summary, raw_context, embedding <=> $1 AS distance
FROM chunks
WHERE $2 = '' OR document_id = $2
ORDER BY embedding <=> $1, id
LIMIT $3`

// db is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGQuerier implements Querier on PostgreSQL + pgvector.
type PGQuerier struct {
	db db
}

// NewPGQuerier creates a PGQuerier over a pgx pool or transaction.
func NewPGQuerier(db db) *PGQuerier {
	return &PGQuerier{db: db}
}

func (q *PGQuerier) EnsureSchema(ctx context.Context) error {
	if _, err := q.db.Exec(ctx, ensureSchemaSQL); err != nil {
		return fmt.Errorf("ensuring chunks schema: %w", err)
	}
	return nil
}

func (q *PGQuerier) UpsertChunk(ctx context.Context, arg UpsertChunkParams) error {
	_, err := q.db.Exec(ctx, upsertChunkSQL,
		arg.ID, arg.Key, arg.DocumentID, arg.Summary, arg.RawContext, arg.Embedding,
	)
	if err != nil {
		return fmt.Errorf("upserting chunk %s: %w", arg.ID, err)
	}
	return nil
}

func (q *PGQuerier) SearchChunks(ctx context.Context, arg SearchChunksParams) ([]SearchChunksRow, error) {
	rows, err := q.db.Query(ctx, searchChunksSQL,
		arg.QueryEmbedding, arg.DocumentID, arg.ResultLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var hits []SearchChunksRow
	for rows.Next() {
		var r SearchChunksRow
		if err := rows.Scan(&r.ID, &r.Key, &r.DocumentID, &r.Summary, &r.RawContext, &r.Distance); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		hits = append(hits, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return hits, nil
}

func (q *PGQuerier) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}
