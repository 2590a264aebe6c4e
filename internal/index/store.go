package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/pgvector/pgvector-go"
	"google.golang.org/genai"
)

// Store manages the retrieval index. It owns embedding generation so callers
// hand it plain text and never touch vectors directly.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store.
func New(queries Querier, embedder ai.Embedder, logger *slog.Logger) (*Store, error) {
	if queries == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: queries, embedder: embedder, logger: logger}, nil
}

// EnsureReady creates the backing table and indexes if missing.
// Idempotent and safe to call concurrently from multiple processes.
func (s *Store) EnsureReady(ctx context.Context) error {
	return s.queries.EnsureSchema(ctx)
}

// embed generates a vector embedding for the given text.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	dim := VectorDimension
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// Upsert embeds the chunk's summary and writes the full record, overwriting
// any existing chunk with the same key. The chunk id is always derived from
// the key; a caller-supplied ID is ignored.
func (s *Store) Upsert(ctx context.Context, chunk Chunk) error {
	if chunk.Key == "" {
		return fmt.Errorf("chunk key is required")
	}
	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("chunk text is required")
	}
	if chunk.DocumentID == "" {
		return fmt.Errorf("chunk document id is required")
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, chunk.Text)
	if err != nil {
		return fmt.Errorf("embedding chunk %q: %w", chunk.Key, err)
	}

	id := ChunkID(chunk.Key)
	if err := s.queries.UpsertChunk(ctx, UpsertChunkParams{
		ID:         id,
		Key:        chunk.Key,
		DocumentID: chunk.DocumentID,
		Summary:    chunk.Text,
		RawContext: chunk.RawContext,
		Embedding:  vec,
	}); err != nil {
		return err
	}

	s.logger.Debug("upserted chunk", "id", id, "document_id", chunk.DocumentID, "key", chunk.Key)
	return nil
}

// Search embeds the query and returns the closest chunks by cosine distance.
// An empty query returns no results. Results are ordered by distance with a
// deterministic id tie-break, so equal inputs always produce equal output.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return []Result{}, nil
	}

	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	vec, err := s.embed(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.queries.SearchChunks(queryCtx, SearchChunksParams{
		QueryEmbedding: vec,
		DocumentID:     cfg.documentID,
		ResultLimit:    cfg.topK,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, err
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Chunk: Chunk{
				ID:         row.ID,
				Key:        row.Key,
				DocumentID: row.DocumentID,
				Text:       row.Summary,
				RawContext: row.RawContext,
			},
			Distance: row.Distance,
		})
	}
	return results, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.queries.CountChunks(ctx)
}
