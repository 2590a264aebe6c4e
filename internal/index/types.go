// Package index implements the retrieval index: a pgvector-backed chunk store
// with embedding generation and cosine similarity search.
package index

import (
	"time"

	"github.com/google/uuid"
)

// VectorDimension is the embedding dimension for all stored chunks.
// gemini-embedding-001 is truncated to 768 via OutputDimensionality;
// the pgvector column is vector(768). Changing this requires a migration
// and a full re-ingestion.
const VectorDimension int32 = 768

// EmbedTimeout bounds a single embedding call.
const EmbedTimeout = 15 * time.Second

// SearchTimeout bounds a single similarity search, embedding included.
const SearchTimeout = 10 * time.Second

// chunkNamespace is the UUID namespace for ChunkID. Fixed forever: chunk
// identity must be stable across processes and releases so that re-ingesting
// the same source overwrites rather than duplicates.
var chunkNamespace = uuid.MustParse("8c9e4e57-2f5a-4b1e-9d3a-6f0e8a7b5c21")

// ChunkID derives the chunk id from its logical key.
// Pure function: the same key always yields the same id (name-based MD5 UUID).
func ChunkID(key string) uuid.UUID {
	return uuid.NewMD5(chunkNamespace, []byte(key))
}

// Chunk is one indexed unit of content.
//
// Text is the distilled summary that gets embedded and searched.
// RawContext preserves the underlying source verbatim so search results can
// hand the model more than the summary.
type Chunk struct {
	ID         uuid.UUID
	Key        string
	DocumentID string
	Text       string
	RawContext string
}

// Result is a search hit with its cosine distance (lower is closer).
type Result struct {
	Chunk    Chunk
	Distance float64
}
