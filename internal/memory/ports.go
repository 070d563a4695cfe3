package memory

import (
	"context"

	"mnemo/internal/vector"
)

// VectorIndex is the capability this engine needs from a vector store. The
// store enforces uniqueness by normalized text (its primary key).
type VectorIndex interface {
	// ExactLookup reports whether a vector already exists for the text
	ExactLookup(ctx context.Context, text string) (bool, error)
	// Insert stores a batch of records and returns how many were written
	Insert(ctx context.Context, records []vector.Record) (int, error)
	// Search returns unique texts above the threshold, best score first
	Search(ctx context.Context, queries [][]float32, topK int, threshold float64) ([]vector.Hit, error)
}

// GraphStore is the capability this engine needs from the graph database.
// Upserts are idempotent merges by the store's own unique keys.
type GraphStore interface {
	UserExists(ctx context.Context, username string) (bool, error)
	UpsertUser(ctx context.Context, username string) error

	// UpsertFact merges a fact node by value and returns its element id
	UpsertFact(ctx context.Context, key, value string) (string, error)
	// UpsertRelatesEdge merges the (user, fact, relationship) edge and
	// returns its element id; re-saving updates lifetime and timestamp
	UpsertRelatesEdge(ctx context.Context, username, factID, relationship, lifetime string) (string, error)
	// UpsertCategory merges a category node by name and returns its element id
	UpsertCategory(ctx context.Context, name string) (string, error)
	LinkCategory(ctx context.Context, factID, categoryID string) error

	// DirectMatches returns edges whose verb or fact value is in texts
	DirectMatches(ctx context.Context, username string, texts []string, limit int) ([]RetrievedRecord, error)
	// CategoryMatches returns one-hop HAS_CATEGORY records for directly
	// matched facts, carrying the parent verb and value
	CategoryMatches(ctx context.Context, username string, texts []string, limit int) ([]RetrievedRecord, error)
	// EdgeContains returns edges whose verb contains any term,
	// case-insensitive
	EdgeContains(ctx context.Context, username string, terms []string, limit int) ([]RetrievedRecord, error)
}
