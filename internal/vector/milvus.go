package vector

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"mnemo/pkg/logger"
)

const (
	textField        = "original_text"
	vectorField      = "embedding"
	elementTypeField = "element_type"

	maxTextLength = 5000
)

// Store is a Milvus-backed vector index. Texts are stored lowercased as the
// collection's primary key, which is what enforces the one-vector-per-text
// invariant.
type Store struct {
	client     client.Client
	collection string
	dim        int
	logger     *zap.Logger
}

// NewStore creates a vector store over an existing Milvus client
func NewStore(c client.Client, collection string, dim int) *Store {
	return &Store{
		client:     c,
		collection: collection,
		dim:        dim,
		logger:     logger.Get(),
	}
}

// EnsureCollection creates the collection and its HNSW index if they do not
// exist, and loads the collection for search.
func (s *Store) EnsureCollection(ctx context.Context) error {
	has, err := s.client.HasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %q: %w", s.collection, err)
	}

	if !has {
		schema := entity.NewSchema().
			WithName(s.collection).
			WithDescription("Knowledge vectors: text embeddings keyed by normalized text").
			WithField(entity.NewField().
				WithName(textField).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(maxTextLength).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(vectorField).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(s.dim))).
			WithField(entity.NewField().
				WithName(elementTypeField).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(32))

		if err := s.client.CreateCollection(ctx, schema, 1); err != nil {
			return fmt.Errorf("failed to create collection %q: %w", s.collection, err)
		}

		idx, err := entity.NewIndexHNSW(entity.COSINE, 16, 200)
		if err != nil {
			return fmt.Errorf("failed to build HNSW index definition: %w", err)
		}
		if err := s.client.CreateIndex(ctx, s.collection, vectorField, idx, false); err != nil {
			return fmt.Errorf("failed to create index on %q: %w", s.collection, err)
		}

		s.logger.Info("Milvus collection created",
			zap.String("collection", s.collection),
			zap.Int("dimension", s.dim),
		)
	}

	if err := s.client.LoadCollection(ctx, s.collection, false); err != nil {
		return fmt.Errorf("failed to load collection %q: %w", s.collection, err)
	}

	return nil
}

// ExactLookup reports whether a vector already exists for the given text
func (s *Store) ExactLookup(ctx context.Context, text string) (bool, error) {
	normalized := NormalizeText(text)
	if normalized == "" {
		return false, nil
	}

	expr := fmt.Sprintf(`%s == "%s"`, textField, escapeExpr(normalized))
	rs, err := s.client.Query(ctx, s.collection, nil, expr, []string{textField})
	if err != nil {
		return false, fmt.Errorf("failed to query text %q: %w", normalized, err)
	}

	col := rs.GetColumn(textField)
	return col != nil && col.Len() > 0, nil
}

// Insert stores a batch of records and returns how many were written. Texts
// are normalized before insertion; records with empty text or a wrong
// embedding dimension are skipped with a warning.
func (s *Store) Insert(ctx context.Context, records []Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	texts := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))
	types := make([]string, 0, len(records))
	for _, rec := range records {
		normalized := NormalizeText(rec.Text)
		if normalized == "" {
			s.logger.Warn("Skipping vector record with empty text")
			continue
		}
		if len(rec.Embedding) != s.dim {
			s.logger.Warn("Skipping vector record with wrong dimension",
				zap.String("text", normalized),
				zap.Int("got", len(rec.Embedding)),
				zap.Int("want", s.dim),
			)
			continue
		}
		texts = append(texts, normalized)
		vectors = append(vectors, rec.Embedding)
		types = append(types, string(rec.ElementType))
	}
	if len(texts) == 0 {
		return 0, nil
	}

	_, err := s.client.Insert(ctx, s.collection, "",
		entity.NewColumnVarChar(textField, texts),
		entity.NewColumnFloatVector(vectorField, s.dim, vectors),
		entity.NewColumnVarChar(elementTypeField, types),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert %d vectors: %w", len(texts), err)
	}

	if err := s.client.Flush(ctx, s.collection, false); err != nil {
		s.logger.Warn("Failed to flush collection after insert", zap.Error(err))
	}

	s.logger.Info("Inserted vectors",
		zap.String("collection", s.collection),
		zap.Int("count", len(texts)),
	)
	return len(texts), nil
}

// Search runs a similarity search for every query vector and returns unique
// texts above the threshold, best score first, truncated to topK.
func (s *Store) Search(ctx context.Context, queries [][]float32, topK int, threshold float64) ([]Hit, error) {
	if len(queries) == 0 || topK < 1 {
		return nil, nil
	}

	searchVectors := make([]entity.Vector, 0, len(queries))
	for _, q := range queries {
		if len(q) != s.dim {
			s.logger.Warn("Skipping query vector with wrong dimension", zap.Int("got", len(q)))
			continue
		}
		searchVectors = append(searchVectors, entity.FloatVector(q))
	}
	if len(searchVectors) == 0 {
		return nil, nil
	}

	sp, err := entity.NewIndexHNSWSearchParam(128)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	results, err := s.client.Search(ctx, s.collection, nil, "",
		[]string{textField, elementTypeField},
		searchVectors, vectorField, entity.COSINE, topK, sp,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	var raw []Hit
	for _, result := range results {
		texts := columnStrings(result.Fields, textField)
		elementTypes := columnStrings(result.Fields, elementTypeField)
		for i := 0; i < result.ResultCount && i < len(result.Scores); i++ {
			if i >= len(texts) {
				break
			}
			hit := Hit{
				Text:  texts[i],
				Score: result.Scores[i],
			}
			if i < len(elementTypes) {
				hit.ElementType = ElementType(elementTypes[i])
			}
			raw = append(raw, hit)
		}
	}

	merged := mergeHits(raw, topK, threshold)
	s.logger.Debug("Vector search complete",
		zap.Int("queries", len(searchVectors)),
		zap.Int("hits", len(merged)),
		zap.Float64("threshold", threshold),
	)
	return merged, nil
}

// mergeHits drops hits below the threshold, keeps the best score per text,
// sorts by score descending and truncates to topK.
func mergeHits(hits []Hit, topK int, threshold float64) []Hit {
	best := make(map[string]Hit)
	for _, hit := range hits {
		if hit.Text == "" || float64(hit.Score) < threshold {
			continue
		}
		if existing, ok := best[hit.Text]; !ok || hit.Score > existing.Score {
			best[hit.Text] = hit
		}
	}

	merged := make([]Hit, 0, len(best))
	for _, hit := range best {
		merged = append(merged, hit)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Text < merged[j].Text
	})

	if len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

func columnStrings(cols []entity.Column, name string) []string {
	for _, col := range cols {
		if col.Name() != name {
			continue
		}
		if vc, ok := col.(*entity.ColumnVarChar); ok {
			return vc.Data()
		}
	}
	return nil
}

func escapeExpr(text string) string {
	return strings.ReplaceAll(text, `"`, `\"`)
}
