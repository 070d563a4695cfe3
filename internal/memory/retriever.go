package memory

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mnemo/internal/embedding"
	"mnemo/pkg/logger"
)

// Retriever answers "what do we know relevant to these keywords" by combining
// vector similarity with graph lookups and rendering context sentences.
type Retriever struct {
	graph    GraphStore
	index    VectorIndex
	embedder embedding.Embedder
	logger   *zap.Logger
}

// NewRetriever creates a retrieval engine
func NewRetriever(graph GraphStore, index VectorIndex, embedder embedding.Embedder) *Retriever {
	return &Retriever{
		graph:    graph,
		index:    index,
		embedder: embedder,
		logger:   logger.Get(),
	}
}

// Retrieve returns up to topK ranked context sentences for the user. Vector
// relevance gates the whole search: if no keyword embeds or nothing in the
// index clears the threshold, the result is empty, never an error. Ordering
// is query priority (direct > category > substring) then recency; the
// similarity score only selects the relevant-text set.
func (r *Retriever) Retrieve(ctx context.Context, username string, keywords []string, topK int, threshold float64) ([]string, error) {
	if len(keywords) == 0 || topK < 1 {
		return []string{}, nil
	}

	log := r.logger.With(zap.String("username", username))

	exists, err := r.graph.UserExists(ctx, username)
	if err != nil {
		log.Warn("User existence check failed", zap.Error(err))
	} else if !exists {
		log.Warn("Retrieve called for unknown user")
		return []string{}, nil
	}

	// Embed keywords in parallel; keywords with failed embeddings are
	// dropped, not fatal.
	embeddings := make([][]float32, len(keywords))
	g, gctx := errgroup.WithContext(ctx)
	for i, keyword := range keywords {
		i, keyword := i, keyword
		g.Go(func() error {
			emb, err := r.embedder.Embed(gctx, keyword)
			if err != nil {
				log.Warn("Dropping keyword with failed embedding",
					zap.String("keyword", keyword),
					zap.Error(err),
				)
				return nil
			}
			embeddings[i] = emb
			return nil
		})
	}
	_ = g.Wait()

	queries := make([][]float32, 0, len(embeddings))
	for _, emb := range embeddings {
		if len(emb) > 0 {
			queries = append(queries, emb)
		}
	}
	if len(queries) == 0 {
		log.Warn("No usable keyword embeddings", zap.Strings("keywords", keywords))
		return []string{}, nil
	}

	hits, err := r.index.Search(ctx, queries, topK*3, threshold)
	if err != nil {
		log.Error("Vector search failed", zap.Error(err))
		return []string{}, nil
	}
	if len(hits) == 0 {
		log.Info("No relevant texts above threshold", zap.Strings("keywords", keywords))
		return []string{}, nil
	}

	relevantTexts := make([]string, 0, len(hits))
	for _, hit := range hits {
		relevantTexts = append(relevantTexts, hit.Text)
	}
	log.Debug("Relevant texts selected", zap.Strings("texts", relevantTexts))

	// The substring pass also matches the raw keywords, independent of the
	// vector step.
	substringTerms := make([]string, 0, len(relevantTexts)+len(keywords))
	substringTerms = append(substringTerms, relevantTexts...)
	for _, keyword := range keywords {
		substringTerms = append(substringTerms, strings.ToLower(keyword))
	}

	// The three graph queries are independent; run them concurrently and
	// treat each failure as an empty result.
	var direct, categories, substr []RetrievedRecord
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		records, err := r.graph.DirectMatches(ctx, username, relevantTexts, topK*5)
		if err != nil {
			log.Error("Direct match query failed", zap.Error(err))
			return
		}
		direct = records
	}()
	go func() {
		defer wg.Done()
		records, err := r.graph.CategoryMatches(ctx, username, relevantTexts, topK*3)
		if err != nil {
			log.Error("Category expansion query failed", zap.Error(err))
			return
		}
		categories = records
	}()
	go func() {
		defer wg.Done()
		records, err := r.graph.EdgeContains(ctx, username, substringTerms, topK*3)
		if err != nil {
			log.Error("Edge substring query failed", zap.Error(err))
			return
		}
		substr = records
	}()
	wg.Wait()

	merged := mergeRecords(direct, categories, substr)
	sentences := renderSentences(merged, topK)

	log.Info("Retrieval complete",
		zap.Int("direct", len(direct)),
		zap.Int("categories", len(categories)),
		zap.Int("substring", len(substr)),
		zap.Int("sentences", len(sentences)),
	)
	return sentences, nil
}

// mergeRecords unions result groups in priority order, deduplicating by edge
// id. First occurrence wins, so earlier groups take priority.
func mergeRecords(groups ...[]RetrievedRecord) []RetrievedRecord {
	seen := make(map[string]bool)
	var merged []RetrievedRecord
	for _, group := range groups {
		for _, record := range group {
			if record.EdgeID == "" || seen[record.EdgeID] {
				continue
			}
			seen[record.EdgeID] = true
			merged = append(merged, record)
		}
	}
	return merged
}
