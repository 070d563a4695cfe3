package memory

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mnemo/internal/vector"
	apperrors "mnemo/pkg/errors"
	"mnemo/pkg/logger"
)

// Consolidator merges extracted facts into the graph and decides which texts
// are genuinely new and must be embedded and inserted into the vector index.
type Consolidator struct {
	graph  GraphStore
	dedup  *DedupCoordinator
	logger *zap.Logger
}

// NewConsolidator creates a consolidation engine
func NewConsolidator(graph GraphStore, dedup *DedupCoordinator) *Consolidator {
	return &Consolidator{
		graph:  graph,
		dedup:  dedup,
		logger: logger.Get(),
	}
}

// Consolidate merges a batch of facts for a user. The contract is best
// effort: invalid facts are dropped, per-fact store failures are logged and
// the batch continues. The only fatal error is a user that does not exist
// and cannot be created.
func (c *Consolidator) Consolidate(ctx context.Context, username string, facts []Fact) (*Result, error) {
	log := c.logger.With(
		zap.String("username", username),
		zap.String("batch_id", uuid.New().String()[:8]),
	)

	exists, err := c.graph.UserExists(ctx, username)
	if err != nil {
		log.Warn("User existence check failed, attempting create", zap.Error(err))
	}
	if !exists {
		if err := c.graph.UpsertUser(ctx, username); err != nil {
			return nil, apperrors.NewUserCreateFailed(username, err)
		}
		log.Info("User node created")
	}

	result := &Result{}
	valid := make([]Fact, 0, len(facts))
	for _, fact := range facts {
		if field := fact.MissingField(); field != "" {
			log.Warn("Dropping incomplete fact",
				zap.String("missing_field", field),
				zap.String("value", fact.Value),
			)
			result.Dropped++
			continue
		}
		if fact.Lifetime == "" {
			fact.Lifetime = DefaultLifetime
		}
		valid = append(valid, fact)
	}
	if len(valid) == 0 {
		log.Info("No valid facts in batch", zap.Int("dropped", result.Dropped))
		return result, nil
	}

	// Distinct texts across all valid facts. When the same text appears in
	// more than one role, the first role wins the element tag.
	texts := make(map[string]vector.ElementType)
	add := func(text string, elementType vector.ElementType) {
		if _, ok := texts[text]; !ok {
			texts[text] = elementType
		}
	}
	for _, fact := range valid {
		add(fact.Value, vector.ElementNode)
		add(fact.Relationship, vector.ElementRelationship)
		add(fact.Key, vector.ElementNode)
	}

	plan := c.dedup.EnsureVectors(ctx, texts)

	// eligible tracks which texts earned their vector insert: values and
	// keys once their node exists, relationship verbs only once their edge
	// was created.
	eligible := make(map[string]bool)
	for _, fact := range valid {
		nodeID, err := c.graph.UpsertFact(ctx, fact.Key, fact.Value)
		if err != nil {
			log.Error("Failed to upsert fact node",
				zap.String("key", fact.Key),
				zap.String("value", fact.Value),
				zap.Error(err),
			)
			continue
		}
		eligible[vector.NormalizeText(fact.Value)] = true

		if _, err := c.graph.UpsertRelatesEdge(ctx, username, nodeID, fact.Relationship, fact.Lifetime); err != nil {
			log.Error("Failed to upsert relates edge",
				zap.String("relationship", fact.Relationship),
				zap.String("value", fact.Value),
				zap.Error(err),
			)
		} else {
			eligible[vector.NormalizeText(fact.Relationship)] = true
		}

		categoryID, err := c.graph.UpsertCategory(ctx, fact.Key)
		if err != nil {
			log.Error("Failed to upsert category node",
				zap.String("key", fact.Key),
				zap.Error(err),
			)
		} else {
			eligible[vector.NormalizeText(fact.Key)] = true
			if err := c.graph.LinkCategory(ctx, nodeID, categoryID); err != nil {
				log.Error("Failed to link category",
					zap.String("key", fact.Key),
					zap.String("value", fact.Value),
					zap.Error(err),
				)
			}
		}

		result.Accepted++
	}

	inserted, err := c.dedup.InsertPending(ctx, plan, eligible)
	if err != nil {
		log.Error("Vector batch insert failed", zap.Error(err))
	}
	result.VectorsInserted = inserted

	log.Info("Consolidation complete",
		zap.Int("accepted", result.Accepted),
		zap.Int("dropped", result.Dropped),
		zap.Int("vectors_inserted", result.VectorsInserted),
	)
	return result, nil
}
