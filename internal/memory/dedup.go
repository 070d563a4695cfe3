package memory

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mnemo/internal/embedding"
	"mnemo/internal/vector"
	"mnemo/pkg/logger"
)

// VectorPlan is the outcome of the check+embed phase: which texts already
// have a vector, and which new texts were embedded and await insertion.
// Keys are normalized texts.
type VectorPlan struct {
	Existing map[string]bool
	Pending  map[string]vector.Record
}

// DedupCoordinator guards the vector index's one-record-per-text invariant
// across concurrent consolidation calls. The mutex covers only the exact
// lookup phase; embedding generation runs outside the lock so that slow
// embedding calls are not serialized behind it. The guarantee is best-effort:
// a narrow race window remains between check and insert, which InsertPending
// closes by re-checking and skipping rather than erroring.
type DedupCoordinator struct {
	mu       sync.Mutex
	index    VectorIndex
	embedder embedding.Embedder
	logger   *zap.Logger
}

// NewDedupCoordinator creates a coordinator over the given index and embedder
func NewDedupCoordinator(index VectorIndex, embedder embedding.Embedder) *DedupCoordinator {
	return &DedupCoordinator{
		index:    index,
		embedder: embedder,
		logger:   logger.Get(),
	}
}

// EnsureVectors checks which of the given texts already have a vector and
// embeds the rest. texts maps raw text to the element type it should be
// tagged with if inserted. Lookup errors are treated as "not found" so a
// flaky index never blocks embedding; failed embeddings are dropped with a
// warning and may be retried by a future consolidation call.
func (d *DedupCoordinator) EnsureVectors(ctx context.Context, texts map[string]vector.ElementType) *VectorPlan {
	plan := &VectorPlan{
		Existing: make(map[string]bool),
		Pending:  make(map[string]vector.Record),
	}

	type candidate struct {
		raw         string
		normalized  string
		elementType vector.ElementType
	}
	var missing []candidate

	d.mu.Lock()
	for raw, elementType := range texts {
		normalized := vector.NormalizeText(raw)
		if normalized == "" {
			continue
		}
		if plan.Existing[normalized] {
			continue
		}
		found, err := d.index.ExactLookup(ctx, normalized)
		if err != nil {
			d.logger.Error("Vector lookup failed, assuming text is new",
				zap.String("text", normalized),
				zap.Error(err),
			)
		}
		if found {
			plan.Existing[normalized] = true
			continue
		}
		alreadyQueued := false
		for _, c := range missing {
			if c.normalized == normalized {
				alreadyQueued = true
				break
			}
		}
		if !alreadyQueued {
			missing = append(missing, candidate{raw: raw, normalized: normalized, elementType: elementType})
		}
	}
	d.mu.Unlock()

	if len(missing) == 0 {
		return plan
	}

	// Embedding happens outside the lock, in parallel per text. One failed
	// text does not cancel the others.
	var pendingMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range missing {
		c := c
		g.Go(func() error {
			emb, err := d.embedder.Embed(gctx, c.raw)
			if err != nil {
				d.logger.Warn("Dropping text with failed embedding",
					zap.String("text", c.normalized),
					zap.Error(err),
				)
				return nil
			}
			pendingMu.Lock()
			plan.Pending[c.normalized] = vector.Record{
				Text:        c.normalized,
				Embedding:   emb,
				ElementType: c.elementType,
			}
			pendingMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Debug("Vector plan prepared",
		zap.Int("existing", len(plan.Existing)),
		zap.Int("pending", len(plan.Pending)),
	)
	return plan
}

// InsertPending batch-inserts the plan's embedded texts, restricted to the
// eligible set (nil means all). Each candidate is re-checked against the
// index first: another writer may have inserted the same text since the check
// phase, and such texts are skipped silently rather than erroring.
func (d *DedupCoordinator) InsertPending(ctx context.Context, plan *VectorPlan, eligible map[string]bool) (int, error) {
	if plan == nil || len(plan.Pending) == 0 {
		return 0, nil
	}

	batch := make([]vector.Record, 0, len(plan.Pending))
	for normalized, rec := range plan.Pending {
		if eligible != nil && !eligible[normalized] {
			d.logger.Debug("Skipping vector insert for ineligible text",
				zap.String("text", normalized),
			)
			continue
		}
		found, err := d.index.ExactLookup(ctx, normalized)
		if err != nil {
			d.logger.Error("Vector re-check failed before insert",
				zap.String("text", normalized),
				zap.Error(err),
			)
		}
		if found {
			d.logger.Debug("Skipping vector insert, text appeared since check",
				zap.String("text", normalized),
			)
			continue
		}
		batch = append(batch, rec)
	}

	if len(batch) == 0 {
		return 0, nil
	}
	return d.index.Insert(ctx, batch)
}
