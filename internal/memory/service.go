package memory

import (
	"context"

	"go.uber.org/zap"

	"mnemo/internal/embedding"
	"mnemo/pkg/logger"
)

// Service is the facade the orchestration layer calls. It owns the
// consolidation and retrieval engines and applies configured defaults.
type Service struct {
	consolidator *Consolidator
	retriever    *Retriever
	defaultTopK  int
	threshold    float64
	logger       *zap.Logger
}

// NewService wires the engine from its injected collaborators
func NewService(graph GraphStore, index VectorIndex, embedder embedding.Embedder, defaultTopK int, threshold float64) *Service {
	dedup := NewDedupCoordinator(index, embedder)
	return &Service{
		consolidator: NewConsolidator(graph, dedup),
		retriever:    NewRetriever(graph, index, embedder),
		defaultTopK:  defaultTopK,
		threshold:    threshold,
		logger:       logger.Get(),
	}
}

// RegisterUser ensures the user's graph node exists
func (s *Service) RegisterUser(ctx context.Context, username string) error {
	return s.consolidator.graph.UpsertUser(ctx, username)
}

// Consolidate merges a batch of facts for a user
func (s *Service) Consolidate(ctx context.Context, username string, facts []Fact) (*Result, error) {
	return s.consolidator.Consolidate(ctx, username, facts)
}

// Retrieve returns ranked context sentences for the keywords. topK and
// threshold fall back to the configured defaults when non-positive.
func (s *Service) Retrieve(ctx context.Context, username string, keywords []string, topK int, threshold float64) ([]string, error) {
	if topK <= 0 {
		topK = s.defaultTopK
	}
	if threshold <= 0 {
		threshold = s.threshold
	}
	return s.retriever.Retrieve(ctx, username, keywords, topK, threshold)
}

// ConsolidationTask is an explicit handle for a consolidation running in the
// background. Callers decide whether to await it; the work is never silently
// detached.
type ConsolidationTask struct {
	done   chan struct{}
	result *Result
	err    error
}

// Done is closed when the consolidation finishes
func (t *ConsolidationTask) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the consolidation finishes or ctx is cancelled
func (t *ConsolidationTask) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ConsolidateAsync runs a consolidation in the background and returns its
// handle. The work uses the given context, so cancelling it cancels the
// consolidation.
func (s *Service) ConsolidateAsync(ctx context.Context, username string, facts []Fact) *ConsolidationTask {
	task := &ConsolidationTask{done: make(chan struct{})}
	go func() {
		defer close(task.done)
		task.result, task.err = s.consolidator.Consolidate(ctx, username, facts)
		if task.err != nil {
			s.logger.Error("Background consolidation failed",
				zap.String("username", username),
				zap.Error(task.err),
			)
		}
	}()
	return task
}
