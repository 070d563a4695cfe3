package memory

import (
	"context"
	"testing"
	"time"

	"mnemo/internal/vector"
)

func newTestService() (*Service, *fakeGraph, *fakeIndex) {
	graph := newFakeGraph()
	index := newFakeIndex()
	embedder := newFakeEmbedder()
	return NewService(graph, index, embedder, 3, 0.75), graph, index
}

func TestService_RetrieveAppliesDefaults(t *testing.T) {
	service, graph, index := newTestService()
	graph.users["alice"] = true
	index.hits = []vector.Hit{{Text: "dish", Score: 0.9}}

	if _, err := service.Retrieve(context.Background(), "alice", []string{"food"}, 0, 0); err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if index.lastTopK != 9 {
		t.Errorf("expected default topK 3 to fan out to 9, got %d", index.lastTopK)
	}
	if index.lastThreshold != 0.75 {
		t.Errorf("expected default threshold 0.75, got %f", index.lastThreshold)
	}
}

func TestService_ConsolidateAsync(t *testing.T) {
	service, graph, _ := newTestService()

	task := service.ConsolidateAsync(context.Background(), "alice", []Fact{
		{Key: "dish", Value: "pizza", Relationship: "like"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := task.Wait(ctx)
	if err != nil {
		t.Fatalf("async consolidation failed: %v", err)
	}
	if result.Accepted != 1 {
		t.Errorf("expected 1 accepted fact, got %d", result.Accepted)
	}
	if !graph.users["alice"] {
		t.Error("user should have been created")
	}

	select {
	case <-task.Done():
	default:
		t.Error("Done channel should be closed after Wait returns")
	}
}

func TestService_EndToEndScenarioC(t *testing.T) {
	service, graph, index := newTestService()
	ctx := context.Background()

	if _, err := service.Consolidate(ctx, "alice", []Fact{
		{Key: "dish", Value: "pizza", Relationship: "like", Lifetime: "permanent"},
	}); err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}

	// "food" embeds close to "dish"; the graph returns alice's matching
	// edge and its category hop.
	index.hits = []vector.Hit{{Text: "dish", ElementType: vector.ElementNode, Score: 0.82}}
	recorded := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	graph.direct = []RetrievedRecord{
		{EdgeID: "e1", Relationship: "like", Key: "dish", Value: "pizza", Lifetime: "permanent", CreatedAt: recorded},
	}
	graph.categoryRecs = []RetrievedRecord{
		{
			EdgeID: "h1", Relationship: "HAS_CATEGORY", Key: "Category", Value: "dish",
			Lifetime: "permanent", CreatedAt: recorded,
			ParentRelationship: "like", ParentValue: "pizza",
		},
	}

	sentences, err := service.Retrieve(ctx, "alice", []string{"food"}, 3, 0.75)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(sentences) != 3 {
		t.Fatalf("expected 3 sentences, got %d: %v", len(sentences), sentences)
	}
	if sentences[0] != "You like pizza, recorded around 2025-06-01T12:00:00Z, lifetime permanent." {
		t.Errorf("unexpected sentence: %q", sentences[0])
	}
}
