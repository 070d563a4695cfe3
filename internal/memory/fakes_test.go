package memory

import (
	"context"
	"fmt"
	"sync"

	"mnemo/internal/vector"
)

// Mock implementations for testing

type fakeEmbedder struct {
	mu      sync.Mutex
	failFor map[string]bool
	calls   map[string]int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		failFor: make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[text]++
	if f.failFor[text] {
		return nil, fmt.Errorf("embedding failed for %q", text)
	}
	// Deterministic vector derived from the text length
	return []float32{float32(len(text)), 1.0}, nil
}

func (f *fakeEmbedder) callCount(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

type fakeIndex struct {
	mu        sync.Mutex
	records   map[string]vector.Record
	hits      []vector.Hit
	lookupErr error
	insertErr error
	searchErr error

	insertedTotal int
	searchCalls   int
	lastTopK      int
	lastThreshold float64
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: make(map[string]vector.Record)}
}

func (f *fakeIndex) ExactLookup(ctx context.Context, text string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return false, f.lookupErr
	}
	_, ok := f.records[vector.NormalizeText(text)]
	return ok, nil
}

func (f *fakeIndex) Insert(ctx context.Context, records []vector.Record) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	for _, rec := range records {
		f.records[vector.NormalizeText(rec.Text)] = rec
	}
	f.insertedTotal += len(records)
	return len(records), nil
}

func (f *fakeIndex) Search(ctx context.Context, queries [][]float32, topK int, threshold float64) ([]vector.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	f.lastTopK = topK
	f.lastThreshold = threshold
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func (f *fakeIndex) has(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[text]
	return ok
}

func (f *fakeIndex) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

type fakeGraph struct {
	mu sync.Mutex

	users         map[string]bool
	userExistsErr error
	upsertUserErr error

	factErr     map[string]error // fact value -> error
	edgeErr     map[string]error // relationship -> error
	categoryErr map[string]error // category name -> error
	linkErr     error

	facts      map[string]string // value -> key
	edges      map[string]string // username|value|relationship -> lifetime
	categories map[string]bool
	links      map[string]bool // value|category

	direct       []RetrievedRecord
	categoryRecs []RetrievedRecord
	substr       []RetrievedRecord
	directErr    error
	categoryQErr error
	substrErr    error

	lastDirectTexts []string
	lastSubstrTerms []string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		users:       make(map[string]bool),
		factErr:     make(map[string]error),
		edgeErr:     make(map[string]error),
		categoryErr: make(map[string]error),
		facts:       make(map[string]string),
		edges:       make(map[string]string),
		categories:  make(map[string]bool),
		links:       make(map[string]bool),
	}
}

func (f *fakeGraph) UserExists(ctx context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userExistsErr != nil {
		return false, f.userExistsErr
	}
	return f.users[username], nil
}

func (f *fakeGraph) UpsertUser(ctx context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertUserErr != nil {
		return f.upsertUserErr
	}
	f.users[username] = true
	return nil
}

func (f *fakeGraph) UpsertFact(ctx context.Context, key, value string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.factErr[value]; err != nil {
		return "", err
	}
	if existing, ok := f.facts[value]; !ok || existing == "Category" {
		f.facts[value] = key
	}
	return "node:" + value, nil
}

func (f *fakeGraph) UpsertRelatesEdge(ctx context.Context, username, factID, relationship, lifetime string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.edgeErr[relationship]; err != nil {
		return "", err
	}
	key := username + "|" + factID + "|" + relationship
	f.edges[key] = lifetime
	return "edge:" + key, nil
}

func (f *fakeGraph) UpsertCategory(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.categoryErr[name]; err != nil {
		return "", err
	}
	f.categories[name] = true
	if _, ok := f.facts[name]; !ok {
		f.facts[name] = "Category"
	}
	return "node:" + name, nil
}

func (f *fakeGraph) LinkCategory(ctx context.Context, factID, categoryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkErr != nil {
		return f.linkErr
	}
	f.links[factID+"|"+categoryID] = true
	return nil
}

func (f *fakeGraph) DirectMatches(ctx context.Context, username string, texts []string, limit int) ([]RetrievedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastDirectTexts = texts
	if f.directErr != nil {
		return nil, f.directErr
	}
	return f.direct, nil
}

func (f *fakeGraph) CategoryMatches(ctx context.Context, username string, texts []string, limit int) ([]RetrievedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.categoryQErr != nil {
		return nil, f.categoryQErr
	}
	return f.categoryRecs, nil
}

func (f *fakeGraph) EdgeContains(ctx context.Context, username string, terms []string, limit int) ([]RetrievedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSubstrTerms = terms
	if f.substrErr != nil {
		return nil, f.substrErr
	}
	return f.substr, nil
}

func (f *fakeGraph) edgeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.edges)
}
