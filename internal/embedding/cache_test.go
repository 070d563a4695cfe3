package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mock implementations for testing

type mockEmbedder struct {
	embedding []float32
	err       error
	calls     int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.embedding, nil
}

type mockRedis struct {
	store   map[string]string
	getErr  error
	setErr  error
	setKeys []string
}

func (m *mockRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	if val, ok := m.store[key]; ok {
		return redis.NewStringResult(val, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (m *mockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.setKeys = append(m.setKeys, key)
	if m.setErr != nil {
		return redis.NewStatusResult("", m.setErr)
	}
	if m.store == nil {
		m.store = make(map[string]string)
	}
	if b, ok := value.([]byte); ok {
		m.store[key] = string(b)
	}
	return redis.NewStatusResult("OK", nil)
}

func TestCache_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{embedding: []float32{0.1, 0.2}}
	rdb := &mockRedis{}
	cache := newCache(inner, rdb, time.Hour)

	ctx := context.Background()

	emb, err := cache.Embed(ctx, "pizza")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(emb) != 2 {
		t.Fatalf("unexpected embedding: %v", emb)
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.calls)
	}

	// Second call should be served from the cache
	_, err = cache.Embed(ctx, "pizza")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected inner embedder not to be called again, got %d calls", inner.calls)
	}
}

func TestCache_RedisFailureIsNonFatal(t *testing.T) {
	inner := &mockEmbedder{embedding: []float32{0.5}}
	rdb := &mockRedis{getErr: errors.New("connection refused"), setErr: errors.New("connection refused")}
	cache := newCache(inner, rdb, time.Hour)

	emb, err := cache.Embed(context.Background(), "cat")
	if err != nil {
		t.Fatalf("Embed should succeed despite cache errors: %v", err)
	}
	if len(emb) != 1 {
		t.Errorf("unexpected embedding: %v", emb)
	}
}

func TestCache_MalformedEntryFallsThrough(t *testing.T) {
	inner := &mockEmbedder{embedding: []float32{0.7}}
	rdb := &mockRedis{store: map[string]string{cacheKey("dog"): "not-json"}}
	cache := newCache(inner, rdb, time.Hour)

	emb, err := cache.Embed(context.Background(), "dog")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected fallthrough to inner embedder, got %d calls", inner.calls)
	}

	// The regenerated embedding should have replaced the malformed entry
	var stored []float32
	if err := json.Unmarshal([]byte(rdb.store[cacheKey("dog")]), &stored); err != nil {
		t.Fatalf("cache entry not repaired: %v", err)
	}
	if len(stored) != len(emb) {
		t.Errorf("stored embedding mismatch: %v vs %v", stored, emb)
	}
}

func TestCache_EmbedderErrorNotCached(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("rate limited")}
	rdb := &mockRedis{}
	cache := newCache(inner, rdb, time.Hour)

	if _, err := cache.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error from inner embedder")
	}
	if len(rdb.setKeys) != 0 {
		t.Errorf("failed embeddings must not be cached, got sets: %v", rdb.setKeys)
	}
}
