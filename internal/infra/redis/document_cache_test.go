package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"quiz-playback-service/internal/domain"
)

type countingSource struct {
	mu    sync.Mutex
	calls int
	docs  map[string][]byte
}

func (s *countingSource) FetchDocument(_ context.Context, docID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if raw, ok := s.docs[docID]; ok {
		return raw, nil
	}
	return nil, domain.ErrDocumentNotFound
}

func (s *countingSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestCache(t *testing.T, source DocumentSource, ttl time.Duration) (*DocumentCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewDocumentCache(client, source, ttl), mr
}

func TestDocumentCacheFillsAndServesFromRedis(t *testing.T) {
	backing := &countingSource{docs: map[string][]byte{"doc-1": []byte(`{"videoId":"v"}`)}}
	cache, mr := newTestCache(t, backing, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		raw, err := cache.FetchDocument(ctx, "doc-1")
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if string(raw) != `{"videoId":"v"}` {
			t.Fatalf("fetch %d returned %q", i, raw)
		}
	}
	if got := backing.callCount(); got != 1 {
		t.Fatalf("expected one backing fetch, got %d", got)
	}

	stored, err := mr.Get("quizdoc:doc-1")
	if err != nil {
		t.Fatalf("key not stored: %v", err)
	}
	if stored != `{"videoId":"v"}` {
		t.Fatalf("redis holds %q", stored)
	}
}

func TestDocumentCacheRefetchesAfterTTL(t *testing.T) {
	backing := &countingSource{docs: map[string][]byte{"doc-1": []byte(`{}`)}}
	cache, mr := newTestCache(t, backing, time.Minute)
	ctx := context.Background()

	if _, err := cache.FetchDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	// Jitter tops out at 10% of the TTL.
	mr.FastForward(2 * time.Minute)

	if _, err := cache.FetchDocument(ctx, "doc-1"); err != nil {
		t.Fatalf("fetch after expiry: %v", err)
	}
	if got := backing.callCount(); got != 2 {
		t.Fatalf("expected a refetch after expiry, got %d calls", got)
	}
}

func TestDocumentCachePropagatesNotFound(t *testing.T) {
	backing := &countingSource{docs: map[string][]byte{}}
	cache, _ := newTestCache(t, backing, time.Minute)

	if _, err := cache.FetchDocument(context.Background(), "missing"); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDocumentCacheSurvivesRedisOutage(t *testing.T) {
	backing := &countingSource{docs: map[string][]byte{"doc-1": []byte(`{}`)}}
	cache, mr := newTestCache(t, backing, time.Minute)
	mr.Close()

	raw, err := cache.FetchDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("fetch with redis down: %v", err)
	}
	if string(raw) != `{}` {
		t.Fatalf("unexpected payload %q", raw)
	}
}
