package redis

import (
	"context"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DocumentSource fetches raw quiz document JSON from a backing store.
type DocumentSource interface {
	FetchDocument(ctx context.Context, docID string) ([]byte, error)
}

// DocumentCache keeps the raw document bytes in Redis and falls back to a
// source on cache miss. Documents are stored as: SET quizdoc:{docID} {json}
// with a jittered TTL. The bytes are cached untouched so the playback
// sequencer still validates exactly what the backing store holds.
type DocumentCache struct {
	client *redis.Client
	source DocumentSource
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewDocumentCache(client *redis.Client, source DocumentSource, ttl time.Duration) *DocumentCache {
	return &DocumentCache{
		client: client,
		source: source,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *DocumentCache) FetchDocument(ctx context.Context, docID string) ([]byte, error) {
	key := c.key(docID)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil && len(raw) > 0 {
		return raw, nil
	}

	result, err, _ := c.sf.Do(docID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil && len(raw) > 0 {
			return raw, nil
		}

		raw, err = c.source.FetchDocument(ctx, docID)
		if err != nil {
			return nil, err
		}

		// Best effort: a failed SET only costs the next caller a reload.
		_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *DocumentCache) key(docID string) string {
	return "quizdoc:" + docID
}

func (c *DocumentCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
