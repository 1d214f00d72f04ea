package memory

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-playback-service/internal/domain"
)

// DocumentSource fetches the raw JSON bytes of a quiz document by id. The
// payload is untrusted; the playback sequencer validates it on load.
type DocumentSource interface {
	FetchDocument(ctx context.Context, docID string) ([]byte, error)
}

// CachingDocumentSource caches raw documents with TTL to avoid repeated
// backing-store hits.
type CachingDocumentSource struct {
	source DocumentSource
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedDocument
}

type cachedDocument struct {
	raw       []byte
	expiresAt time.Time
}

func NewCachingDocumentSource(source DocumentSource, ttl time.Duration) *CachingDocumentSource {
	return &CachingDocumentSource{
		source: source,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedDocument),
	}
}

func (s *CachingDocumentSource) FetchDocument(ctx context.Context, docID string) ([]byte, error) {
	now := s.clock()

	s.mu.RLock()
	if entry, ok := s.cache[docID]; ok && entry.expiresAt.After(now) {
		s.mu.RUnlock()
		return entry.raw, nil
	}
	s.mu.RUnlock()

	result, err, _ := s.sf.Do(docID, func() (interface{}, error) {
		now := s.clock()
		s.mu.RLock()
		if entry, ok := s.cache[docID]; ok && entry.expiresAt.After(now) {
			s.mu.RUnlock()
			return entry.raw, nil
		}
		s.mu.RUnlock()

		raw, err := s.source.FetchDocument(ctx, docID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cache[docID] = cachedDocument{
			raw:       raw,
			expiresAt: now.Add(s.ttlWithJitter()),
		}
		s.mu.Unlock()
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (s *CachingDocumentSource) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}

// StaticDocumentSource serves documents from an in-memory map (useful for
// tests/demos).
type StaticDocumentSource struct {
	docs map[string][]byte
}

func NewStaticDocumentSource(docs map[string][]byte) *StaticDocumentSource {
	return &StaticDocumentSource{docs: docs}
}

func (s *StaticDocumentSource) FetchDocument(_ context.Context, docID string) ([]byte, error) {
	if raw, ok := s.docs[docID]; ok {
		return raw, nil
	}
	return nil, domain.ErrDocumentNotFound
}

// FileDocumentSource reads documents from a directory, one <id>.json file
// per document.
type FileDocumentSource struct {
	dir string
}

func NewFileDocumentSource(dir string) *FileDocumentSource {
	return &FileDocumentSource{dir: dir}
}

func (s *FileDocumentSource) FetchDocument(_ context.Context, docID string) ([]byte, error) {
	if docID == "" || docID != filepath.Base(docID) || strings.Contains(docID, "..") {
		return nil, fmt.Errorf("fetch document %q: %w", docID, domain.ErrDocumentNotFound)
	}
	raw, err := os.ReadFile(filepath.Join(s.dir, docID+".json"))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("fetch document %q: %w", docID, domain.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch document %q: %w", docID, err)
	}
	return raw, nil
}
