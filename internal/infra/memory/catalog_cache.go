package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"buzzboard/internal/domain"

	"golang.org/x/sync/singleflight"
)

// CatalogLoader fetches the question catalog from the backing store.
type CatalogLoader interface {
	ListQuestions(ctx context.Context) ([]*domain.Question, error)
}

// CatalogCache caches the read-only question catalog with a TTL to avoid
// repeated store hits on every board materialization.
type CatalogCache struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	cached    []*domain.Question
	expiresAt time.Time
}

func NewCatalogCache(loader CatalogLoader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) ListQuestions(ctx context.Context) ([]*domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if c.cached != nil && c.expiresAt.After(now) {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("catalog", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.cached != nil && c.expiresAt.After(now) {
			cached := c.cached
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()

		questions, err := c.loader.ListQuestions(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cached = questions
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]*domain.Question), nil
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticCatalog is a loader backed by a fixed slice (tests/demos).
type StaticCatalog struct {
	questions []*domain.Question
}

func NewStaticCatalog(questions []*domain.Question) *StaticCatalog {
	return &StaticCatalog{questions: questions}
}

func (l *StaticCatalog) ListQuestions(_ context.Context) ([]*domain.Question, error) {
	return l.questions, nil
}
