// Package redis provides Redis-backed implementations of the catalog
// cache, session token store, and lobby presence markers.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"buzzboard/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// CatalogLoader fetches the question catalog from the backing store.
type CatalogLoader interface {
	ListQuestions(ctx context.Context) ([]*domain.Question, error)
}

const catalogKey = "catalog:questions"

// CatalogCache keeps the read-only question catalog in a Redis hash
// (field = question id, value = JSON) and falls back to the loader on a
// cache miss. The catalog is immutable during gameplay, so a populated
// hash is always authoritative until its TTL lapses.
type CatalogCache struct {
	client *redis.Client
	loader CatalogLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCatalogCache(client *redis.Client, loader CatalogLoader, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CatalogCache) ListQuestions(ctx context.Context) ([]*domain.Question, error) {
	fields, err := c.client.HGetAll(ctx, catalogKey).Result()
	if err == nil && len(fields) > 0 {
		return decodeCatalog(fields)
	}

	result, err, _ := c.sf.Do(catalogKey, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		fields, err := c.client.HGetAll(ctx, catalogKey).Result()
		if err == nil && len(fields) > 0 {
			return decodeCatalogAny(fields)
		}

		questions, err := c.loader.ListQuestions(ctx)
		if err != nil {
			return nil, err
		}

		pipe := c.client.Pipeline()
		for _, q := range questions {
			data, err := json.Marshal(q)
			if err != nil {
				return nil, fmt.Errorf("marshal question %s: %w", q.ID, err)
			}
			pipe.HSet(ctx, catalogKey, q.ID, data)
		}
		if ttl := c.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, catalogKey, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]*domain.Question), nil
}

func decodeCatalogAny(fields map[string]string) (interface{}, error) {
	return decodeCatalog(fields)
}

func decodeCatalog(fields map[string]string) ([]*domain.Question, error) {
	questions := make([]*domain.Question, 0, len(fields))
	for id, raw := range fields {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return nil, fmt.Errorf("unmarshal cached question %s: %w", id, err)
		}
		questions = append(questions, &q)
	}
	// Hash iteration is unordered; restore catalog order.
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].RoundIndex != questions[j].RoundIndex {
			return questions[i].RoundIndex < questions[j].RoundIndex
		}
		if questions[i].CategoryIndex != questions[j].CategoryIndex {
			return questions[i].CategoryIndex < questions[j].CategoryIndex
		}
		return questions[i].BaseValue < questions[j].BaseValue
	})
	return questions, nil
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
