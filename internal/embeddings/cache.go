// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package embeddings

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachingClient wraps a Client with an in-process ristretto cache so
// repeated texts (duplicate checks, re-stored queries) do not hit the
// provider twice.
type CachingClient struct {
	inner Client
	cache *ristretto.Cache
}

// NewCachingClient wraps client with a cache holding up to maxEntries
// vectors. maxEntries below 1 disables caching and returns the client
// unchanged.
func NewCachingClient(client Client, maxEntries int64) (Client, error) {
	if maxEntries < 1 {
		return client, nil
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &CachingClient{
		inner: client,
		cache: cache,
	}, nil
}

// Embed returns a cached vector when available, otherwise delegates to
// the wrapped client and caches the result.
func (c *CachingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)

	if cached, found := c.cache.Get(key); found {
		if vector, ok := cached.([]float32); ok {
			return vector, nil
		}
	}

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, vector, 1)
	return vector, nil
}

// EmbedBatch embeds each text, serving cached entries where possible
func (c *CachingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	// Collect texts that still need the provider
	missing := make([]string, 0, len(texts))
	missingIdx := make([]int, 0, len(texts))
	for i, text := range texts {
		if cached, found := c.cache.Get(c.cacheKey(text)); found {
			if vector, ok := cached.([]float32); ok {
				vectors[i] = vector
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	fetched, err := c.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("embedding batch returned %d vectors for %d texts", len(fetched), len(missing))
	}

	for j, vector := range fetched {
		vectors[missingIdx[j]] = vector
		c.cache.Set(c.cacheKey(missing[j]), vector, 1)
	}

	return vectors, nil
}

// GetModelInfo returns the wrapped client's model info
func (c *CachingClient) GetModelInfo() ModelInfo {
	return c.inner.GetModelInfo()
}

// Wait blocks until pending cache writes are applied. Test helper.
func (c *CachingClient) Wait() {
	c.cache.Wait()
}

// cacheKey keys cache entries by model and content hash so a model
// change never serves stale vectors
func (c *CachingClient) cacheKey(text string) string {
	info := c.inner.GetModelInfo()
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s/%s/%x", info.Provider, info.Name, hash[:16])
}
