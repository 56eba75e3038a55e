package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/JR-coderli/SmartPdfRename/internal/cache"
	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/internal/observability"
)

const cacheKeyPrefix = "extract"

// CachedExtractor memoizes extraction results by image content and backend.
// Cache errors never fail an extraction.
type CachedExtractor struct {
	inner  domain.Extractor
	client cache.Client
	ttl    time.Duration
	logger *observability.Logger
}

// NewCachedExtractor wraps inner with client
func NewCachedExtractor(inner domain.Extractor, client cache.Client, ttl time.Duration, logger *observability.Logger) *CachedExtractor {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &CachedExtractor{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.WithOperation("extract_cache"),
	}
}

// Name returns the wrapped backend name
func (c *CachedExtractor) Name() string {
	return c.inner.Name()
}

// CacheKey derives the key for image under this backend
func (c *CachedExtractor) CacheKey(image []byte) string {
	sum := sha256.Sum256(image)
	return cache.Key(cacheKeyPrefix, c.inner.Name(), hex.EncodeToString(sum[:]))
}

// Extract returns a cached record when present, otherwise calls the backend
func (c *CachedExtractor) Extract(ctx context.Context, image []byte) (*domain.InvoiceFields, error) {
	key := c.CacheKey(image)

	data, err := c.client.Get(ctx, key)
	switch {
	case err == nil:
		var fields domain.InvoiceFields
		uerr := json.Unmarshal(data, &fields)
		if uerr == nil {
			c.logger.Debug().Str("key", key).Msg("Cache hit")
			return &fields, nil
		}
		c.logger.Warn().Err(uerr).Str("key", key).Msg("Discarding corrupt cache entry")
		if err := c.client.Delete(ctx, key); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Cache delete failed")
		}
	case !errors.Is(err, cache.ErrCacheMiss):
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache get failed")
	}

	fields, err := c.inner.Extract(ctx, image)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(fields); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Cache set failed")
		}
	}

	return fields, nil
}

// PurgeExtractions drops every cached extraction record in client
func PurgeExtractions(ctx context.Context, client cache.Client) error {
	return client.DeleteByPrefix(ctx, cache.Key(cacheKeyPrefix, ""))
}

var _ domain.Extractor = (*CachedExtractor)(nil)
