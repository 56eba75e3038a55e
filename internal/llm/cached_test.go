package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JR-coderli/SmartPdfRename/internal/cache"
	"github.com/JR-coderli/SmartPdfRename/internal/domain"
)

type countingExtractor struct {
	calls  int
	fields *domain.InvoiceFields
	err    error
}

func (c *countingExtractor) Name() string { return "fake/model" }

func (c *countingExtractor) Extract(ctx context.Context, image []byte) (*domain.InvoiceFields, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.fields.Clone(), nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (brokenCache) Delete(context.Context, string) error         { return nil }
func (brokenCache) DeleteByPrefix(context.Context, string) error { return nil }
func (brokenCache) Close() error                                 { return nil }

func TestCachedExtractor_HitsCache(t *testing.T) {
	inner := &countingExtractor{fields: &domain.InvoiceFields{
		Merchant: "Acme",
		Amount:   decimal.RequireFromString("42.5"),
	}}
	mem := cache.NewMemoryClient(10)
	defer mem.Close()

	ext := NewCachedExtractor(inner, mem, time.Hour, nil)
	ctx := context.Background()

	first, err := ext.Extract(ctx, []byte("image-a"))
	require.NoError(t, err)
	second, err := ext.Extract(ctx, []byte("image-a"))
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first.Merchant, second.Merchant)
	assert.True(t, first.Amount.Equal(second.Amount))

	_, err = ext.Extract(ctx, []byte("image-b"))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedExtractor_KeyIncludesBackend(t *testing.T) {
	ext := NewCachedExtractor(&countingExtractor{}, cache.NewMemoryClient(1), 0, nil)
	key := ext.CacheKey([]byte("x"))
	assert.Contains(t, key, "extract:fake/model:")
	assert.NotEqual(t, key, ext.CacheKey([]byte("y")))
}

func TestCachedExtractor_ErrorsNotCached(t *testing.T) {
	inner := &countingExtractor{err: domain.UpstreamError("boom", nil)}
	mem := cache.NewMemoryClient(10)
	defer mem.Close()

	ext := NewCachedExtractor(inner, mem, time.Hour, nil)
	_, err := ext.Extract(context.Background(), []byte("x"))
	assert.Error(t, err)
	assert.Equal(t, 0, mem.Len())
}

func TestCachedExtractor_BrokenCacheFallsThrough(t *testing.T) {
	inner := &countingExtractor{fields: &domain.InvoiceFields{Merchant: "Acme"}}
	ext := NewCachedExtractor(inner, brokenCache{}, time.Hour, nil)

	fields, err := ext.Extract(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "Acme", fields.Merchant)
}

func TestCachedExtractor_DropsCorruptEntry(t *testing.T) {
	inner := &countingExtractor{err: domain.UpstreamError("offline", nil)}
	mem := cache.NewMemoryClient(10)
	defer mem.Close()

	ext := NewCachedExtractor(inner, mem, time.Hour, nil)
	ctx := context.Background()
	key := ext.CacheKey([]byte("image-a"))
	require.NoError(t, mem.Set(ctx, key, []byte("{not json"), time.Hour))

	_, err := ext.Extract(ctx, []byte("image-a"))
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)

	_, err = mem.Get(ctx, key)
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestPurgeExtractions(t *testing.T) {
	inner := &countingExtractor{fields: &domain.InvoiceFields{Merchant: "Acme"}}
	mem := cache.NewMemoryClient(10)
	defer mem.Close()

	ctx := context.Background()
	require.NoError(t, mem.Set(ctx, "other:key", []byte("keep"), time.Hour))

	ext := NewCachedExtractor(inner, mem, time.Hour, nil)
	_, err := ext.Extract(ctx, []byte("image-a"))
	require.NoError(t, err)

	require.NoError(t, PurgeExtractions(ctx, mem))
	assert.Equal(t, 1, mem.Len())

	_, err = ext.Extract(ctx, []byte("image-a"))
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}
