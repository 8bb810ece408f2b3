package store

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"inboxdomains/internal/analyze"
)

// CachingClient answers FromHeader from the cache when it can and records
// fresh answers. Listing always goes to the wrapped client, and errors from
// it are never cached.
type CachingClient struct {
	inner     analyze.Client
	cache     *Cache
	namespace string
	logger    *log.Logger

	hits, misses int
}

func NewCachingClient(inner analyze.Client, cache *Cache, namespace string, logger *log.Logger) *CachingClient {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &CachingClient{inner: inner, cache: cache, namespace: namespace, logger: logger}
}

func (c *CachingClient) ListInbox(ctx context.Context, pageToken string, maxResults int64) (analyze.Page, error) {
	return c.inner.ListInbox(ctx, pageToken, maxResults)
}

func (c *CachingClient) FromHeader(ctx context.Context, id string) (string, bool, error) {
	h, found, err := c.cache.Get(ctx, c.namespace, id)
	if err != nil {
		// A broken cache should not stop the run.
		c.logger.Warn("header cache read failed", "id", id, "err", err)
	} else if found {
		c.hits++
		return h.From, h.HasFrom, nil
	}

	c.misses++
	from, ok, err := c.inner.FromHeader(ctx, id)
	if err != nil {
		return "", false, err
	}
	if err := c.cache.Put(ctx, Header{Namespace: c.namespace, ID: id, From: from, HasFrom: ok}); err != nil {
		c.logger.Warn("header cache write failed", "id", id, "err", err)
	}
	return from, ok, nil
}

// Stats reports cache hits and misses since the client was created.
func (c *CachingClient) Stats() (hits, misses int) {
	return c.hits, c.misses
}

// Namespace builds a cache namespace from a provider name and account.
func Namespace(provider, account string) string {
	return fmt.Sprintf("%s:%s", provider, account)
}
