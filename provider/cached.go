package provider

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/Paranoid-AF/ghostline/inline"
)

// contextBytes is how much text before the caret keys a cache entry.
const contextBytes = 512

// Cached remembers the proposals of a provider for a short time and shares
// one upstream call between identical concurrent requests. Results are
// streamed only once the wrapped provider has finished.
type Cached struct {
	inner inline.Provider
	log   *slog.Logger
	cache *ttlcache.Cache[string, []inline.Element]
	group singleflight.Group
}

// NewCached wraps p. A non-positive capacity means unbounded.
func NewCached(p inline.Provider, ttl time.Duration, capacity int, log *slog.Logger) *Cached {
	if log == nil {
		log = slog.Default()
	}
	opts := []ttlcache.Option[string, []inline.Element]{
		ttlcache.WithTTL[string, []inline.Element](ttl),
		ttlcache.WithDisableTouchOnHit[string, []inline.Element](),
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []inline.Element](uint64(capacity)))
	}
	c := ttlcache.New(opts...)
	go c.Start()
	return &Cached{inner: p, log: log, cache: c}
}

// Close stops the cache expiration loop.
func (c *Cached) Close() {
	c.cache.Stop()
}

// Len returns the number of cached results.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Unwrap returns the wrapped provider.
func (c *Cached) Unwrap() inline.Provider { return c.inner }

func (c *Cached) ID() string { return c.inner.ID() }

func (c *Cached) IsEnabled(t inline.Trigger) bool { return c.inner.IsEnabled(t) }

func (c *Cached) RequiresInvalidation(t inline.Trigger) bool {
	if inv, ok := c.inner.(inline.Invalidator); ok {
		return inv.RequiresInvalidation(t)
	}
	return false
}

func (c *Cached) Proposals(ctx context.Context, req *inline.Request) iter.Seq2[inline.Element, error] {
	return func(yield func(inline.Element, error) bool) {
		elems, err := c.lookup(ctx, req)
		if err != nil {
			yield(inline.Element{}, err)
			return
		}
		for _, el := range elems {
			if !yield(el, nil) {
				return
			}
		}
	}
}

func (c *Cached) lookup(ctx context.Context, req *inline.Request) ([]inline.Element, error) {
	key := cacheKey(req)
	if item := c.cache.Get(key); item != nil {
		c.log.Debug("proposal cache hit", "provider", c.inner.ID())
		return item.Value(), nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		elems, err := collect(ctx, c.inner, req)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, elems, ttlcache.DefaultTTL)
		return elems, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			return res.Val.([]inline.Element), nil
		}
		// The shared call belonged to a request that was cancelled; ours is
		// still live.
		if errors.Is(res.Err, context.Canceled) && ctx.Err() == nil {
			return collect(ctx, c.inner, req)
		}
		return nil, res.Err
	}
}

// collect drains p. Panics come back as errors so they never escape a
// singleflight goroutine.
func collect(ctx context.Context, p inline.Provider, req *inline.Request) (elems []inline.Element, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	for el, perr := range p.Proposals(ctx, req) {
		if perr != nil {
			return nil, perr
		}
		elems = append(elems, el)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return elems, nil
}

func cacheKey(req *inline.Request) string {
	doc := req.Document
	before := doc.Slice(max(0, req.EndOffset-contextBytes), req.EndOffset)
	return req.File + "\x00" + before
}
