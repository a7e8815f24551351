package sequencer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"go-drum/audio"
	"go-drum/debug"
)

// ErrUnknownSample is returned for ids that were never added to the cache
var ErrUnknownSample = errors.New("unknown sample")

// ResampleFunc produces a copy of buf played back at ratio times the speed
type ResampleFunc func(buf *audio.Buffer, ratio float64) (*audio.Buffer, error)

type cacheKey struct {
	id    string
	ratio float64
}

// CacheStats counts cache traffic
type CacheStats struct {
	Hits     int64
	Misses   int64
	Computed int64
	Entries  int
}

// ResampleCache maps (sample id, ratio) to a resampled buffer. Entries are
// never evicted, so the same key always returns the same buffer.
// Safe for concurrent use: the prewarm workers share it with the loop.
type ResampleCache struct {
	resample ResampleFunc

	mu      sync.RWMutex
	sources map[string]*audio.Buffer
	entries map[cacheKey]*audio.Buffer

	group singleflight.Group

	hits     atomic.Int64
	misses   atomic.Int64
	computed atomic.Int64
}

// NewResampleCache creates an empty cache using fn for misses
func NewResampleCache(fn ResampleFunc) *ResampleCache {
	return &ResampleCache{
		resample: fn,
		sources:  make(map[string]*audio.Buffer),
		entries:  make(map[cacheKey]*audio.Buffer),
	}
}

// Add registers a source buffer. Ratio 1 for id maps to src itself.
func (c *ResampleCache) Add(id string, src *audio.Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[id] = src
	c.entries[cacheKey{id, 1}] = src
}

// Source returns the unshifted buffer for id, or nil
func (c *ResampleCache) Source(id string) *audio.Buffer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sources[id]
}

func (c *ResampleCache) lookup(k cacheKey) (*audio.Buffer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.entries[k]
	return b, ok
}

// Get returns the buffer for (id, ratio), computing it on a miss.
// Concurrent misses on the same key share one computation.
func (c *ResampleCache) Get(id string, ratio float64) (*audio.Buffer, error) {
	k := cacheKey{id, ratio}
	if b, ok := c.lookup(k); ok {
		c.hits.Add(1)
		return b, nil
	}
	c.misses.Add(1)

	flight := id + "@" + strconv.FormatFloat(ratio, 'g', -1, 64)
	v, err, _ := c.group.Do(flight, func() (any, error) {
		// a previous flight may have stored it between lookup and Do
		if b, ok := c.lookup(k); ok {
			return b, nil
		}
		src := c.Source(id)
		if src == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSample, id)
		}
		out, err := c.resample(src, ratio)
		if err != nil {
			return nil, fmt.Errorf("resample %s x%.4f: %w", id, ratio, err)
		}
		c.computed.Add(1)

		c.mu.Lock()
		c.entries[k] = out
		c.mu.Unlock()
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*audio.Buffer), nil
}

// Len returns the number of stored entries, ratio 1 included
func (c *ResampleCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ResampleCache) Stats() CacheStats {
	return CacheStats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Computed: c.computed.Load(),
		Entries:  c.Len(),
	}
}

// Prewarm fills the full semitone table for every id using at most workers
// goroutines. Failures of single keys are logged and skipped; only
// cancellation of ctx is returned.
func (c *ResampleCache) Prewarm(ctx context.Context, ids []string, workers int) error {
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, id := range ids {
		for s := MinPitch; s <= MaxPitch; s++ {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				if _, err := c.Get(id, PitchRatio(s)); err != nil {
					debug.Log("cache", "prewarm %s %+d: %v", id, s, err)
				}
				return nil
			})
		}
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	st := c.Stats()
	debug.Log("cache", "prewarm done: entries=%d computed=%d err=%v", st.Entries, st.Computed, err)
	return err
}
