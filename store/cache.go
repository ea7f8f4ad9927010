package store

import (
	"github.com/dgraph-io/ristretto/v2"

	"github.com/curriculagg/curricula-grade/report"
)

var _ Store = &Cached{}

// Cached keeps recently read reports of a store in memory, bounded by their
// encoded size
type Cached struct {
	Store
	cache *ristretto.Cache[string, cachedReport]
}

type cachedReport struct {
	name    string
	content []byte
}

// NewCached wraps s with a read cache of at most maxCost bytes
func NewCached(s Store, maxCost int64) (*Cached, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, cachedReport]{
		NumCounters: max(maxCost/1024*10, 100),
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cached{Store: s, cache: c}, nil
}

func (c *Cached) put(id, name string, r *report.AssignmentReport) {
	b, err := encode(r)
	if err != nil {
		return
	}
	c.cache.Set(id, cachedReport{name: name, content: b}, int64(len(b)))
	c.cache.Wait()
}

func (c *Cached) Add(name string, r *report.AssignmentReport) (string, error) {
	id, err := c.Store.Add(name, r)
	if err != nil {
		return "", err
	}
	c.put(id, name, r)
	return id, nil
}

func (c *Cached) Get(id string) (string, *report.AssignmentReport, error) {
	if e, ok := c.cache.Get(id); ok {
		if r, err := decode(e.content); err == nil {
			return e.name, r, nil
		}
		c.cache.Del(id)
	}
	name, r, err := c.Store.Get(id)
	if err != nil {
		return "", nil, err
	}
	c.put(id, name, r)
	return name, r, nil
}

func (c *Cached) Remove(id string) bool {
	c.cache.Del(id)
	return c.Store.Remove(id)
}

// Close releases the cache
func (c *Cached) Close() {
	c.cache.Close()
}
