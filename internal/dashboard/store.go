package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"punktlich/internal/db"
	"punktlich/internal/departures"
)

// Store reads the layers the dashboard shows.
type Store interface {
	Gold(ctx context.Context, services []string) ([]departures.Gold, error)
	ServiceTypes(ctx context.Context) ([]string, error)
	LatestDepartures(ctx context.Context, limit int) ([]departures.Silver, error)
}

// DuckStore opens the DuckDB file read-only for every query so the pipeline
// can keep the write lock between requests.
type DuckStore struct {
	path string
}

func NewDuckStore(path string) *DuckStore {
	return &DuckStore{path: path}
}

func (s *DuckStore) Gold(ctx context.Context, services []string) ([]departures.Gold, error) {
	conn, err := db.OpenReadOnly(s.path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return db.FetchGold(ctx, conn, services)
}

func (s *DuckStore) ServiceTypes(ctx context.Context) ([]string, error) {
	conn, err := db.OpenReadOnly(s.path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return db.ServiceTypes(ctx, conn)
}

func (s *DuckStore) LatestDepartures(ctx context.Context, limit int) ([]departures.Silver, error) {
	conn, err := db.OpenReadOnly(s.path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if limit < 0 {
		limit = 0
	}
	return db.FetchDepartures(ctx, conn, uint64(limit))
}

// cachedStore keeps successful results for a short TTL.
type cachedStore struct {
	next  Store
	cache *cache.Cache
}

// NewCachedStore wraps next with a TTL cache. A zero TTL disables caching.
func NewCachedStore(next Store, ttl time.Duration) Store {
	if ttl <= 0 {
		return next
	}
	return &cachedStore{next: next, cache: cache.New(ttl, 2*ttl)}
}

func (c *cachedStore) Gold(ctx context.Context, services []string) ([]departures.Gold, error) {
	sorted := append([]string(nil), services...)
	sort.Strings(sorted)
	key := "gold:" + strings.Join(sorted, "\x1f")
	if v, ok := c.cache.Get(key); ok {
		return v.([]departures.Gold), nil
	}
	rows, err := c.next.Gold(ctx, services)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, rows, cache.DefaultExpiration)
	return rows, nil
}

func (c *cachedStore) ServiceTypes(ctx context.Context) ([]string, error) {
	const key = "service-types"
	if v, ok := c.cache.Get(key); ok {
		return v.([]string), nil
	}
	types, err := c.next.ServiceTypes(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, types, cache.DefaultExpiration)
	return types, nil
}

func (c *cachedStore) LatestDepartures(ctx context.Context, limit int) ([]departures.Silver, error) {
	key := fmt.Sprintf("departures:%d", limit)
	if v, ok := c.cache.Get(key); ok {
		return v.([]departures.Silver), nil
	}
	rows, err := c.next.LatestDepartures(ctx, limit)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, rows, cache.DefaultExpiration)
	return rows, nil
}
