package query

import (
	"golang.org/x/sync/singleflight"
)

// Planner ties the result cache to singleflight de-duplication: a
// given fingerprint is computed at most once across concurrent
// callers, and a successful compute populates the cache for
// subsequent hits (§4.I step 5 "Singleflight").
type Planner struct {
	cache *ResultCache
	group singleflight.Group
}

// NewPlanner builds a Planner over cache. cache may be nil, in which
// case every call recomputes (useful for hybrid/writer-mode instances
// that disable result caching).
func NewPlanner(cache *ResultCache) *Planner {
	return &Planner{cache: cache}
}

// Execute returns the cached results for fingerprint if present and
// skipCache is false; otherwise it runs compute, sharing one in-flight
// execution across concurrent callers with the same fingerprint, and
// caches a successful result.
func (p *Planner) Execute(fingerprint string, skipCache bool, compute func() ([]Result, error)) ([]Result, error) {
	if !skipCache && p.cache != nil {
		if cached, ok := p.cache.Get(fingerprint); ok {
			return cached, nil
		}
	}

	v, err, _ := p.group.Do(fingerprint, func() (any, error) {
		results, err := compute()
		if err != nil {
			return nil, err
		}
		if !skipCache && p.cache != nil {
			p.cache.Set(fingerprint, results)
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Result), nil
}

// InvalidateCache clears the planner's result cache, if any. Called by
// the facade on every mutating operation (§5 "invalidated on any
// mutation to storage").
func (p *Planner) InvalidateCache() {
	if p.cache != nil {
		p.cache.InvalidateAll()
	}
}
