package memo

import "sync/atomic"

// Stats holds memo counters using atomics so lookups never contend on them.
type Stats struct {
	hits         atomic.Int64
	misses       atomic.Int64
	computations atomic.Int64
	failures     atomic.Int64
	storeHits    atomic.Int64
	storeErrors  atomic.Int64
}

func (s *Stats) hit()        { s.hits.Add(1) }
func (s *Stats) miss()       { s.misses.Add(1) }
func (s *Stats) compute()    { s.computations.Add(1) }
func (s *Stats) fail()       { s.failures.Add(1) }
func (s *Stats) storeHit()   { s.storeHits.Add(1) }
func (s *Stats) storeError() { s.storeErrors.Add(1) }

// Snapshot is a point-in-time copy of memo statistics.
type Snapshot struct {
	// Hits counts lookups answered from the in-process map.
	Hits int64
	// Misses counts lookups that found no entry, including callers that
	// waited on another goroutine's computation.
	Misses int64
	// Computations counts invocations of the wrapped computation.
	Computations int64
	// Failures counts computations that returned an error or panicked.
	Failures int64
	// StoreHits counts misses answered by the backing store.
	StoreHits int64
	// StoreErrors counts backing store, key encoding and codec failures.
	StoreErrors int64
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (s Snapshot) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Snapshot returns a point-in-time copy of the counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Hits:         s.hits.Load(),
		Misses:       s.misses.Load(),
		Computations: s.computations.Load(),
		Failures:     s.failures.Load(),
		StoreHits:    s.storeHits.Load(),
		StoreErrors:  s.storeErrors.Load(),
	}
}
