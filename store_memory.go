package memo

import (
	"bytes"
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore keeps records in a go-cache instance. It is only shared by
// Memos in the same process, which is enough for several Memos over one
// computation or for tests.
type memoryStore struct {
	items *gocache.Cache
}

func newMemoryStore(cfg StoreConfig) *memoryStore {
	return &memoryStore{items: gocache.New(cfg.DefaultTTL, cfg.MemoryCleanupInterval)}
}

func (*memoryStore) Driver() Driver { return DriverMemory }

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, found := s.items.Get(key)
	body, isBytes := raw.([]byte)
	if !found || !isBytes {
		return nil, false, nil
	}
	return bytes.Clone(body), true, nil
}

// Set stores a private copy. ttl <= 0 takes the cache default; go-cache
// would read a negative ttl as "never expire".
func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	if value == nil {
		value = []byte{}
	}
	s.items.Set(key, bytes.Clone(value), ttl)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}
