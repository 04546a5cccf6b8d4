package memo

import (
	"context"
	"testing"
	"time"

	"github.com/goforj/memo/memotest"
)

func newTestMemoryStore(ttl time.Duration) *memoryStore {
	return newMemoryStore(StoreConfig{
		BaseConfig:            BaseConfig{DefaultTTL: ttl},
		MemoryCleanupInterval: time.Minute,
	})
}

func TestMemoryStoreContract(t *testing.T) {
	memotest.RunStoreContract(t, newTestMemoryStore(time.Minute), memotest.Options{})
}

func TestMemoryStoreDefaultTTL(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(20 * time.Millisecond)
	if err := store.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok, err := store.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected default ttl expiry; ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreNegativeTTLUsesDefault(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(20 * time.Millisecond)
	if err := store.Set(ctx, "k", []byte("v"), -time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatalf("expected negative ttl to fall back to the default, not to never expire")
	}
}

func TestMemoryStoreCopiesOnSet(t *testing.T) {
	ctx := context.Background()
	store := newTestMemoryStore(time.Minute)
	value := []byte("abc")
	if err := store.Set(ctx, "k", value, 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value[0] = 'X'
	body, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(body) != "abc" {
		t.Fatalf("expected stored copy, got ok=%v body=%q err=%v", ok, body, err)
	}
}
