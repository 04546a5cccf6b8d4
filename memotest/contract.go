package memotest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goforj/memo/memocore"
	"github.com/google/uuid"
)

// Options configures the store contract checks.
type Options struct {
	// CaseName is folded into every key. Defaults to t.Name().
	CaseName string
	// NullSemantics expects every read to miss.
	NullSemantics bool
	// SkipCloneCheck disables the "Get returns a private copy" assertion.
	SkipCloneCheck bool
	// TTL is the expiry used by the TTL check.
	TTL time.Duration
	// TTLWait bounds how long the TTL check polls for expiry.
	TTLWait time.Duration
	// SkipTTL disables the TTL check for backends with second granularity
	// and for backends that leave expiry to the record.
	SkipTTL bool
}

// Store is the contract exercised by RunStoreContract.
type Store = memocore.Store

// RunStoreContract runs a backend-agnostic store contract suite. Keys are
// scoped with a fresh UUID so repeated runs against a shared backend never
// observe each other's data.
func RunStoreContract(t *testing.T, store Store, opts Options) {
	t.Helper()

	caseName := opts.CaseName
	if caseName == "" {
		caseName = t.Name()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 50 * time.Millisecond
	}
	wait := opts.TTLWait
	if wait <= 0 {
		wait = 120 * time.Millisecond
	}

	ctx := context.Background()
	run := uuid.NewString()
	key := func(s string) string {
		return sanitize(caseName) + ":" + run + ":" + s
	}

	t.Run("round_trip", func(t *testing.T) {
		if err := store.Set(ctx, key("alpha"), []byte("value"), time.Minute); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		body, ok, err := store.Get(ctx, key("alpha"))
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if opts.NullSemantics {
			if ok {
				t.Fatalf("expected miss for null semantics, got %q", body)
			}
			return
		}
		if !ok || string(body) != "value" {
			t.Fatalf("unexpected get result: ok=%v body=%q", ok, body)
		}
		if opts.SkipCloneCheck {
			return
		}
		body[0] = 'X'
		again, ok, err := store.Get(ctx, key("alpha"))
		if err != nil || !ok || string(again) != "value" {
			t.Fatalf("expected stored value unchanged, got ok=%v body=%q err=%v", ok, again, err)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		if opts.NullSemantics {
			t.Skip("null store keeps nothing")
		}
		if err := store.Set(ctx, key("over"), []byte("one"), time.Minute); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if err := store.Set(ctx, key("over"), []byte("two"), time.Minute); err != nil {
			t.Fatalf("overwrite failed: %v", err)
		}
		body, ok, err := store.Get(ctx, key("over"))
		if err != nil || !ok || string(body) != "two" {
			t.Fatalf("expected overwritten value, got ok=%v body=%q err=%v", ok, body, err)
		}
	})

	t.Run("empty_value", func(t *testing.T) {
		if opts.NullSemantics {
			t.Skip("null store keeps nothing")
		}
		if err := store.Set(ctx, key("empty"), []byte{}, time.Minute); err != nil {
			t.Fatalf("set empty failed: %v", err)
		}
		body, ok, err := store.Get(ctx, key("empty"))
		if err != nil || !ok || len(body) != 0 {
			t.Fatalf("expected empty hit, got ok=%v body=%q err=%v", ok, body, err)
		}
	})

	t.Run("ttl", func(t *testing.T) {
		if opts.SkipTTL {
			t.Skip("ttl check disabled")
		}
		if err := store.Set(ctx, key("ttl"), []byte("v"), ttl); err != nil {
			t.Fatalf("set ttl failed: %v", err)
		}
		if err := waitForMiss(ctx, store, key("ttl"), wait); err != nil {
			t.Fatalf("expected ttl expiry: %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := store.Set(ctx, key("gone"), []byte("x"), time.Minute); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if err := store.Set(ctx, key("kept"), []byte("y"), time.Minute); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		if err := store.Delete(ctx, key("gone")); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if err := store.Delete(ctx, key("missing")); err != nil {
			t.Fatalf("delete of a missing key should succeed: %v", err)
		}
		if _, ok, err := store.Get(ctx, key("gone")); err != nil || ok {
			t.Fatalf("expected deleted key to miss; ok=%v err=%v", ok, err)
		}
		if opts.NullSemantics {
			return
		}
		if body, ok, err := store.Get(ctx, key("kept")); err != nil || !ok || string(body) != "y" {
			t.Fatalf("expected neighbour to survive delete; ok=%v body=%q err=%v", ok, body, err)
		}
	})

	t.Run("long_key", func(t *testing.T) {
		if opts.NullSemantics {
			t.Skip("null store keeps nothing")
		}
		long := key(strings.Repeat("k", 1024))
		if err := store.Set(ctx, long, []byte("long"), time.Minute); err != nil {
			t.Fatalf("set long key failed: %v", err)
		}
		body, ok, err := store.Get(ctx, long)
		if err != nil || !ok || string(body) != "long" {
			t.Fatalf("expected long key round trip; ok=%v body=%q err=%v", ok, body, err)
		}
	})
}

func waitForMiss(ctx context.Context, store Store, key string, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		_, ok, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("key %q still present after %s", key, wait)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(s)
}
