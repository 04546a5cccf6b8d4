package memo

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goforj/memo/memotest"
	"github.com/nats-io/nats.go"
)

func newTestNATSStore(kv NATSKeyValue, prefix string) *natsStore {
	return newNATSStore(StoreConfig{BaseConfig: BaseConfig{Prefix: prefix}, NATSKeyValue: kv})
}

func TestNATSStoreContractWithStubKV(t *testing.T) {
	memotest.RunStoreContract(t, newTestNATSStore(newStubNATSKeyValue("bucket"), "pfx"), memotest.Options{SkipTTL: true})
}

func TestNATSStoreKeysUseBucketAlphabet(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	store := newTestNATSStore(kv, "my app")

	if err := store.Set(ctx, "memo:user profile/42", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	for key := range kv.entries {
		if strings.ContainsAny(key, " :/") {
			t.Fatalf("bucket key %q holds characters nats rejects", key)
		}
		if !strings.HasPrefix(key, natsToken("my app")+".") {
			t.Fatalf("bucket key %q misses the prefix token", key)
		}
	}
}

func TestNATSStorePrefixesDoNotShareKeys(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	mine := newTestNATSStore(kv, "pfx")
	other := newTestNATSStore(kv, "other")

	if err := mine.Set(ctx, "k", []byte("1"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if _, ok, _ := other.Get(ctx, "k"); ok {
		t.Fatalf("expected other prefix to miss")
	}
	if err := other.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete under other prefix: %v", err)
	}
	if _, ok, _ := mine.Get(ctx, "k"); !ok {
		t.Fatalf("expected own key to survive a delete under another prefix")
	}
}

func TestNATSStoreErrorPropagation(t *testing.T) {
	ctx := context.Background()
	kv := newStubNATSKeyValue("bucket")
	store := newTestNATSStore(kv, "pfx")

	kv.getErr = errors.New("get")
	if _, _, err := store.Get(ctx, "k"); err == nil {
		t.Fatalf("expected get error")
	}
	kv.getErr = nil

	kv.putErr = errors.New("put")
	if err := store.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatalf("expected set error")
	}
	kv.putErr = nil

	kv.purgeErr = errors.New("purge")
	if err := store.Delete(ctx, "k"); err == nil {
		t.Fatalf("expected delete error")
	}
	kv.purgeErr = nats.ErrKeyNotFound
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("expected missing key delete to succeed, got %v", err)
	}
}

func TestNATSToken(t *testing.T) {
	if got := natsToken(""); got != "_" {
		t.Fatalf("expected placeholder for empty part, got %q", got)
	}
	if got := natsToken("a b/c"); got != "YSBiL2M" {
		t.Fatalf("unexpected encoding %q", got)
	}
}

type stubNATSKeyValue struct {
	mu     sync.Mutex
	bucket string
	rev    uint64

	entries map[string]*stubNATSKeyValueEntry

	getErr    error
	putErr    error
	purgeErr  error
}

func newStubNATSKeyValue(bucket string) *stubNATSKeyValue {
	return &stubNATSKeyValue{
		bucket:  bucket,
		entries: make(map[string]*stubNATSKeyValueEntry),
	}
}

func (s *stubNATSKeyValue) Get(key string) (nats.KeyValueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	if entry.op != nats.KeyValuePut {
		return nil, nats.ErrKeyDeleted
	}
	cp := *entry
	cp.value = bytes.Clone(entry.value)
	return &cp, nil
}

func (s *stubNATSKeyValue) Put(key string, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return 0, s.putErr
	}
	return s.record(key, bytes.Clone(value), nats.KeyValuePut), nil
}

func (s *stubNATSKeyValue) Purge(key string, _ ...nats.DeleteOpt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.purgeErr != nil {
		return s.purgeErr
	}
	delete(s.entries, key)
	return nil
}

func (s *stubNATSKeyValue) record(key string, value []byte, op nats.KeyValueOp) uint64 {
	s.rev++
	s.entries[key] = &stubNATSKeyValueEntry{
		bucket:   s.bucket,
		key:      key,
		value:    value,
		revision: s.rev,
		created:  time.Now(),
		op:       op,
	}
	return s.rev
}

type stubNATSKeyValueEntry struct {
	bucket   string
	key      string
	value    []byte
	revision uint64
	created  time.Time
	op       nats.KeyValueOp
}

func (e *stubNATSKeyValueEntry) Bucket() string             { return e.bucket }
func (e *stubNATSKeyValueEntry) Key() string                { return e.key }
func (e *stubNATSKeyValueEntry) Value() []byte              { return e.value }
func (e *stubNATSKeyValueEntry) Revision() uint64           { return e.revision }
func (e *stubNATSKeyValueEntry) Created() time.Time         { return e.created }
func (e *stubNATSKeyValueEntry) Delta() uint64              { return 0 }
func (e *stubNATSKeyValueEntry) Operation() nats.KeyValueOp { return e.op }
