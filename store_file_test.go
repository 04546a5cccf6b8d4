package memo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/goforj/memo/memotest"
)

func newTestFileStore(t *testing.T) *fileStore {
	t.Helper()
	store, err := newFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return store
}

func TestFileStoreContract(t *testing.T) {
	memotest.RunStoreContract(t, newTestFileStore(t), memotest.Options{SkipTTL: true})
}

func TestFileStoreShardsByHash(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)
	if err := store.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	path := store.path("k")
	if filepath.Dir(filepath.Dir(path)) != store.dir {
		t.Fatalf("expected one shard level under %s, got %s", store.dir, path)
	}
	if got := filepath.Base(filepath.Dir(path)); got != filepath.Base(path)[:2] {
		t.Fatalf("expected shard %q to match name prefix of %q", got, filepath.Base(path))
	}
	if body, err := os.ReadFile(path); err != nil || string(body) != "v" {
		t.Fatalf("expected raw record on disk, got %q err=%v", body, err)
	}
}

func TestFileStoreWriteFailures(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	origCreate, origRename := createTempFile, renameFile
	t.Cleanup(func() { createTempFile, renameFile = origCreate, origRename })

	createTempFile = func(string, string) (*os.File, error) { return nil, errors.New("disk full") }
	if err := store.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatalf("expected create temp error")
	}
	createTempFile = origCreate

	renameFile = func(string, string) error { return errors.New("rename") }
	if err := store.Set(ctx, "k", []byte("v"), 0); err == nil {
		t.Fatalf("expected rename error")
	}
	entries, err := os.ReadDir(filepath.Dir(store.path("k")))
	if err != nil {
		t.Fatalf("read shard dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temp file cleaned up, found %d entries", len(entries))
	}
	if _, ok, err := store.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected failed writes to leave no record; ok=%v err=%v", ok, err)
	}
}

func TestFileStoreBadDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := newFileStore(filepath.Join(file, "sub")); err == nil {
		t.Fatalf("expected error creating store under a regular file")
	}
}
