package memo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Swapped in tests to simulate a full disk or a failed rename.
var (
	createTempFile = os.CreateTemp
	renameFile     = os.Rename
)

// fileStore writes each record to dir/<h[:2]>/<h>, h being the sha256 of the
// key, so no directory grows past a few thousand entries. Writes go through
// a temp file and a rename, so readers see the old record or the new one.
// Files never expire on their own; a Memo drops a record once the expiry
// stamped inside it has passed.
type fileStore struct {
	dir string
}

func newFileStore(dir string) (*fileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("memo: file store dir: %w", err)
	}
	return &fileStore{dir: dir}, nil
}

func (*fileStore) Driver() Driver { return DriverFile }

func (s *fileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	body, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func (s *fileStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	tmp, err := createTempFile(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return err
	}
	_, err = bytes.NewReader(value).WriteTo(tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = renameFile(tmp.Name(), target)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
	}
	return err
}

func (s *fileStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *fileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(s.dir, name[:2], name)
}
