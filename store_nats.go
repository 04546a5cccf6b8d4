package memo

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSKeyValue is the part of nats.KeyValue the nats driver calls.
type NATSKeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Purge(key string, opts ...nats.DeleteOpt) error
}

// natsStore keeps records in a JetStream key-value bucket. Keys become
// "<prefix>.<base64url(key)>" since bucket keys only allow a small alphabet.
// Records expire through the bucket's MaxAge or the expiry stamped inside
// them; the bucket API has no per-key TTL.
type natsStore struct {
	kv     NATSKeyValue
	prefix string
}

func newNATSStore(cfg StoreConfig) *natsStore {
	return &natsStore{kv: cfg.NATSKeyValue, prefix: natsToken(cfg.Prefix) + "."}
}

func (*natsStore) Driver() Driver { return DriverNATS }

func (s *natsStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, err := s.kv.Get(s.prefix + natsToken(key))
	if natsMissing(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if op := entry.Operation(); op != nats.KeyValuePut {
		return nil, false, nil
	}
	out := make([]byte, len(entry.Value()))
	copy(out, entry.Value())
	return out, true, nil
}

func (s *natsStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	_, err := s.kv.Put(s.prefix+natsToken(key), value)
	return err
}

// Delete purges the key so its history does not outlive the record.
func (s *natsStore) Delete(_ context.Context, key string) error {
	if err := s.kv.Purge(s.prefix + natsToken(key)); err != nil && !natsMissing(err) {
		return err
	}
	return nil
}

func natsMissing(err error) bool {
	return errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
}

func natsToken(s string) string {
	if s == "" {
		return "_"
	}
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
