package memo

import (
	"errors"
	"fmt"
	"time"
)

const recordVersion = 1

var (
	errRecordExpired = errors.New("memo: stored record expired")
	errRecordForeign = errors.New("memo: stored record belongs to another key")
)

// record is what a Memo writes to its backing store. It names the key and
// value type it was written for, so a hashed backend key that collides or a
// Memo of another value type sharing the namespace reads as a miss instead
// of a wrong value. Expiry travels with the record for backends that have
// no native TTL.
type record struct {
	Version   int    `json:"ver"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	ExpiresAt int64  `json:"exp,omitempty"`
	Value     []byte `json:"val"`
}

func sealRecord(key, typeName string, value []byte, ttl time.Duration, now time.Time) ([]byte, error) {
	rec := record{Version: recordVersion, Key: key, Type: typeName, Value: value}
	if ttl > 0 {
		rec.ExpiresAt = now.Add(ttl).UnixMilli()
	}
	body, err := jsonAPI.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("memo: encode record: %w", err)
	}
	return body, nil
}

// openRecord returns the value stored for key. errRecordExpired and
// errRecordForeign are misses; any other error means the bytes are not a
// record.
func openRecord(body []byte, key, typeName string, now time.Time) ([]byte, error) {
	var rec record
	if err := jsonAPI.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("memo: decode record: %w", err)
	}
	if rec.Version != recordVersion {
		return nil, fmt.Errorf("memo: decode record: version %d", rec.Version)
	}
	if rec.Key != key {
		return nil, errRecordForeign
	}
	if rec.Type != typeName {
		return nil, fmt.Errorf("memo: stored record holds %s, want %s", rec.Type, typeName)
	}
	if rec.ExpiresAt > 0 && now.UnixMilli() > rec.ExpiresAt {
		return nil, errRecordExpired
	}
	return rec.Value, nil
}
