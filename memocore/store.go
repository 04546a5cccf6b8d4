package memocore

import (
	"context"
	"time"
)

// Driver names the backend behind a Store.
type Driver string

// Built-in drivers.
const (
	DriverNull      Driver = "null"
	DriverFile      Driver = "file"
	DriverMemory    Driver = "memory"
	DriverMemcached Driver = "memcached"
	DriverDynamo    Driver = "dynamodb"
	DriverSQL       Driver = "sql"
	DriverRedis     Driver = "redis"
	DriverNATS      Driver = "nats"
)

// Drivers lists the built-in drivers in a stable order.
func Drivers() []Driver {
	return []Driver{DriverNull, DriverFile, DriverMemory, DriverMemcached, DriverDynamo, DriverSQL, DriverRedis, DriverNATS}
}

// Store holds opaque memo records addressed by string keys.
//
// Get returns a copy the caller owns. ttl is a hint: backends with native
// expiry apply it, the others keep records until they are deleted and rely
// on the expiry stamped inside each record. Delete of a missing key is not
// an error.
type Store interface {
	Driver() Driver
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CompressionCodec names the compression applied to records before they
// reach a backend.
type CompressionCodec string

const (
	CompressionNone CompressionCodec = "none"
	CompressionGzip CompressionCodec = "gzip"
)

// BaseConfig holds the settings every driver understands.
type BaseConfig struct {
	// DefaultTTL applies to writes that pass ttl <= 0.
	DefaultTTL time.Duration
	// Prefix scopes keys on backends shared with other applications.
	Prefix string
	// Compression, MaxValueBytes and EncryptionKey shape records on the way
	// to the backend, in that order.
	Compression   CompressionCodec
	MaxValueBytes int
	EncryptionKey []byte
}
