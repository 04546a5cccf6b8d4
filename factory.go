package memo

import (
	"context"
	"fmt"
)

// NewStore returns a backing store for the requested driver, wrapped with the
// configured compression, size limit and encryption. The configuration is
// validated first and every problem is reported together.
// @group Constructors
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	store, err := memo.NewStore(ctx, memo.StoreConfig{Driver: memo.DriverMemory})
//	if err != nil {
//		return err
//	}
//	fmt.Println(store.Driver()) // memory
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("memo: invalid %s store config: %w", cfg.Driver, err)
	}
	layers, err := buildLayers(cfg)
	if err != nil {
		return nil, err
	}
	store, err := newDriverStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("memo: open %s store: %w", cfg.Driver, err)
	}
	return withLayers(store, layers), nil
}

func newDriverStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Driver {
	case DriverNull:
		return nullStore{}, nil
	case DriverMemory:
		return newMemoryStore(cfg), nil
	case DriverFile:
		return newFileStore(cfg.FileDir)
	case DriverRedis:
		return newRedisStore(cfg), nil
	case DriverNATS:
		return newNATSStore(cfg), nil
	case DriverSQL:
		return newSQLStore(ctx, cfg)
	case DriverDynamo:
		return newDynamoStore(ctx, cfg)
	case DriverMemcached:
		return newMemcachedStore(cfg), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// NewStoreWith builds a store using a driver and a set of functional options.
// @group Constructors
//
// Example: gzip-compressed memory store
//
//	store, err := memo.NewStoreWith(ctx, memo.DriverMemory,
//		memo.WithCompression(memo.CompressionGzip),
//		memo.WithDefaultTTL(10*time.Minute),
//	)
func NewStoreWith(ctx context.Context, driver Driver, opts ...StoreOption) (Store, error) {
	cfg := StoreConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewStore(ctx, cfg)
}

// NewMemoryStore is a convenience for an in-process store.
// @group Constructors
func NewMemoryStore(ctx context.Context, opts ...StoreOption) (Store, error) {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewNullStore is a convenience for a store that never keeps anything.
// @group Constructors
func NewNullStore(ctx context.Context, opts ...StoreOption) (Store, error) {
	return NewStoreWith(ctx, DriverNull, opts...)
}

// NewFileStore is a convenience for a filesystem-backed store.
// @group Constructors
//
// Example: file helper
//
//	store, err := memo.NewFileStore(ctx, "/var/cache/memo")
//	if err != nil {
//		return err
//	}
//	fmt.Println(store.Driver()) // file
func NewFileStore(ctx context.Context, dir string, opts ...StoreOption) (Store, error) {
	return NewStoreWith(ctx, DriverFile, append([]StoreOption{WithFileDir(dir)}, opts...)...)
}

// NewRedisStore is a convenience for a redis-backed store.
// @group Constructors
//
// Example: redis helper
//
//	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	store, err := memo.NewRedisStore(ctx, client, memo.WithPrefix("svc"))
func NewRedisStore(ctx context.Context, client RedisClient, opts ...StoreOption) (Store, error) {
	return NewStoreWith(ctx, DriverRedis, append([]StoreOption{WithRedisClient(client)}, opts...)...)
}

// NewNATSStore is a convenience for a JetStream key-value backed store.
// @group Constructors
func NewNATSStore(ctx context.Context, kv NATSKeyValue, opts ...StoreOption) (Store, error) {
	return NewStoreWith(ctx, DriverNATS, append([]StoreOption{WithNATSKeyValue(kv)}, opts...)...)
}

// NewSQLStore is a convenience for a database/sql backed store.
// @group Constructors
//
// Example: sqlite helper
//
//	store, err := memo.NewSQLStore(ctx, "sqlite", "file:memo.db", "memo_entries")
func NewSQLStore(ctx context.Context, driverName, dsn, table string, opts ...StoreOption) (Store, error) {
	return NewStoreWith(ctx, DriverSQL, append([]StoreOption{WithSQL(driverName, dsn, table)}, opts...)...)
}

// NewDynamoStore is a convenience for a DynamoDB backed store.
// @group Constructors
func NewDynamoStore(ctx context.Context, opts ...StoreOption) (Store, error) {
	return NewStoreWith(ctx, DriverDynamo, opts...)
}

// NewMemcachedStore is a convenience for a memcached backed store.
// @group Constructors
func NewMemcachedStore(ctx context.Context, addrs []string, opts ...StoreOption) (Store, error) {
	return NewStoreWith(ctx, DriverMemcached, append([]StoreOption{WithMemcachedAddresses(addrs...)}, opts...)...)
}
