package memo

import (
	"time"

	"go.uber.org/zap"
)

const defaultNamespace = "memo"

type config[K comparable, V any] struct {
	clone     func(V) V
	store     Store
	storeTTL  time.Duration
	namespace string
	keyFunc   KeyFunc[K]
	codec     ValueCodec[V]
	codecSet  bool
	observer  Observer
	logger    *zap.Logger
}

func defaultConfig[K comparable, V any]() config[K, V] {
	return config[K, V]{
		clone:     func(v V) V { return v },
		storeTTL:  defaultStoreTTL,
		namespace: defaultNamespace,
		keyFunc:   DefaultKey[K],
		codec:     JSONCodec[V](),
		logger:    zap.NewNop(),
	}
}

// Option configures a Memo.
type Option[K comparable, V any] func(*config[K, V])

// WithClone sets the function used to duplicate values on their way into and
// out of the Memo. Values holding references (slices, maps, pointers) need
// one so callers cannot mutate the stored result.
func WithClone[K comparable, V any](fn func(V) V) Option[K, V] {
	return func(c *config[K, V]) {
		if fn != nil {
			c.clone = fn
		}
	}
}

// WithStore adds a shared backing store consulted before the computation runs.
// Without WithCodec the value type must survive a JSON round trip; value
// types holding interfaces, channels or unexported fields keep the Memo
// process-local and the reason is logged.
func WithStore[K comparable, V any](store Store) Option[K, V] {
	return func(c *config[K, V]) {
		c.store = store
	}
}

// WithStoreTTL sets how long values written to the backing store stay
// valid. The default is one hour. ttl <= 0 stamps no expiry on the record and
// leaves it to the store's default TTL, if the backend has one.
func WithStoreTTL[K comparable, V any](ttl time.Duration) Option[K, V] {
	return func(c *config[K, V]) {
		c.storeTTL = ttl
	}
}

// WithNamespace prefixes backing store keys so several memos can share one store.
func WithNamespace[K comparable, V any](namespace string) Option[K, V] {
	return func(c *config[K, V]) {
		if namespace != "" {
			c.namespace = namespace
		}
	}
}

// WithKeyFunc overrides how keys are encoded for the backing store.
func WithKeyFunc[K comparable, V any](fn KeyFunc[K]) Option[K, V] {
	return func(c *config[K, V]) {
		if fn != nil {
			c.keyFunc = fn
		}
	}
}

// WithCodec overrides how values are encoded for the backing store.
func WithCodec[K comparable, V any](codec ValueCodec[V]) Option[K, V] {
	return func(c *config[K, V]) {
		if codec.Encode != nil && codec.Decode != nil {
			c.codec = codec
			c.codecSet = true
		}
	}
}

// WithObserver attaches an observer to receive operation events.
func WithObserver[K comparable, V any](o Observer) Option[K, V] {
	return func(c *config[K, V]) {
		c.observer = o
	}
}

// WithLogger sets the logger used to report backing store failures.
func WithLogger[K comparable, V any](logger *zap.Logger) Option[K, V] {
	return func(c *config[K, V]) {
		if logger != nil {
			c.logger = logger
		}
	}
}
