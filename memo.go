package memo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Func is the computation wrapped by a Memo. It must return the same value
// for equal keys; the first successful result for a key is reused forever.
type Func[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Memo memoizes a computation keyed by K.
//
// Each distinct key is computed at most once over the lifetime of the Memo,
// including under concurrent use. Failed computations are not stored, so the
// next lookup for that key retries. Entries are never evicted.
type Memo[K comparable, V any] struct {
	fn       Func[K, V]
	cfg      config[K, V]
	typeName string

	mu      sync.Mutex
	entries map[K]V
	calls   map[K]*call[V]

	stats Stats
}

// call tracks an in-flight computation so concurrent lookups of the same key wait on it.
type call[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// NewCtx creates a Memo around a context-aware computation.
// @group Constructors
//
// Example: memoize a lookup
//
//	m := memo.NewCtx(func(ctx context.Context, id int) (string, error) {
//		return fetchName(ctx, id)
//	})
//	name, err := m.GetCtx(ctx, 42)
func NewCtx[K comparable, V any](fn Func[K, V], opts ...Option[K, V]) *Memo[K, V] {
	cfg := defaultConfig[K, V]()
	for _, opt := range opts {
		opt(&cfg)
	}
	valueType := reflect.TypeFor[V]()
	if cfg.store != nil && !cfg.codecSet {
		if problem := valueTypeProblem(valueType); problem != "" {
			cfg.logger.Warn("memo backing store disabled",
				zap.String("value_type", valueType.String()),
				zap.String("reason", problem),
				zap.String("driver", string(cfg.store.Driver())),
			)
			cfg.store = nil
		}
	}
	return &Memo[K, V]{
		fn:       fn,
		cfg:      cfg,
		typeName: valueType.String(),
		entries:  make(map[K]V),
		calls:    make(map[K]*call[V]),
	}
}

// New creates a Memo around a fallible computation.
// @group Constructors
//
// Example: memoize string length
//
//	m := memo.New(func(s string) (int, error) { return len(s), nil })
//	n, _ := m.Get("Apple")
//	fmt.Println(n) // 5
func New[K comparable, V any](fn func(K) (V, error), opts ...Option[K, V]) *Memo[K, V] {
	if fn == nil {
		return NewCtx[K, V](nil, opts...)
	}
	return NewCtx(func(_ context.Context, key K) (V, error) {
		return fn(key)
	}, opts...)
}

// NewPure creates a Memo around a computation that cannot fail.
// @group Constructors
//
// Example: identity
//
//	m := memo.NewPure(func(x int) int { return x })
//	fmt.Println(m.MustGet(3)) // 3
func NewPure[K comparable, V any](fn func(K) V, opts ...Option[K, V]) *Memo[K, V] {
	if fn == nil {
		return NewCtx[K, V](nil, opts...)
	}
	return NewCtx(func(_ context.Context, key K) (V, error) {
		return fn(key), nil
	}, opts...)
}

// NewWithEnv creates a Memo whose computation receives an environment value
// captured once at construction. Pass E by value for a read-only snapshot or
// as a pointer for state the computation may mutate; the binding itself is
// never replaced.
// @group Constructors
//
// Example: captured threshold
//
//	m := memo.NewWithEnv(10, func(limit int, x int) (bool, error) { return x > limit, nil })
//	fmt.Println(m.MustGet(11)) // true
func NewWithEnv[E any, K comparable, V any](env E, fn func(env E, key K) (V, error), opts ...Option[K, V]) *Memo[K, V] {
	if fn == nil {
		return NewCtx[K, V](nil, opts...)
	}
	return NewCtx(func(_ context.Context, key K) (V, error) {
		return fn(env, key)
	}, opts...)
}

// Get returns the memoized value for key, computing it on the first lookup.
// @group Lookup
func (m *Memo[K, V]) Get(key K) (V, error) {
	return m.GetCtx(context.Background(), key)
}

// GetCtx is the context-aware variant of Get. ctx is passed to the
// computation and the backing store. A caller waiting on another
// goroutine's computation stops waiting when ctx is done; if instead the
// other caller's context ended its computation, the waiter takes over.
// @group Lookup
func (m *Memo[K, V]) GetCtx(ctx context.Context, key K) (V, error) {
	start := time.Now()
	counted := false
	for {
		m.mu.Lock()
		if v, ok := m.entries[key]; ok {
			m.mu.Unlock()
			if !counted {
				m.stats.hit()
			}
			m.observe(ctx, OpGet, key, !counted, nil, start)
			return m.cfg.clone(v), nil
		}
		if !counted {
			m.stats.miss()
			counted = true
		}
		if c, ok := m.calls[key]; ok {
			m.mu.Unlock()
			v, retry, err := m.wait(ctx, c)
			if retry {
				continue
			}
			m.observe(ctx, OpGet, key, false, err, start)
			return v, err
		}
		c := &call[V]{done: make(chan struct{})}
		m.calls[key] = c
		m.mu.Unlock()

		v, err := m.lead(ctx, key, c)
		m.observe(ctx, OpGet, key, false, err, start)
		return v, err
	}
}

// MustGet is Get for computations that are not expected to fail. It panics
// with the computation error otherwise.
// @group Lookup
func (m *Memo[K, V]) MustGet(key K) V {
	v, err := m.Get(key)
	if err != nil {
		panic(err)
	}
	return v
}

// Peek returns the stored value for key without computing it.
// @group Lookup
func (m *Memo[K, V]) Peek(key K) (V, bool) {
	m.mu.Lock()
	v, ok := m.entries[key]
	m.mu.Unlock()
	if !ok {
		var zero V
		return zero, false
	}
	return m.cfg.clone(v), true
}

// Len reports the number of memoized keys.
func (m *Memo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns a snapshot of the memo counters.
func (m *Memo[K, V]) Stats() Snapshot {
	return m.stats.Snapshot()
}

// Store returns the backing store, or nil when the Memo is process-local.
func (m *Memo[K, V]) Store() Store {
	return m.cfg.store
}

// wait blocks until c finishes. retry is set when the leader was stopped by
// its own context while ours is still live.
func (m *Memo[K, V]) wait(ctx context.Context, c *call[V]) (v V, retry bool, err error) {
	select {
	case <-c.done:
	case <-ctx.Done():
		return v, false, ctx.Err()
	}
	if c.err != nil {
		if isContextErr(c.err) && ctx.Err() == nil {
			return v, true, nil
		}
		return v, false, c.err
	}
	return m.cfg.clone(c.value), false, nil
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// lead runs the load for key on behalf of every caller waiting on c.
func (m *Memo[K, V]) lead(ctx context.Context, key K, c *call[V]) (v V, err error) {
	normal := false
	defer func() {
		if normal {
			return
		}
		r := recover()
		m.stats.fail()
		c.err = &PanicError{Key: fmt.Sprint(key), Value: r}
		m.finish(key, c, false)
		if r != nil {
			panic(r)
		}
	}()

	v, err = m.load(ctx, key)
	normal = true
	c.err = err
	if err == nil {
		c.value = m.cfg.clone(v)
	}
	m.finish(key, c, err == nil)
	return v, err
}

func (m *Memo[K, V]) finish(key K, c *call[V], store bool) {
	m.mu.Lock()
	if _, exists := m.entries[key]; store && !exists {
		m.entries[key] = c.value
	}
	delete(m.calls, key)
	m.mu.Unlock()
	close(c.done)
}

func (m *Memo[K, V]) load(ctx context.Context, key K) (V, error) {
	var zero V
	storeKey, tiered := m.storeKey(ctx, key)
	if tiered {
		if v, ok := m.fetch(ctx, key, storeKey); ok {
			return v, nil
		}
	}
	if m.fn == nil {
		return zero, ErrNilComputation
	}

	start := time.Now()
	m.stats.compute()
	v, err := m.fn(ctx, key)
	m.observe(ctx, OpCompute, key, false, err, start)
	if err != nil {
		m.stats.fail()
		return zero, err
	}
	if tiered {
		m.persist(ctx, key, storeKey, v)
	}
	return v, nil
}

func (m *Memo[K, V]) storeKey(ctx context.Context, key K) (string, bool) {
	if m.cfg.store == nil {
		return "", false
	}
	encoded, err := m.cfg.keyFunc(key)
	if err != nil {
		m.storeFailed(ctx, OpStoreGet, key, "encode key", err)
		return "", false
	}
	return m.cfg.namespace + ":" + encoded, true
}

// fetch reads key's record from the backing store. Anything other than a
// live record written for this key and value type is a miss.
func (m *Memo[K, V]) fetch(ctx context.Context, key K, storeKey string) (V, bool) {
	var zero V
	start := time.Now()
	body, ok, err := m.cfg.store.Get(ctx, storeKey)
	if err != nil {
		m.observe(ctx, OpStoreGet, key, false, err, start)
		m.storeFailed(ctx, OpStoreGet, key, "read backing store", err)
		return zero, false
	}
	if !ok {
		m.observe(ctx, OpStoreGet, key, false, nil, start)
		return zero, false
	}
	payload, err := openRecord(body, storeKey, m.typeName, time.Now())
	switch {
	case errors.Is(err, errRecordExpired):
		m.observe(ctx, OpStoreGet, key, false, nil, start)
		if err := m.cfg.store.Delete(ctx, storeKey); err != nil {
			m.storeFailed(ctx, OpStoreGet, key, "drop expired record", err)
		}
		return zero, false
	case errors.Is(err, errRecordForeign):
		m.observe(ctx, OpStoreGet, key, false, nil, start)
		return zero, false
	case err != nil:
		m.observe(ctx, OpStoreGet, key, false, err, start)
		m.storeFailed(ctx, OpStoreGet, key, "open stored record", err)
		return zero, false
	}
	v, err := m.cfg.codec.Decode(payload)
	m.observe(ctx, OpStoreGet, key, err == nil, err, start)
	if err != nil {
		m.storeFailed(ctx, OpStoreGet, key, "decode stored value", err)
		return zero, false
	}
	m.stats.storeHit()
	return v, true
}

func (m *Memo[K, V]) persist(ctx context.Context, key K, storeKey string, v V) {
	payload, err := m.cfg.codec.Encode(v)
	if err != nil {
		m.storeFailed(ctx, OpStoreSet, key, "encode value", err)
		return
	}
	body, err := sealRecord(storeKey, m.typeName, payload, m.cfg.storeTTL, time.Now())
	if err != nil {
		m.storeFailed(ctx, OpStoreSet, key, "encode record", err)
		return
	}
	start := time.Now()
	err = m.cfg.store.Set(ctx, storeKey, body, m.cfg.storeTTL)
	m.observe(ctx, OpStoreSet, key, false, err, start)
	if err != nil {
		m.storeFailed(ctx, OpStoreSet, key, "write backing store", err)
	}
}

// storeFailed records a backing tier failure. The lookup carries on as if
// the store had missed.
func (m *Memo[K, V]) storeFailed(_ context.Context, op Op, key K, what string, err error) {
	m.stats.storeError()
	m.cfg.logger.Warn("memo backing store degraded",
		zap.String("op", string(op)),
		zap.String("stage", what),
		zap.String("key", fmt.Sprint(key)),
		zap.String("driver", string(m.driver())),
		zap.Error(err),
	)
}

func (m *Memo[K, V]) driver() Driver {
	if m.cfg.store == nil {
		return ""
	}
	return m.cfg.store.Driver()
}

func (m *Memo[K, V]) observe(ctx context.Context, op Op, key K, hit bool, err error, start time.Time) {
	if m.cfg.observer == nil {
		return
	}
	m.cfg.observer.OnMemoOp(ctx, op, fmt.Sprint(key), hit, err, time.Since(start), m.driver())
}
