package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// FetchFunc loads values for a set of keys in one round trip.
// Keys missing from the returned map resolve to the zero value.
type FetchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

// Thunk waits for the batch holding its key and returns the key's value.
type Thunk[V any] func() (V, error)

// DispatchHook observes every dispatched batch.
type DispatchHook func(kind string, keys int, elapsed time.Duration, err error)

// Loader batches and memoises lookups of one kind.
type Loader[K comparable, V any] struct {
	ctx   context.Context
	kind  string
	fetch FetchFunc[K, V]
	hook  DispatchHook

	mu      sync.Mutex
	pending *pendingBatch[K, V]
	memo    map[K]*pendingBatch[K, V]
}

type pendingBatch[K comparable, V any] struct {
	keys   mapset.Set[K]
	once   sync.Once
	done   chan struct{}
	values map[K]V
	err    error
}

// NewLoader creates a loader whose fetches run under ctx.
func NewLoader[K comparable, V any](ctx context.Context, kind string, fetch FetchFunc[K, V], hook DispatchHook) *Loader[K, V] {
	return &Loader[K, V]{
		ctx:   ctx,
		kind:  kind,
		fetch: fetch,
		hook:  hook,
		memo:  make(map[K]*pendingBatch[K, V]),
	}
}

// Kind returns the loader kind used in errors and metrics.
func (l *Loader[K, V]) Kind() string {
	return l.kind
}

// Load registers key with the open batch and returns a thunk for its value.
// It never blocks.
func (l *Loader[K, V]) Load(key K) Thunk[V] {
	l.mu.Lock()
	b, ok := l.memo[key]
	if !ok {
		if l.pending == nil {
			l.pending = &pendingBatch[K, V]{
				keys: mapset.NewThreadUnsafeSet[K](),
				done: make(chan struct{}),
			}
		}
		b = l.pending
		b.keys.Add(key)
		l.memo[key] = b
	}
	l.mu.Unlock()

	return func() (V, error) {
		l.dispatch(b)
		<-b.done
		if b.err != nil {
			var zero V
			return zero, b.err
		}
		return b.values[key], nil
	}
}

// LoadMany registers all keys and returns thunks in the same order.
func (l *Loader[K, V]) LoadMany(keys []K) []Thunk[V] {
	thunks := make([]Thunk[V], len(keys))
	for i, k := range keys {
		thunks[i] = l.Load(k)
	}
	return thunks
}

// LoadAll loads keys in one batch and waits for every value.
// On failure no value is returned.
func (l *Loader[K, V]) LoadAll(keys []K) (map[K]V, error) {
	thunks := l.LoadMany(keys)
	out := make(map[K]V, len(keys))
	for i, th := range thunks {
		v, err := th()
		if err != nil {
			return nil, err
		}
		out[keys[i]] = v
	}
	return out, nil
}

// dispatch closes b to new keys and runs its fetch exactly once.
// Concurrent callers block on b.done until the fetch returns.
func (l *Loader[K, V]) dispatch(b *pendingBatch[K, V]) {
	b.once.Do(func() {
		l.mu.Lock()
		if l.pending == b {
			l.pending = nil
		}
		keys := b.keys.ToSlice()
		l.mu.Unlock()

		start := time.Now()
		values, err := l.run(keys)
		if err != nil {
			b.err = &domain.BatchQueryError{Kind: l.kind, Keys: len(keys), Err: err}
		} else {
			b.values = values
		}
		if l.hook != nil {
			l.hook(l.kind, len(keys), time.Since(start), err)
		}
		close(b.done)
	})
}

func (l *Loader[K, V]) run(keys []K) (values map[K]V, err error) {
	defer func() {
		if r := recover(); r != nil {
			values, err = nil, fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	if err := l.ctx.Err(); err != nil {
		return nil, err
	}
	return l.fetch(l.ctx, keys)
}
