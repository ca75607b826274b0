package batch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// recordingFetch counts calls and remembers the key sets it was given.
type recordingFetch struct {
	mu     sync.Mutex
	calls  [][]string
	values map[string]int
	err    error
}

func (f *recordingFetch) fetch(_ context.Context, keys []string) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	f.calls = append(f.calls, sorted)
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]int)
	for _, k := range keys {
		if v, ok := f.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (f *recordingFetch) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestLoader_OneDispatchPerWindow(t *testing.T) {
	f := &recordingFetch{values: map[string]int{"alice": 3, "bob": 5}}
	l := NewLoader(context.Background(), domain.LoaderActivityCount, f.fetch, nil)

	a := l.Load("alice")
	b := l.Load("bob")
	c := l.Load("carol")

	va, err := a()
	require.NoError(t, err)
	vb, err := b()
	require.NoError(t, err)
	vc, err := c()
	require.NoError(t, err)

	assert.Equal(t, 3, va)
	assert.Equal(t, 5, vb)
	assert.Equal(t, 0, vc, "missing keys resolve to zero")
	require.Equal(t, 1, f.callCount())
	assert.Equal(t, []string{"alice", "bob", "carol"}, f.calls[0])
}

func TestLoader_DuplicateKeysFetchedOnce(t *testing.T) {
	f := &recordingFetch{values: map[string]int{"alice": 1}}
	l := NewLoader(context.Background(), "k", f.fetch, nil)

	thunks := l.LoadMany([]string{"alice", "alice", "alice"})
	for _, th := range thunks {
		v, err := th()
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	}
	require.Equal(t, 1, f.callCount())
	assert.Equal(t, []string{"alice"}, f.calls[0])
}

func TestLoader_LoadsAfterDispatchStartNewBatch(t *testing.T) {
	f := &recordingFetch{values: map[string]int{"alice": 1, "bob": 2}}
	l := NewLoader(context.Background(), "k", f.fetch, nil)

	_, err := l.Load("alice")()
	require.NoError(t, err)

	v, err := l.Load("bob")()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, f.callCount())
	assert.Equal(t, []string{"bob"}, f.calls[1])
}

func TestLoader_MemoisesWithinLoader(t *testing.T) {
	f := &recordingFetch{values: map[string]int{"alice": 7}}
	l := NewLoader(context.Background(), "k", f.fetch, nil)

	_, err := l.Load("alice")()
	require.NoError(t, err)
	v, err := l.Load("alice")()
	require.NoError(t, err)

	assert.Equal(t, 7, v)
	assert.Equal(t, 1, f.callCount())
}

func TestLoader_ErrorReachesEveryCaller(t *testing.T) {
	boom := errors.New("connection reset")
	f := &recordingFetch{err: boom}
	l := NewLoader(context.Background(), domain.LoaderActivityCount, f.fetch, nil)

	thunks := l.LoadMany([]string{"alice", "bob", "carol"})
	var first error
	for _, th := range thunks {
		v, err := th()
		require.Error(t, err)
		assert.Zero(t, v)
		assert.ErrorIs(t, err, domain.ErrBatchQuery)
		assert.ErrorIs(t, err, boom)
		if first == nil {
			first = err
		}
		assert.Same(t, first, err, "all waiters share the same error")
	}

	var bqe *domain.BatchQueryError
	require.ErrorAs(t, first, &bqe)
	assert.Equal(t, domain.LoaderActivityCount, bqe.Kind)
	assert.Equal(t, 3, bqe.Keys)
	assert.Equal(t, 1, f.callCount())
}

func TestLoader_LoadAllFailsWhole(t *testing.T) {
	f := &recordingFetch{err: errors.New("down")}
	l := NewLoader(context.Background(), "k", f.fetch, nil)

	got, err := l.LoadAll([]string{"alice", "bob"})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, domain.ErrBatchQuery)
}

func TestLoader_PanicBecomesError(t *testing.T) {
	l := NewLoader(context.Background(), "k", func(context.Context, []string) (map[string]int, error) {
		panic("bad row")
	}, nil)

	_, err := l.Load("alice")()
	assert.ErrorIs(t, err, domain.ErrBatchQuery)
}

func TestLoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &recordingFetch{}
	l := NewLoader(ctx, "k", f.fetch, nil)

	_, err := l.Load("alice")()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.callCount())
}

func TestLoader_ConcurrentAwaitersShareDispatch(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	l := NewLoader(context.Background(), "k", func(_ context.Context, keys []int) (map[int]int, error) {
		calls.Add(1)
		<-release
		out := make(map[int]int, len(keys))
		for _, k := range keys {
			out[k] = k * 10
		}
		return out, nil
	}, nil)

	thunks := l.LoadMany([]int{1, 2, 3, 4, 5, 6, 7, 8})

	var wg sync.WaitGroup
	results := make([]int, len(thunks))
	for i, th := range thunks {
		wg.Add(1)
		go func(i int, th Thunk[int]) {
			defer wg.Done()
			v, err := th()
			assert.NoError(t, err)
			results[i] = v
		}(i, th)
	}
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []int{10, 20, 30, 40, 50, 60, 70, 80}, results)
}

func TestLoader_HookObservesDispatch(t *testing.T) {
	var gotKind string
	var gotKeys int
	hook := func(kind string, keys int, _ time.Duration, err error) {
		gotKind, gotKeys = kind, keys
		assert.NoError(t, err)
	}
	f := &recordingFetch{}
	l := NewLoader(context.Background(), domain.LoaderRecentActivities, f.fetch, hook)

	_, err := l.LoadAll([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, domain.LoaderRecentActivities, gotKind)
	assert.Equal(t, 2, gotKeys)
}
