package batch

import (
	"context"
	"strings"
	"sync"
)

// Scope holds the loaders of one request.
type Scope struct {
	mu      sync.Mutex
	loaders map[string]any
	hook    DispatchHook
}

// NewScope creates an empty scope. hook may be nil.
func NewScope(hook DispatchHook) *Scope {
	return &Scope{loaders: make(map[string]any), hook: hook}
}

type scopeKey struct{}

// WithScope returns a context carrying s.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// FromContext returns the scope carried by ctx, if any.
func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok
}

// For returns the loader registered under name in the request scope of ctx,
// creating it with fetch on first use. Without a scope every call gets a
// fresh loader, so batching then only spans a single caller.
//
// name must identify fetch completely: two calls with the same name share
// one loader and therefore one fetch function.
func For[K comparable, V any](ctx context.Context, name string, fetch FetchFunc[K, V]) *Loader[K, V] {
	s, ok := FromContext(ctx)
	if !ok {
		return NewLoader(ctx, kindOf(name), fetch, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.loaders[name].(*Loader[K, V]); ok {
		return l
	}
	l := NewLoader(ctx, kindOf(name), fetch, s.hook)
	s.loaders[name] = l
	return l
}

// kindOf strips the parameter suffix from a loader name such as
// "recent_activities/5".
func kindOf(name string) string {
	kind, _, _ := strings.Cut(name, "/")
	return kind
}
