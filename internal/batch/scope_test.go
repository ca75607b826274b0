package batch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor_SharesLoaderWithinScope(t *testing.T) {
	ctx := WithScope(context.Background(), NewScope(nil))
	f := &recordingFetch{values: map[string]int{"alice": 1, "bob": 2}}

	// Two independent parts of one response ask for different persons.
	first := For(ctx, "activity_count", f.fetch).Load("alice")
	second := For(ctx, "activity_count", f.fetch).Load("bob")

	va, err := first()
	require.NoError(t, err)
	vb, err := second()
	require.NoError(t, err)

	assert.Equal(t, 1, va)
	assert.Equal(t, 2, vb)
	assert.Equal(t, 1, f.callCount())
}

func TestFor_SeparateScopesDoNotShare(t *testing.T) {
	f := &recordingFetch{values: map[string]int{"alice": 1}}

	ctx1 := WithScope(context.Background(), NewScope(nil))
	ctx2 := WithScope(context.Background(), NewScope(nil))

	_, err := For(ctx1, "activity_count", f.fetch).Load("alice")()
	require.NoError(t, err)
	_, err = For(ctx2, "activity_count", f.fetch).Load("alice")()
	require.NoError(t, err)

	assert.Equal(t, 2, f.callCount())
}

func TestFor_WithoutScopeCreatesFreshLoader(t *testing.T) {
	f := &recordingFetch{}
	a := For(context.Background(), "activity_count", f.fetch)
	b := For(context.Background(), "activity_count", f.fetch)
	assert.NotSame(t, a, b)
}

func TestFor_KindStripsParameters(t *testing.T) {
	ctx := WithScope(context.Background(), NewScope(nil))
	f := &recordingFetch{}
	l := For(ctx, "recent_activities/5", f.fetch)
	assert.Equal(t, "recent_activities", l.Kind())

	_, ok := FromContext(ctx)
	assert.True(t, ok)
	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
