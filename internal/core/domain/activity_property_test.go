package domain

import (
	"testing"

	"pgregory.net/rapid"
)

// TestProperty_ActivityKeyIsInjective verifies that distinct
// (source type, activity type, native id) triples never share a key.
func TestProperty_ActivityKeyIsInjective(t *testing.T) {
	triple := func(rt *rapid.T, label string) [3]string {
		return [3]string{
			string(rapid.SampledFrom(AllSourceTypes()).Draw(rt, label+"_source")),
			rapid.StringMatching(`[a-z_]{1,12}`).Draw(rt, label+"_type"),
			// Native ids may contain the separator.
			rapid.StringMatching(`[a-z0-9:#/]{1,16}`).Draw(rt, label+"_native"),
		}
	}

	rapid.Check(t, func(rt *rapid.T) {
		a := triple(rt, "a")
		b := triple(rt, "b")

		ka := ActivityKey(SourceType(a[0]), a[1], a[2])
		kb := ActivityKey(SourceType(b[0]), b[1], b[2])

		if a == b && ka != kb {
			rt.Fatalf("equal triples %v produced keys %q and %q", a, ka, kb)
		}
		if a != b && ka == kb {
			rt.Fatalf("triples %v and %v collide on %q", a, b, ka)
		}
	})
}
