package services

import (
	"context"
	"strings"
	"testing"
	"unicode"

	"pgregory.net/rapid"

	"github.com/custodia-labs/pulse/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pulse/internal/core/domain"
)

// Letters whose case mappings are not a simple round trip.
var trickyLetters = []rune{'ı', 'İ', 'i', 'I', 'ſ', 's', 'S', 'K', 'k', 'ς', 'σ', 'Σ', 'ǅ', 'ǆ', 'Ǆ', 'ж', 'Ж', 'é', 'É'}

// identityKey draws a key of Unicode letters, digits and separators.
func identityKey(rt *rapid.T) string {
	r := rapid.OneOf(
		rapid.RuneFrom(trickyLetters),
		rapid.RuneFrom(nil, unicode.Letter),
		rapid.RuneFrom([]rune("0123456789._-")),
	)
	return string(rapid.SliceOfN(r, 1, 20).Draw(rt, "key"))
}

// caseVariant re-cases key rune by rune and pads it with blanks.
func caseVariant(rt *rapid.T, key string) string {
	var b strings.Builder
	b.WriteString(rapid.SampledFrom([]string{"", " ", "\t"}).Draw(rt, "prefix"))
	for _, r := range key {
		switch rapid.IntRange(0, 2).Draw(rt, "case") {
		case 1:
			r = unicode.ToUpper(r)
		case 2:
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	b.WriteString(rapid.SampledFrom([]string{"", " ", "\n"}).Draw(rt, "suffix"))
	return b.String()
}

// TestProperty_ResolveIsCaseStable verifies that every case and whitespace
// variant of a bound key resolves to the same person.
func TestProperty_ResolveIsCaseStable(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		store := memory.NewStore()
		identity := NewIdentityService(store.PersonStore(), store.IdentifierStore(), store.UnresolvedStore())

		source := rapid.SampledFrom([]domain.SourceType{domain.SourceGitHub, domain.SourceSlack, domain.SourceEmail}).Draw(rt, "source")
		key := identityKey(rt)

		p, err := identity.CreatePerson(ctx, "Person", "")
		if err != nil {
			rt.Fatalf("CreatePerson: %v", err)
		}
		if err := identity.Bind(ctx, p.ID, source, caseVariant(rt, key)); err != nil {
			rt.Fatalf("Bind: %v", err)
		}

		variant := caseVariant(rt, key)
		got, ok, err := identity.Resolve(ctx, source, variant)
		if err != nil {
			rt.Fatalf("Resolve(%q): %v", variant, err)
		}
		if !ok || got != p.ID {
			rt.Fatalf("Resolve(%q) = %q, %v; want %q", variant, got, ok, p.ID)
		}

		// A second bind through another variant is the same binding.
		if err := identity.Bind(ctx, p.ID, source, caseVariant(rt, key)); err != nil {
			rt.Fatalf("rebind: %v", err)
		}
	})
}
