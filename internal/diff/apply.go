package diff

import (
	"fmt"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// Apply removes the deleted fragments from oldUnits and inserts the added
// fragments at their positions, reconstructing the new unit sequence.
// It fails when the diff does not describe oldUnits.
func Apply(oldUnits []string, added, deleted []domain.Fragment) ([]string, error) {
	drop := make(map[int]bool, len(deleted))
	for _, f := range deleted {
		if f.Index < 0 || f.Index >= len(oldUnits) {
			return nil, fmt.Errorf("%w: deleted index %d out of range", domain.ErrInvalidInput, f.Index)
		}
		if oldUnits[f.Index] != f.Text {
			return nil, fmt.Errorf("%w: deleted unit %d does not match", domain.ErrInvalidInput, f.Index)
		}
		drop[f.Index] = true
	}

	kept := make([]string, 0, len(oldUnits)-len(drop))
	for i, u := range oldUnits {
		if !drop[i] {
			kept = append(kept, u)
		}
	}

	out := make([]string, 0, len(kept)+len(added))
	next := 0
	for pos := 0; next < len(added) || len(out) < len(kept)+len(added); pos++ {
		if next < len(added) && added[next].Index == pos {
			out = append(out, added[next].Text)
			next++
			continue
		}
		keptIdx := pos - next
		if keptIdx >= len(kept) {
			return nil, fmt.Errorf("%w: added fragments out of order or out of range", domain.ErrInvalidInput)
		}
		out = append(out, kept[keptIdx])
	}
	return out, nil
}

// Reconstruct applies d to the old content and returns the new content.
func Reconstruct(oldContent string, d *domain.ContentDiff) (string, error) {
	units, err := Segment(oldContent, d.Segmentation)
	if err != nil {
		return "", err
	}
	out, err := Apply(units, d.AddedFragments, d.DeletedFragments)
	if err != nil {
		return "", err
	}
	return Join(out, d.Segmentation), nil
}
