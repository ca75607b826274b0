package diff

import (
	"fmt"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// maxUnits is the size of the rune alphabet once surrogates are skipped.
const maxUnits = 0x10FFFF - 0x800

const surrogateStart = 0xD800

// Compute returns the units added to and deleted from oldUnits to obtain
// newUnits. Added indexes refer to newUnits, deleted indexes to oldUnits.
func Compute(oldUnits, newUnits []string) (added, deleted []domain.Fragment, err error) {
	alphabet := make(map[string]rune)
	var units []string
	encode := func(seq []string) ([]rune, error) {
		out := make([]rune, len(seq))
		for i, u := range seq {
			r, ok := alphabet[u]
			if !ok {
				if len(units) >= maxUnits {
					return nil, fmt.Errorf("%w: more than %d distinct units", ErrInvalidContent, maxUnits)
				}
				r = indexToRune(len(units))
				alphabet[u] = r
				units = append(units, u)
			}
			out[i] = r
		}
		return out, nil
	}

	a, err := encode(oldUnits)
	if err != nil {
		return nil, nil, err
	}
	b, err := encode(newUnits)
	if err != nil {
		return nil, nil, err
	}

	dmp := diffmatchpatch.New()
	// No deadline: a timed-out diff is valid but not minimal.
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(a, b, false)

	added = []domain.Fragment{}
	deleted = []domain.Fragment{}
	oldPos, newPos := 0, 0
	for _, d := range diffs {
		runes := []rune(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			oldPos += len(runes)
			newPos += len(runes)
		case diffmatchpatch.DiffDelete:
			for _, r := range runes {
				deleted = append(deleted, domain.Fragment{Index: oldPos, Text: units[runeToIndex(r)]})
				oldPos++
			}
		case diffmatchpatch.DiffInsert:
			for _, r := range runes {
				added = append(added, domain.Fragment{Index: newPos, Text: units[runeToIndex(r)]})
				newPos++
			}
		}
	}
	return added, deleted, nil
}

// Diff segments both contents and builds the ContentDiff between them.
func Diff(documentID, fromRevision, toRevision string, seg domain.Segmentation, oldContent, newContent string) (*domain.ContentDiff, error) {
	oldUnits, err := Segment(oldContent, seg)
	if err != nil {
		return nil, fmt.Errorf("segment previous revision: %w", err)
	}
	newUnits, err := Segment(newContent, seg)
	if err != nil {
		return nil, fmt.Errorf("segment new revision: %w", err)
	}
	added, deleted, err := Compute(oldUnits, newUnits)
	if err != nil {
		return nil, err
	}

	delta := 0
	for _, f := range added {
		delta += len(f.Text)
	}
	for _, f := range deleted {
		delta -= len(f.Text)
	}

	return &domain.ContentDiff{
		DocumentID:       documentID,
		FromRevision:     fromRevision,
		ToRevision:       toRevision,
		Segmentation:     seg,
		AddedFragments:   added,
		DeletedFragments: deleted,
		NetSizeDelta:     delta,
	}, nil
}

func indexToRune(i int) rune {
	r := rune(i)
	if r >= surrogateStart {
		r += 0x800
	}
	return r
}

func runeToIndex(r rune) int {
	if r >= surrogateStart+0x800 {
		r -= 0x800
	}
	return int(r)
}
