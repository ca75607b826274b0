package diff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// ErrInvalidContent is returned when content cannot be split into units.
var ErrInvalidContent = errors.New("invalid content")

// Segment splits content into comparison units.
// Lines keep their trailing newline so that Join restores the exact bytes.
func Segment(content string, seg domain.Segmentation) ([]string, error) {
	switch seg {
	case domain.SegmentLines:
		return segmentLines(content)
	case domain.SegmentBlocks:
		return segmentBlocks(content)
	default:
		return nil, fmt.Errorf("%w: segmentation %q", domain.ErrUnsupportedType, seg)
	}
}

// Join is the inverse of Segment.
func Join(units []string, seg domain.Segmentation) string {
	if seg == domain.SegmentBlocks {
		return "[" + strings.Join(units, ",") + "]"
	}
	return strings.Join(units, "")
}

func segmentLines(content string) ([]string, error) {
	if !utf8.ValidString(content) {
		return nil, fmt.Errorf("%w: not valid UTF-8", ErrInvalidContent)
	}
	if content == "" {
		return []string{}, nil
	}
	units := strings.SplitAfter(content, "\n")
	if units[len(units)-1] == "" {
		units = units[:len(units)-1]
	}
	return units, nil
}

func segmentBlocks(content string) ([]string, error) {
	if strings.TrimSpace(content) == "" {
		return []string{}, nil
	}
	var blocks []json.RawMessage
	if err := json.Unmarshal([]byte(content), &blocks); err != nil {
		return nil, fmt.Errorf("%w: blocks must be a JSON array: %v", ErrInvalidContent, err)
	}
	units := make([]string, len(blocks))
	for i, b := range blocks {
		var buf bytes.Buffer
		if err := json.Compact(&buf, b); err != nil {
			return nil, fmt.Errorf("%w: block %d: %v", ErrInvalidContent, i, err)
		}
		units[i] = buf.String()
	}
	return units, nil
}
