// Package roster reads team rosters from YAML files.
//
// A roster file looks like:
//
//	members:
//	  - name: Ada Lovelace
//	    email: ada@example.com
//	    identifiers:
//	      github: [ada-l]
//	      slack: [U024BE7LH]
package roster

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/pulse/internal/core/domain"
)

// Load reads the roster at path.
func Load(path string) (*domain.Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	r, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Parse decodes a roster document. Unknown keys are rejected so a typo in
// an identifier section does not silently drop bindings.
func Parse(r io.Reader) (*domain.Roster, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var roster domain.Roster
	if err := dec.Decode(&roster); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty roster", domain.ErrInvalidInput)
		}
		return nil, fmt.Errorf("%w: parse roster: %v", domain.ErrInvalidInput, err)
	}
	return &roster, nil
}
